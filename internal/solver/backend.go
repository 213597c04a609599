// Package solver defines the execution backend and output parser contracts
// and ships local implementations of both.
package solver

import (
	"context"
	"time"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// OutcomeKind is the terminal condition of one solver run.
type OutcomeKind string

const (
	OutcomeFinished OutcomeKind = "finished"
	OutcomeFailed   OutcomeKind = "failed"
	OutcomeTimedOut OutcomeKind = "timed_out"
)

// Outcome is the result of awaiting an attempt.
type Outcome struct {
	Kind      OutcomeKind
	RawOutput []byte
	ExitCode  int
}

// AttemptHandle is an opaque reference to an in-flight solver run.
type AttemptHandle interface {
	ID() string
}

// Backend submits calculations to an execution environment. Its own
// concurrency and backpressure policy is the backend's concern; the
// orchestrator only submits, awaits, and cancels.
type Backend interface {
	Submit(ctx context.Context, snapshot map[string]any, restartHandle string) (AttemptHandle, error)
	Await(ctx context.Context, h AttemptHandle, timeout time.Duration) (Outcome, error)
	Cancel(h AttemptHandle) error
}

// OutputParser turns raw solver output into a structured report.
type OutputParser interface {
	Parse(raw []byte) (*domain.SolverReport, error)
}
