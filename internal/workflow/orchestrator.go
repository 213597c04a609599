package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/TheFermiSea/crystalmath/internal/diagnose"
	"github.com/TheFermiSea/crystalmath/internal/domain"
	"github.com/TheFermiSea/crystalmath/internal/params"
	"github.com/TheFermiSea/crystalmath/internal/remedy"
	"github.com/TheFermiSea/crystalmath/internal/solver"
)

// Input is one calculation to converge: the parameter tree plus an optional
// structure used only for pre-submission validation.
type Input struct {
	Structure  *domain.Structure
	Parameters *params.Tree
}

// Orchestrator drives the submit/inspect/remediate/resubmit loop for one
// session at a time. It is stateless across sessions; run independent
// sessions as independent tasks.
type Orchestrator struct {
	Backend    solver.Backend
	Parser     solver.OutputParser
	Classifier *diagnose.Classifier
	Diagnoser  *diagnose.Diagnoser
	Planner    *remedy.Planner

	// AttemptTimeout bounds each individual solver run. A timed-out attempt
	// is diagnosed as a timeout, not treated as a crash.
	AttemptTimeout time.Duration
}

// NewOrchestrator wires an orchestrator from a backend, a parser, and the
// classifier thresholds.
func NewOrchestrator(backend solver.Backend, parser solver.OutputParser, t diagnose.Thresholds) *Orchestrator {
	return &Orchestrator{
		Backend:        backend,
		Parser:         parser,
		Classifier:     diagnose.NewClassifier(t),
		Diagnoser:      diagnose.NewDiagnoser(t),
		Planner:        remedy.NewPlanner(),
		AttemptTimeout: 24 * time.Hour,
	}
}

// newSession creates an empty session with a fresh ULID.
func newSession(maxAttempts int) *domain.RestartSession {
	return &domain.RestartSession{
		SessionID:     ulid.Make().String(),
		MaxAttempts:   maxAttempts,
		CreatedAtUnix: time.Now().Unix(),
	}
}

// Run executes a full session and returns it with its terminal result set.
//
// Non-convergence is never an error: the session always ends in Succeeded,
// ExhaustedRetries, or Fatal, with every attempt's diagnosis and planned
// modifications recorded. A returned error means a structural failure
// (invalid arguments, backend submit failure, unparseable output); the
// session returned alongside it holds whatever history was accumulated.
func (o *Orchestrator) Run(ctx context.Context, in Input, maxAttempts int) (*domain.RestartSession, error) {
	if maxAttempts < 1 {
		return nil, domain.ErrMaxAttemptsInvalid
	}
	session := newSession(maxAttempts)
	return session, o.runSession(ctx, session, in)
}

func (o *Orchestrator) runSession(ctx context.Context, session *domain.RestartSession, in Input) error {
	state := StateValidating

	if err := validateInput(in); err != nil {
		o.finish(session, &state, domain.TerminalFatal, 0, "validation failed: "+err.Error())
		return nil
	}

	tree := in.Parameters.Clone()
	restartHandle := ""

	for attemptNo := 1; ; attemptNo++ {
		if err := advance(&state, StateSubmitted); err != nil {
			return err
		}

		attempt := &domain.CalculationAttempt{
			AttemptNumber: attemptNo,
			Parameters:    tree.Snapshot(),
			RestartHandle: restartHandle,
			Status:        domain.AttemptRunning,
			StartedAtUnix: time.Now().Unix(),
		}
		session.Attempts = append(session.Attempts, attempt)

		handle, err := o.Backend.Submit(ctx, attempt.Parameters, restartHandle)
		if err != nil {
			o.fail(attempt)
			return err
		}

		outcome, err := o.Backend.Await(ctx, handle, o.AttemptTimeout)
		if err != nil {
			_ = o.Backend.Cancel(handle)
			o.fail(attempt)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				o.finish(session, &state, domain.TerminalFatal, attemptNo, "session cancelled")
				return nil
			}
			return err
		}

		if err := advance(&state, StateInspecting); err != nil {
			return err
		}

		report, err := o.inspect(outcome)
		if err != nil {
			o.fail(attempt)
			return err
		}

		cls := o.Classifier.Classify(report.Trajectory, report.Converged)
		reason := o.Diagnoser.Diagnose(cls.Pattern, report)
		diag := diagnose.BuildDiagnosis(cls, reason, report.HomoLumoGapEv)
		attempt.Diagnosis = &diag
		attempt.FinishedAtUnix = time.Now().Unix()
		if outcome.Kind == solver.OutcomeFinished {
			attempt.Status = domain.AttemptFinished
		} else {
			attempt.Status = domain.AttemptFailed
		}

		if cls.Pattern == domain.PatternConverged {
			o.finish(session, &state, domain.TerminalSucceeded, attemptNo, "")
			return nil
		}
		if attemptNo >= session.MaxAttempts {
			o.finish(session, &state, domain.TerminalExhausted, attemptNo, string(reason))
			return nil
		}

		next := tree.Clone()
		mods, err := o.Planner.Plan(diag, next, attemptNo-1)
		if err != nil {
			return err
		}
		attempt.Modifications = mods

		if len(mods) == 0 && !reason.Remediable() {
			o.finish(session, &state, domain.TerminalFatal, attemptNo, string(reason))
			return nil
		}

		if err := advance(&state, StateRemediating); err != nil {
			return err
		}
		if err := remedy.Apply(next, mods); err != nil {
			return err
		}
		tree = next
		if report.RestartHandle != "" {
			restartHandle = report.RestartHandle
		}
	}
}

// inspect converts an outcome into a solver report. Timed-out attempts get a
// synthetic report carrying only the timeout flag.
func (o *Orchestrator) inspect(outcome solver.Outcome) (*domain.SolverReport, error) {
	if outcome.Kind == solver.OutcomeTimedOut {
		return &domain.SolverReport{Timeout: true}, nil
	}
	return o.Parser.Parse(outcome.RawOutput)
}

func (o *Orchestrator) finish(session *domain.RestartSession, state *State, kind domain.TerminalKind, attemptNo int, reason string) {
	switch kind {
	case domain.TerminalSucceeded:
		*state = StateSucceeded
	case domain.TerminalExhausted:
		*state = StateExhausted
	default:
		*state = StateFatal
	}
	session.Terminal = &domain.TerminalResult{
		Kind:          kind,
		AttemptNumber: attemptNo,
		Reason:        reason,
	}
}

func (o *Orchestrator) fail(attempt *domain.CalculationAttempt) {
	attempt.Status = domain.AttemptFailed
	attempt.FinishedAtUnix = time.Now().Unix()
}
