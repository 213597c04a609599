// Package domain defines the core types for the CrystalMath convergence engine.
package domain

// Pattern classifies the shape of an energy trajectory.
type Pattern string

const (
	PatternConverged   Pattern = "converged"
	PatternOscillating Pattern = "oscillating"
	PatternSlow        Pattern = "slow"
	PatternDiverging   Pattern = "diverging"
	PatternStuck       Pattern = "stuck"
	PatternUnknown     Pattern = "unknown"
)

// Reason is the diagnosed root cause of a non-converged calculation.
type Reason string

const (
	ReasonChargeSloshing     Reason = "charge_sloshing"
	ReasonSmallGap           Reason = "small_gap"
	ReasonInsufficientMixing Reason = "insufficient_mixing"
	ReasonInsufficientCycles Reason = "insufficient_cycles"
	ReasonMemoryLimit        Reason = "memory_limit"
	ReasonTimeout            Reason = "timeout"
	ReasonLinearDependence   Reason = "linear_dependence"
	ReasonPoorInitialGuess   Reason = "poor_initial_guess"
	ReasonUnknown            Reason = "unknown"
)

// Remediable reports whether the planner can address the reason by adjusting
// parameters. Non-remediable reasons escalate to a fatal result instead.
func (r Reason) Remediable() bool {
	switch r {
	case ReasonChargeSloshing, ReasonSmallGap, ReasonInsufficientMixing, ReasonInsufficientCycles:
		return true
	}
	return false
}

// ConvergenceDiagnosis is the full analysis of one calculation attempt.
type ConvergenceDiagnosis struct {
	Pattern              Pattern
	Reason               Reason
	Confidence           float64
	OscillationAmplitude *float64
	SlowDecayRate        *float64
	HomoLumoGapEv        *float64
	Recommendations      []string
}

// ParameterModification records one planned change to the parameter tree.
type ParameterModification struct {
	ParameterPath string
	OldValue      any
	NewValue      any
	Rationale     string
}

// AttemptStatus is the lifecycle state of a calculation attempt.
type AttemptStatus string

const (
	AttemptRunning  AttemptStatus = "running"
	AttemptFinished AttemptStatus = "finished"
	AttemptFailed   AttemptStatus = "failed"
)

// CalculationAttempt is one submission of the solver within a session.
// Attempt numbers are 1-based and strictly increasing. An attempt is never
// mutated after reaching a terminal status.
type CalculationAttempt struct {
	AttemptNumber  int
	Parameters     map[string]any
	RestartHandle  string
	Status         AttemptStatus
	Diagnosis      *ConvergenceDiagnosis
	Modifications  []ParameterModification
	StartedAtUnix  int64
	FinishedAtUnix int64
}

// TerminalKind is the kind of terminal result a session can reach.
type TerminalKind string

const (
	TerminalSucceeded TerminalKind = "succeeded"
	TerminalExhausted TerminalKind = "exhausted_retries"
	TerminalFatal     TerminalKind = "fatal"
)

// TerminalResult is the final outcome of a restart session.
type TerminalResult struct {
	Kind          TerminalKind
	AttemptNumber int
	Reason        string
}

// RestartSession holds the full history of one orchestration run.
// It is exclusively owned by a single orchestrator task; nothing in it is
// shared across sessions.
type RestartSession struct {
	SessionID     string
	MaxAttempts   int
	Attempts      []*CalculationAttempt
	Terminal      *TerminalResult
	CreatedAtUnix int64
}

// LastAttempt returns the most recent attempt, or nil if none were submitted.
func (s *RestartSession) LastAttempt() *CalculationAttempt {
	if len(s.Attempts) == 0 {
		return nil
	}
	return s.Attempts[len(s.Attempts)-1]
}

// BasisSize is a coarse basis-set size category.
type BasisSize string

const (
	BasisSmall  BasisSize = "small"
	BasisMedium BasisSize = "medium"
	BasisLarge  BasisSize = "large"
)

// SystemSize describes the size of the physical system for resource estimation.
type SystemSize struct {
	NumAtoms     int
	NumElectrons int
	KPoints      int
	Basis        BasisSize
}

// ResourceEstimate is the computed resource request for one session.
type ResourceEstimate struct {
	MemoryMb        int
	NumCores        int
	WalltimeSeconds int
}

// SolverReport is the parsed result of one solver run.
type SolverReport struct {
	Trajectory       []float64
	Converged        bool
	MemoryError      bool
	Timeout          bool
	LinearDependence bool
	Warnings         []string
	HomoLumoGapEv    *float64
	RestartHandle    string
}

// Site is one atomic site in Cartesian coordinates (angstrom).
type Site struct {
	Element string
	X, Y, Z float64
}

// Structure is the minimal structural input needed for pre-submission
// validation. Full crystallography handling lives outside this engine.
type Structure struct {
	Cell  [3][3]float64
	Sites []Site
}
