// Package remedy plans escalating parameter modifications for diagnosed
// convergence failures.
package remedy

import (
	"fmt"
	"math"

	"github.com/TheFermiSea/crystalmath/internal/domain"
	"github.com/TheFermiSea/crystalmath/internal/params"
)

// rule describes how one reason is remediated: which parameter it targets,
// the default installed when the path is absent, and the escalation step as a
// function of the 0-based restart count. New values are always clamped.
type rule struct {
	path      string
	def       float64
	min, max  float64
	step      func(restartCount int) float64
	integer   bool
	rationale string
}

var rules = map[domain.Reason]rule{
	domain.ReasonChargeSloshing: {
		path: "scf.mixing_percent",
		def:  30, min: 1, max: 99,
		step:      func(rc int) float64 { return 10 * float64(rc+1) },
		rationale: "raise mixing damping to quench charge sloshing",
	},
	domain.ReasonSmallGap: {
		path: "scf.level_shift_ev",
		def:  0, min: 0, max: 2.0,
		step:      func(rc int) float64 { return 0.2 * float64(rc+1) },
		rationale: "level shift separates near-degenerate frontier orbitals",
	},
	domain.ReasonInsufficientMixing: {
		path: "scf.mixing_percent",
		def:  30, min: 5, max: 99,
		step:      func(rc int) float64 { return -5 * float64(rc+1) },
		rationale: "lower damping so the density responds faster",
	},
	domain.ReasonInsufficientCycles: {
		path: "scf.max_cycles",
		def:  100, min: 50, max: 500,
		step:      func(rc int) float64 { return 50 * float64(rc+1) },
		integer:   true,
		rationale: "plateaued short of tolerance; allow more SCF cycles",
	},
}

// Planner maps a diagnosis and restart count to parameter modifications.
// Reasons outside the rule table (memory, timeout, linear dependence, poor
// initial guess, unknown) yield an empty plan; those failures are not locally
// remediable by parameter tweaks and are escalated by the orchestrator.
type Planner struct{}

// NewPlanner creates a Planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan computes the modifications for the next attempt. restartCount is the
// 0-based number of prior restarts in this session. Absent target paths are
// created on the tree with the rule's documented default before stepping.
// For a fixed reason and tree, escalation is strictly monotonic in
// restartCount until the clamp is reached.
func (p *Planner) Plan(diag domain.ConvergenceDiagnosis, tree *params.Tree, restartCount int) ([]domain.ParameterModification, error) {
	r, ok := rules[diag.Reason]
	if !ok {
		return nil, nil
	}

	cur, err := tree.SetDefault(r.path, numeric(r.def, r.integer))
	if err != nil {
		return nil, err
	}
	old, ok := asFloat(cur)
	if !ok {
		return nil, domain.NewEngineError(domain.ErrParameterType.Code,
			fmt.Sprintf("parameter %q holds non-numeric value %v", r.path, cur))
	}

	next := clamp(old+r.step(restartCount), r.min, r.max)
	if r.integer {
		next = math.Round(next)
	}
	if next == old {
		// Clamp already reached; nothing left to escalate on this path.
		return nil, nil
	}

	mod := domain.ParameterModification{
		ParameterPath: r.path,
		OldValue:      cur,
		NewValue:      numeric(next, r.integer),
		Rationale:     r.rationale,
	}
	return []domain.ParameterModification{mod}, nil
}

// Apply writes the planned modifications onto the tree.
func Apply(tree *params.Tree, mods []domain.ParameterModification) error {
	for _, m := range mods {
		if err := tree.Set(m.ParameterPath, m.NewValue); err != nil {
			return err
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func numeric(v float64, integer bool) any {
	if integer {
		return int(v)
	}
	return v
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
