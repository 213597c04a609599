// Package diagnose classifies SCF energy trajectories and infers the root
// cause of non-convergence.
package diagnose

import (
	"math"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// Thresholds are the empirically tuned cutoffs used by the classifier and
// diagnoser. They are configurable defaults, not physical constants.
type Thresholds struct {
	// ConvergenceTol is the absolute energy-delta tolerance (hartree).
	ConvergenceTol float64
	// SoftTolFactor widens ConvergenceTol for trajectories whose deltas are
	// still shrinking monotonically at the end of the run.
	SoftTolFactor float64
	// SlowDecayRatio is the trailing |d[i+1]|/|d[i]| average above which the
	// decay counts as slow.
	SlowDecayRatio float64
	// OscillationWindow is the number of trailing deltas inspected for sign
	// alternation.
	OscillationWindow int
	// SmallGapEv is the HOMO-LUMO gap (eV) below which oscillation is blamed
	// on the gap rather than on charge sloshing.
	SmallGapEv float64
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConvergenceTol:    1e-7,
		SoftTolFactor:     100,
		SlowDecayRatio:    0.85,
		OscillationWindow: 6,
		SmallGapEv:        0.2,
	}
}

// Classification is the classifier's verdict on one trajectory.
type Classification struct {
	Pattern              domain.Pattern
	Confidence           float64
	OscillationAmplitude *float64
	SlowDecayRate        *float64
}

// Classifier turns an energy trajectory into a convergence pattern.
// It is a pure function of its inputs and never errors; ambiguous or
// insufficient input yields PatternUnknown.
type Classifier struct {
	T Thresholds
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{T: t}
}

// Classify inspects the trajectory. convergedFlag is the solver's own verdict;
// a flat trajectory with convergedFlag false is a plateau short of the target
// tolerance (PatternStuck), not convergence.
func (c *Classifier) Classify(trajectory []float64, convergedFlag bool) Classification {
	if len(trajectory) < 2 {
		return Classification{Pattern: domain.PatternUnknown, Confidence: 0.0}
	}

	deltas := make([]float64, len(trajectory)-1)
	for i := 1; i < len(trajectory); i++ {
		deltas[i-1] = trajectory[i] - trajectory[i-1]
	}
	last := math.Abs(deltas[len(deltas)-1])
	run := shrinkingRun(deltas)

	// Converged / Stuck. The hard tolerance alone is enough; a monotonically
	// shrinking tail is accepted up to the soft tolerance.
	hard := last <= c.T.ConvergenceTol
	soft := run >= 3 && last <= c.T.ConvergenceTol*c.T.SoftTolFactor
	if hard || soft {
		conf := 0.7 + 0.05*math.Min(float64(run), 5)
		if hard {
			conf += 0.1
		}
		conf = math.Min(conf, 0.99)
		if convergedFlag {
			return Classification{Pattern: domain.PatternConverged, Confidence: conf}
		}
		return Classification{Pattern: domain.PatternStuck, Confidence: math.Min(conf, 0.9)}
	}

	if cls, ok := c.classifyOscillation(trajectory, deltas); ok {
		return cls
	}
	if cls, ok := classifyDivergence(deltas); ok {
		return cls
	}
	if cls, ok := c.classifySlowDecay(deltas); ok {
		return cls
	}

	return Classification{Pattern: domain.PatternUnknown, Confidence: 0.2}
}

// classifyOscillation checks the trailing window for alternating delta signs.
func (c *Classifier) classifyOscillation(trajectory, deltas []float64) (Classification, bool) {
	w := c.T.OscillationWindow
	if len(deltas) < w {
		return Classification{}, false
	}
	tail := deltas[len(deltas)-w:]
	pairs := len(tail) - 1
	alternating := 0
	for i := 0; i < pairs; i++ {
		if tail[i]*tail[i+1] < 0 {
			alternating++
		}
	}
	if 2*alternating < pairs+1 {
		return Classification{}, false
	}

	// Peak-to-peak amplitude over the energies spanned by the window.
	energies := trajectory[len(trajectory)-w-1:]
	lo, hi := energies[0], energies[0]
	for _, e := range energies[1:] {
		lo = math.Min(lo, e)
		hi = math.Max(hi, e)
	}
	amp := hi - lo

	conf := math.Min(0.5+0.5*float64(alternating)/float64(pairs), 0.95)
	return Classification{
		Pattern:              domain.PatternOscillating,
		Confidence:           conf,
		OscillationAmplitude: &amp,
	}, true
}

// classifyDivergence checks for a same-sign trailing run that moves the
// energy upward or grows in magnitude.
func classifyDivergence(deltas []float64) (Classification, bool) {
	if len(deltas) < 3 {
		return Classification{}, false
	}
	// Length of the trailing same-sign run.
	runLen := 1
	for i := len(deltas) - 1; i > 0; i-- {
		if deltas[i]*deltas[i-1] <= 0 {
			break
		}
		runLen++
	}
	if runLen < 3 {
		return Classification{}, false
	}

	tail := deltas[len(deltas)-runLen:]
	rising := tail[len(tail)-1] > 0
	growing := true
	for i := 1; i < len(tail); i++ {
		if math.Abs(tail[i]) < math.Abs(tail[i-1]) {
			growing = false
			break
		}
	}
	if !rising && !growing {
		return Classification{}, false
	}

	conf := math.Min(0.5+0.1*float64(runLen), 0.9)
	return Classification{Pattern: domain.PatternDiverging, Confidence: conf}, true
}

// classifySlowDecay checks whether the trailing decay ratio is close to 1.
func (c *Classifier) classifySlowDecay(deltas []float64) (Classification, bool) {
	const window = 5
	tail := deltas
	if len(tail) > window {
		tail = tail[len(tail)-window:]
	}
	var sum float64
	var n int
	for i := 1; i < len(tail); i++ {
		prev := math.Abs(tail[i-1])
		if prev == 0 {
			continue
		}
		sum += math.Abs(tail[i]) / prev
		n++
	}
	if n < 2 {
		return Classification{}, false
	}
	avg := sum / float64(n)
	if avg <= c.T.SlowDecayRatio || avg > 1.2 {
		return Classification{}, false
	}
	rate := avg
	return Classification{
		Pattern:       domain.PatternSlow,
		Confidence:    0.7,
		SlowDecayRate: &rate,
	}, true
}

// shrinkingRun counts the trailing pairs of deltas whose magnitudes strictly
// shrink, e.g. |d[n-2]| > |d[n-1]| contributes one.
func shrinkingRun(deltas []float64) int {
	run := 0
	for i := len(deltas) - 1; i > 0; i-- {
		if math.Abs(deltas[i]) < math.Abs(deltas[i-1]) {
			run++
		} else {
			break
		}
	}
	return run
}
