package diagnose

import (
	"strings"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// Diagnoser maps a convergence pattern plus solver signals to a root cause.
// Explicit backend flags always take priority over the trajectory pattern.
type Diagnoser struct {
	T Thresholds
}

// NewDiagnoser creates a diagnoser with the given thresholds.
func NewDiagnoser(t Thresholds) *Diagnoser {
	return &Diagnoser{T: t}
}

// Diagnose resolves the root-cause reason for a non-converged attempt.
// Pure function; never errors.
func (d *Diagnoser) Diagnose(pattern domain.Pattern, report *domain.SolverReport) domain.Reason {
	if report != nil {
		switch {
		case report.MemoryError:
			return domain.ReasonMemoryLimit
		case report.Timeout:
			return domain.ReasonTimeout
		case report.LinearDependence || warnsLinearDependence(report.Warnings):
			return domain.ReasonLinearDependence
		}
	}

	switch pattern {
	case domain.PatternOscillating:
		if report != nil && report.HomoLumoGapEv != nil && *report.HomoLumoGapEv < d.T.SmallGapEv {
			return domain.ReasonSmallGap
		}
		return domain.ReasonChargeSloshing
	case domain.PatternSlow:
		return domain.ReasonInsufficientMixing
	case domain.PatternStuck:
		return domain.ReasonInsufficientCycles
	case domain.PatternDiverging:
		return domain.ReasonPoorInitialGuess
	}
	return domain.ReasonUnknown
}

func warnsLinearDependence(warnings []string) bool {
	for _, w := range warnings {
		if strings.Contains(strings.ToLower(w), "linear depend") {
			return true
		}
	}
	return false
}

// recommendations maps each reason to operator-facing guidance.
var recommendations = map[domain.Reason][]string{
	domain.ReasonChargeSloshing: {
		"increase density mixing damping to suppress charge sloshing",
		"consider Kerker preconditioning for metallic systems",
	},
	domain.ReasonSmallGap: {
		"apply a level shift to open the HOMO-LUMO gap during SCF",
		"enable fractional occupations / electronic smearing",
	},
	domain.ReasonInsufficientMixing: {
		"reduce mixing damping so the density moves faster per cycle",
	},
	domain.ReasonInsufficientCycles: {
		"raise the SCF cycle limit; the energy has plateaued short of tolerance",
	},
	domain.ReasonMemoryLimit: {
		"request more memory or reduce the basis set size",
	},
	domain.ReasonTimeout: {
		"request more walltime or restart from the saved wavefunction",
	},
	domain.ReasonLinearDependence: {
		"remove near-linearly-dependent basis functions or raise the overlap cutoff",
	},
	domain.ReasonPoorInitialGuess: {
		"start from a superposition-of-atomic-densities guess or a converged neighbor",
	},
}

// BuildDiagnosis assembles the full diagnosis record for an attempt.
// Recommendations are empty when the pattern is Converged.
func BuildDiagnosis(cls Classification, reason domain.Reason, gapEv *float64) domain.ConvergenceDiagnosis {
	diag := domain.ConvergenceDiagnosis{
		Pattern:              cls.Pattern,
		Reason:               reason,
		Confidence:           cls.Confidence,
		OscillationAmplitude: cls.OscillationAmplitude,
		SlowDecayRate:        cls.SlowDecayRate,
		HomoLumoGapEv:        gapEv,
	}
	if cls.Pattern == domain.PatternConverged {
		diag.Reason = domain.ReasonUnknown
		return diag
	}
	if recs, ok := recommendations[reason]; ok {
		diag.Recommendations = append([]string(nil), recs...)
	}
	return diag
}
