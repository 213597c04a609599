// Package estimate computes resource requests from system size.
package estimate

import (
	"math"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// Estimator derives memory, core, and walltime requests before the first
// submission. Pure and deterministic; invalid inputs are clamped to 1.
type Estimator struct {
	// BaseMemoryMb is the fixed overhead independent of system size.
	BaseMemoryMb float64
	// MemoryPerElectron scales the electron^1.5 term (two-electron integral
	// storage grows super-linearly with electron count).
	MemoryPerElectron float64
	// MaxCores caps the core request; parallel efficiency falls off well
	// before typical node sizes are exhausted.
	MaxCores int
	// BaseWalltimeSec is the minimum walltime request.
	BaseWalltimeSec float64
	// WalltimePerAtom scales the atoms^2.2 * kpoints term.
	WalltimePerAtom float64
}

// NewEstimator returns an estimator with the tuned default coefficients.
func NewEstimator() *Estimator {
	return &Estimator{
		BaseMemoryMb:      512,
		MemoryPerElectron: 0.5,
		MaxCores:          128,
		BaseWalltimeSec:   600,
		WalltimePerAtom:   2.0,
	}
}

// basisFactor scales memory by basis-set size category.
func basisFactor(b domain.BasisSize) float64 {
	switch b {
	case domain.BasisMedium:
		return 1.6
	case domain.BasisLarge:
		return 2.5
	default:
		return 1.0
	}
}

// Estimate computes the resource request for the given system.
// Memory is monotonic non-decreasing in electrons and basis size, cores grow
// sub-linearly with atoms, and walltime is always strictly positive.
func (e *Estimator) Estimate(sys domain.SystemSize) domain.ResourceEstimate {
	atoms := atLeastOne(sys.NumAtoms)
	electrons := atLeastOne(sys.NumElectrons)
	kpoints := atLeastOne(sys.KPoints)

	memory := e.BaseMemoryMb + e.MemoryPerElectron*math.Pow(float64(electrons), 1.5)*basisFactor(sys.Basis)

	cores := int(math.Ceil(math.Pow(float64(atoms), 0.6)))
	if cores < 1 {
		cores = 1
	}
	if cores > e.MaxCores {
		cores = e.MaxCores
	}

	walltime := e.BaseWalltimeSec + e.WalltimePerAtom*math.Pow(float64(atoms), 2.2)*float64(kpoints)

	return domain.ResourceEstimate{
		MemoryMb:        int(math.Ceil(memory)),
		NumCores:        cores,
		WalltimeSeconds: int(math.Ceil(walltime)),
	}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
