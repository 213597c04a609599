package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

func TestEstimateScalesWithSystemSize(t *testing.T) {
	e := NewEstimator()

	small := e.Estimate(domain.SystemSize{NumAtoms: 10, NumElectrons: 40, KPoints: 1, Basis: domain.BasisSmall})
	large := e.Estimate(domain.SystemSize{NumAtoms: 100, NumElectrons: 400, KPoints: 8, Basis: domain.BasisSmall})

	assert.Less(t, small.MemoryMb, large.MemoryMb)
	assert.Less(t, small.NumCores, large.NumCores)
	assert.Less(t, small.WalltimeSeconds, large.WalltimeSeconds)
}

func TestEstimateBasisMonotonic(t *testing.T) {
	e := NewEstimator()
	sys := domain.SystemSize{NumAtoms: 20, NumElectrons: 80, KPoints: 1}

	sys.Basis = domain.BasisSmall
	small := e.Estimate(sys)
	sys.Basis = domain.BasisMedium
	medium := e.Estimate(sys)
	sys.Basis = domain.BasisLarge
	large := e.Estimate(sys)

	assert.Less(t, small.MemoryMb, medium.MemoryMb)
	assert.Less(t, medium.MemoryMb, large.MemoryMb)
}

func TestEstimateClampsInvalidInput(t *testing.T) {
	e := NewEstimator()

	got := e.Estimate(domain.SystemSize{NumAtoms: -3, NumElectrons: 0, KPoints: -1})

	assert.GreaterOrEqual(t, got.MemoryMb, 1)
	assert.GreaterOrEqual(t, got.NumCores, 1)
	assert.Greater(t, got.WalltimeSeconds, 0)
}

func TestEstimateCoresSubLinearAndCapped(t *testing.T) {
	e := NewEstimator()

	ten := e.Estimate(domain.SystemSize{NumAtoms: 10, NumElectrons: 40, KPoints: 1})
	hundred := e.Estimate(domain.SystemSize{NumAtoms: 100, NumElectrons: 400, KPoints: 1})
	assert.Less(t, hundred.NumCores, ten.NumCores*10, "core count grows sub-linearly in atoms")

	huge := e.Estimate(domain.SystemSize{NumAtoms: 1_000_000, NumElectrons: 4_000_000, KPoints: 1})
	assert.Equal(t, e.MaxCores, huge.NumCores)
}

func TestEstimateDeterministic(t *testing.T) {
	e := NewEstimator()
	sys := domain.SystemSize{NumAtoms: 37, NumElectrons: 142, KPoints: 4, Basis: domain.BasisMedium}

	assert.Equal(t, e.Estimate(sys), e.Estimate(sys))
}
