package workflow

import (
	"fmt"
	"math"

	"github.com/TheFermiSea/crystalmath/internal/domain"
	"github.com/TheFermiSea/crystalmath/internal/params"
)

const (
	// minCellVolume rejects degenerate cells (angstrom^3).
	minCellVolume = 1e-6
	// minSiteSeparation rejects pathologically overlapping sites (angstrom).
	minSiteSeparation = 0.1
)

// validateInput checks the submission is structurally sane before anything is
// sent to the backend. A structure is optional; the parameter tree is not.
func validateInput(in Input) error {
	if in.Parameters == nil {
		return domain.NewEngineError(domain.ErrValidationFailed.Code, "parameter tree is required")
	}
	if err := params.ValidateCore(in.Parameters); err != nil {
		return err
	}
	if in.Structure == nil {
		return nil
	}

	if v := cellVolume(in.Structure.Cell); v < minCellVolume {
		return domain.NewEngineError(domain.ErrValidationFailed.Code,
			fmt.Sprintf("degenerate cell: volume %.3g below %.3g", v, minCellVolume))
	}
	if i, j, d := closestSites(in.Structure.Sites); d < minSiteSeparation {
		return domain.NewEngineError(domain.ErrValidationFailed.Code,
			fmt.Sprintf("sites %d and %d overlap: separation %.3g angstrom", i, j, d))
	}
	return nil
}

// cellVolume is the absolute value of the cell matrix determinant.
func cellVolume(c [3][3]float64) float64 {
	det := c[0][0]*(c[1][1]*c[2][2]-c[1][2]*c[2][1]) -
		c[0][1]*(c[1][0]*c[2][2]-c[1][2]*c[2][0]) +
		c[0][2]*(c[1][0]*c[2][1]-c[1][1]*c[2][0])
	return math.Abs(det)
}

// closestSites returns the indices and distance of the closest pair of sites,
// or math.Inf(1) when fewer than two sites exist.
func closestSites(sites []domain.Site) (int, int, float64) {
	best := math.Inf(1)
	bi, bj := -1, -1
	for i := 0; i < len(sites); i++ {
		for j := i + 1; j < len(sites); j++ {
			dx := sites[i].X - sites[j].X
			dy := sites[i].Y - sites[j].Y
			dz := sites[i].Z - sites[j].Z
			d := math.Sqrt(dx*dx + dy*dy + dz*dz)
			if d < best {
				best, bi, bj = d, i, j
			}
		}
	}
	return bi, bj, best
}
