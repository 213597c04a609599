package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheFermiSea/crystalmath/internal/domain"
	"github.com/TheFermiSea/crystalmath/internal/estimate"
)

func newEstimateCmd() *cobra.Command {
	var (
		atoms     int
		electrons int
		kpoints   int
		basis     string
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Print a resource estimate for a system size",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := domain.BasisSize(basis)
			switch b {
			case domain.BasisSmall, domain.BasisMedium, domain.BasisLarge:
			default:
				return fmt.Errorf("basis must be small, medium, or large")
			}

			est := estimate.NewEstimator().Estimate(domain.SystemSize{
				NumAtoms:     atoms,
				NumElectrons: electrons,
				KPoints:      kpoints,
				Basis:        b,
			})

			fmt.Printf("memory:   %d MB\n", est.MemoryMb)
			fmt.Printf("cores:    %d\n", est.NumCores)
			fmt.Printf("walltime: %d s\n", est.WalltimeSeconds)
			return nil
		},
	}
	cmd.Flags().IntVar(&atoms, "atoms", 1, "number of atoms")
	cmd.Flags().IntVar(&electrons, "electrons", 1, "number of electrons")
	cmd.Flags().IntVar(&kpoints, "kpoints", 1, "number of k-points")
	cmd.Flags().StringVar(&basis, "basis", "medium", "basis size (small, medium, large)")
	return cmd
}
