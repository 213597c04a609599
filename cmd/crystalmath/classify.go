package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TheFermiSea/crystalmath/internal/diagnose"
)

func newClassifyCmd() *cobra.Command {
	var converged bool

	cmd := &cobra.Command{
		Use:   "classify <trajectory-file>",
		Short: "Classify an SCF energy trajectory (one energy per line)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trajectory, err := readTrajectory(args[0])
			if err != nil {
				return err
			}

			c := diagnose.NewClassifier(diagnose.DefaultThresholds())
			result := c.Classify(trajectory, converged)

			fmt.Printf("pattern:    %s\n", result.Pattern)
			fmt.Printf("confidence: %.2f\n", result.Confidence)
			if result.OscillationAmplitude != nil {
				fmt.Printf("amplitude:  %g\n", *result.OscillationAmplitude)
			}
			if result.SlowDecayRate != nil {
				fmt.Printf("decay rate: %.3f\n", *result.SlowDecayRate)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&converged, "converged", false, "the solver itself reported convergence")
	return cmd
}

func readTrajectory(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trajectory: %w", err)
	}
	defer f.Close()

	var trajectory []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("parse energy %q: %w", line, err)
		}
		trajectory = append(trajectory, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trajectory: %w", err)
	}
	return trajectory, nil
}
