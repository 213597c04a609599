// Package main is the entry point for the crystalmath convergence engine.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version vars injected via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Optional .env next to the binary; missing file is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "crystalmath",
		Short:   "Self-healing convergence orchestrator for SCF calculations",
		Long:    "crystalmath drives quantum chemistry SCF runs through a diagnose-remediate-resubmit loop until they converge or the retry budget runs out.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newEstimateCmd())
	rootCmd.AddCommand(newClassifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
