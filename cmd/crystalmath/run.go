package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheFermiSea/crystalmath/internal/config"
	"github.com/TheFermiSea/crystalmath/internal/domain"
	"github.com/TheFermiSea/crystalmath/internal/params"
	"github.com/TheFermiSea/crystalmath/internal/solver"
	"github.com/TheFermiSea/crystalmath/internal/store"
	"github.com/TheFermiSea/crystalmath/internal/workflow"
)

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "run <params.json>",
		Short: "Converge a single calculation and print the attempt history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(configPath, args[0], maxAttempts)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file (JSON or YAML)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "retry budget (default from config)")
	return cmd
}

func runOnce(configPath, paramsPath string, maxAttempts int) error {
	path := configPath
	if path == "" {
		path = os.Getenv("CRYSTALMATH_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}
	if path == "" {
		return fmt.Errorf("no config found. Place config.json next to the exe, use --config <path>, or set CRYSTALMATH_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := os.ReadFile(paramsPath)
	if err != nil {
		return fmt.Errorf("read parameters: %w", err)
	}
	tree, err := params.FromJSON(data)
	if err != nil {
		return fmt.Errorf("parse parameters: %w", err)
	}

	if maxAttempts == 0 {
		maxAttempts = cfg.DefaultMaxAttempts
	}

	backend := solver.NewLocalBackend(cfg.Solver.Command, cfg.Solver.Args, cfg.Solver.WorkDir)
	orch := workflow.NewOrchestrator(backend, solver.NewTextParser(), cfg.DiagnoseThresholds())
	orch.AttemptTimeout = time.Duration(cfg.AttemptTimeoutSec) * time.Second

	session, err := orch.Run(context.Background(), workflow.Input{Parameters: tree}, maxAttempts)
	if err != nil {
		return err
	}

	printSession(session)

	if st, storeErr := store.NewStore(cfg.DBPath); storeErr == nil {
		defer st.Close()
		if archiveErr := st.Archive(context.Background(), session); archiveErr != nil {
			color.Yellow("archive failed: %v", archiveErr)
		}
	}

	if session.Terminal != nil && session.Terminal.Kind != domain.TerminalSucceeded {
		os.Exit(1)
	}
	return nil
}

func printSession(session *domain.RestartSession) {
	fmt.Printf("session %s (%d attempts)\n", session.SessionID, len(session.Attempts))

	for _, att := range session.Attempts {
		fmt.Printf("  attempt %d: %s", att.AttemptNumber, att.Status)
		if att.Diagnosis != nil {
			fmt.Printf("  pattern=%s reason=%s confidence=%.2f",
				att.Diagnosis.Pattern, att.Diagnosis.Reason, att.Diagnosis.Confidence)
		}
		fmt.Println()
		for _, mod := range att.Modifications {
			fmt.Printf("    %s: %v -> %v (%s)\n",
				mod.ParameterPath, mod.OldValue, mod.NewValue, mod.Rationale)
		}
	}

	if session.Terminal == nil {
		color.Yellow("no terminal result")
		return
	}
	switch session.Terminal.Kind {
	case domain.TerminalSucceeded:
		color.Green("converged on attempt %d", session.Terminal.AttemptNumber)
	case domain.TerminalExhausted:
		color.Yellow("retry budget exhausted after attempt %d: %s",
			session.Terminal.AttemptNumber, session.Terminal.Reason)
	default:
		color.Red("fatal on attempt %d: %s", session.Terminal.AttemptNumber, session.Terminal.Reason)
	}
}
