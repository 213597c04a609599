package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheFermiSea/crystalmath/internal/config"
	"github.com/TheFermiSea/crystalmath/internal/estimate"
	"github.com/TheFermiSea/crystalmath/internal/ipc"
	"github.com/TheFermiSea/crystalmath/internal/solver"
	"github.com/TheFermiSea/crystalmath/internal/store"
	"github.com/TheFermiSea/crystalmath/internal/workflow"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the convergence engine HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file (JSON or YAML)")
	return cmd
}

func runServe(configPath string) error {
	// Resolve config path: --config flag > CRYSTALMATH_CONFIG env > auto-discover.
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

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	// Wire the orchestration stack.
	backend := solver.NewLocalBackend(cfg.Solver.Command, cfg.Solver.Args, cfg.Solver.WorkDir)
	parser := solver.NewTextParser()
	orch := workflow.NewOrchestrator(backend, parser, cfg.DiagnoseThresholds())
	orch.AttemptTimeout = time.Duration(cfg.AttemptTimeoutSec) * time.Second
	mgr := workflow.NewManager(orch, st, cfg.MaxConcurrentSessions)

	handler := &ipc.Handler{
		Manager:            mgr,
		DB:                 st.DB,
		Sessions:           st.Sessions,
		Estimates:          st.Estimates,
		Estimator:          estimate.NewEstimator(),
		DefaultMaxAttempts: cfg.DefaultMaxAttempts,
	}

	srv := ipc.NewServer(handler, cfg.ListenAddr)

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("crystalmath engine listening on %s", cfg.ListenAddr)

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// discoverConfig looks for a config file next to the executable, then in the cwd.
func discoverConfig() string {
	names := []string{"config.json", "config.yaml", "config.yml"}

	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	for _, name := range names {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
