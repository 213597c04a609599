// Package config loads the engine's runtime configuration from JSON or YAML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TheFermiSea/crystalmath/internal/diagnose"
	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// SolverConfig defines how to launch the solver process.
type SolverConfig struct {
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args" yaml:"args"`
	WorkDir string   `json:"work_dir" yaml:"work_dir"`
}

// ThresholdConfig overrides the classifier's tuned cutoffs. Zero-valued
// fields fall back to the defaults.
type ThresholdConfig struct {
	ConvergenceTol    float64 `json:"convergence_tol" yaml:"convergence_tol"`
	SoftTolFactor     float64 `json:"soft_tol_factor" yaml:"soft_tol_factor"`
	SlowDecayRatio    float64 `json:"slow_decay_ratio" yaml:"slow_decay_ratio"`
	OscillationWindow int     `json:"oscillation_window" yaml:"oscillation_window"`
	SmallGapEv        float64 `json:"small_gap_ev" yaml:"small_gap_ev"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath                string          `json:"db_path" yaml:"db_path"`
	ListenAddr            string          `json:"listen_addr" yaml:"listen_addr"`
	Solver                SolverConfig    `json:"solver" yaml:"solver"`
	AttemptTimeoutSec     int             `json:"attempt_timeout_sec" yaml:"attempt_timeout_sec"`
	DefaultMaxAttempts    int             `json:"default_max_attempts" yaml:"default_max_attempts"`
	MaxConcurrentSessions int             `json:"max_concurrent_sessions" yaml:"max_concurrent_sessions"`
	Thresholds            ThresholdConfig `json:"thresholds" yaml:"thresholds"`
}

// Load reads a config file (JSON, or YAML for .yaml/.yml), applies defaults,
// and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config JSON: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "crystalmath.db"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":9407"
	}
	if c.AttemptTimeoutSec == 0 {
		c.AttemptTimeoutSec = 86400
	}
	if c.DefaultMaxAttempts == 0 {
		c.DefaultMaxAttempts = 5
	}
	if c.MaxConcurrentSessions == 0 {
		c.MaxConcurrentSessions = 4
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.Solver.Command == "" {
		problems = append(problems, "solver.command is required")
	}
	if c.AttemptTimeoutSec < 0 {
		problems = append(problems, "attempt_timeout_sec must not be negative")
	}
	if c.DefaultMaxAttempts < 1 {
		problems = append(problems, "default_max_attempts must be positive")
	}
	if c.MaxConcurrentSessions < 1 {
		problems = append(problems, "max_concurrent_sessions must be positive")
	}
	if r := c.Thresholds.SlowDecayRatio; r < 0 || r >= 1 {
		problems = append(problems, "thresholds.slow_decay_ratio must be in [0, 1)")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}

// DiagnoseThresholds merges the configured overrides onto the defaults.
func (c *Config) DiagnoseThresholds() diagnose.Thresholds {
	t := diagnose.DefaultThresholds()
	if c.Thresholds.ConvergenceTol > 0 {
		t.ConvergenceTol = c.Thresholds.ConvergenceTol
	}
	if c.Thresholds.SoftTolFactor > 0 {
		t.SoftTolFactor = c.Thresholds.SoftTolFactor
	}
	if c.Thresholds.SlowDecayRatio > 0 {
		t.SlowDecayRatio = c.Thresholds.SlowDecayRatio
	}
	if c.Thresholds.OscillationWindow > 0 {
		t.OscillationWindow = c.Thresholds.OscillationWindow
	}
	if c.Thresholds.SmallGapEv > 0 {
		t.SmallGapEv = c.Thresholds.SmallGapEv
	}
	return t
}
