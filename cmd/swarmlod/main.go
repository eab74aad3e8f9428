package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/swarmlod/internal/config"
	"github.com/nvandessel/swarmlod/internal/dispatch"
	"github.com/nvandessel/swarmlod/internal/engine"
	"github.com/nvandessel/swarmlod/internal/logging"
)

// Build info, set via -ldflags.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "swarmlod",
		Short: "Tier-aware swarm simulation engine",
		Long: `swarmlod runs a tick-driven simulation over large agent populations.

Agents move between compute tiers (dormant, simplified, full, heavy) based
on environmental triggers and activity, so per-tick cost concentrates on
the agents that currently matter.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for tool consumption)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ~/.swarmlod/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory for checkpoints and logs (default: ~/.swarmlod)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newServeCmd(),
		newExportCmd(),
		newCheckpointCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: an explicit --config file
// when given, otherwise defaults plus ~/.swarmlod/config.yaml plus
// environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolveDataDir returns the directory for checkpoints and trace logs.
func resolveDataDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("data-dir")
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".swarmlod"), nil
}

// newDispatcher builds the heavy-tier reasoner from configuration. A "local"
// backend that is unavailable (not compiled in, or model missing) falls back
// to the heuristic backend with a warning.
func newDispatcher(cfg *config.Config) dispatch.Dispatcher {
	if cfg.Dispatch.Backend != "local" {
		return &dispatch.HeuristicDispatcher{}
	}

	local := dispatch.NewLocalDispatcher(dispatch.LocalConfig{
		LibPath:   cfg.Dispatch.LocalLibPath,
		ModelPath: cfg.Dispatch.LocalModelPath,
		GPULayers: cfg.Dispatch.LocalGPULayers,
	})
	if !local.Available() {
		fmt.Fprintln(os.Stderr, "warning: local dispatch backend unavailable, falling back to heuristic")
		local.Close()
		return &dispatch.HeuristicDispatcher{}
	}
	return local
}

// buildEngine assembles an engine from the loaded configuration.
func buildEngine(cfg *config.Config) (*engine.Engine, dispatch.Dispatcher, error) {
	d := newDispatcher(cfg)
	log := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	eng, err := engine.New(cfg.ToEngine(), d, log)
	if err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("creating engine: %w", err)
	}
	return eng, d, nil
}
