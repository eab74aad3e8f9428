// Package config provides unified configuration loading for swarmlod.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/swarmlod/internal/adaptation"
	"github.com/nvandessel/swarmlod/internal/engine"
	"github.com/nvandessel/swarmlod/internal/memory"
	"github.com/nvandessel/swarmlod/internal/shield"
	"github.com/nvandessel/swarmlod/internal/signalgrid"
	"github.com/nvandessel/swarmlod/internal/tiering"
)

// Config contains all swarmlod configuration settings.
type Config struct {
	// World configures the signal grid dimensions and diffusion.
	World WorldConfig `json:"world" yaml:"world"`

	// Engine configures the tick orchestrator.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Tiering configures tier promotion and demotion.
	Tiering TieringConfig `json:"tiering" yaml:"tiering"`

	// Memory configures the episodic decay buffers.
	Memory MemoryConfig `json:"memory" yaml:"memory"`

	// Adaptation configures the pollination reinforcement loop.
	Adaptation AdaptationConfig `json:"adaptation" yaml:"adaptation"`

	// Shield configures the safety gate.
	Shield ShieldConfig `json:"shield" yaml:"shield"`

	// Dispatch configures the heavy-tier reasoner backend.
	Dispatch DispatchConfig `json:"dispatch" yaml:"dispatch"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// WorldConfig configures the shared signal field.
type WorldConfig struct {
	// Width and Height are the grid dimensions in cells.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`

	// DiffuseRate is the fraction of each cell's signal spread to its
	// neighbors per tick. Range: 0.0 to 1.0.
	DiffuseRate float64 `json:"diffuse_rate" yaml:"diffuse_rate"`

	// EvaporationRate is the fraction of signal lost per tick.
	// Range: 0.0 to 1.0.
	EvaporationRate float64 `json:"evaporation_rate" yaml:"evaporation_rate"`
}

// EngineConfig configures the tick orchestrator.
type EngineConfig struct {
	// Workers is the fan-out width for the batch tiers.
	Workers int `json:"workers" yaml:"workers"`

	// DT is the simulated time per tick.
	DT float64 `json:"dt" yaml:"dt"`

	// Seed seeds the deterministic random stream.
	Seed int64 `json:"seed" yaml:"seed"`

	// HeavyTimeout bounds a single heavy-tier dispatch.
	HeavyTimeout time.Duration `json:"heavy_timeout" yaml:"heavy_timeout"`

	// HeavyWait bounds the tick-boundary wait for in-flight dispatches.
	HeavyWait time.Duration `json:"heavy_wait" yaml:"heavy_wait"`

	// MaxRetries is the number of failed dispatches tolerated before a
	// heavy agent is demoted.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// TieringConfig configures tier transitions.
type TieringConfig struct {
	// WakeThreshold is the predicted-state gate for dormant promotion.
	WakeThreshold float64 `json:"wake_threshold" yaml:"wake_threshold"`

	// DemoteFloor is the activity below which ticks count toward demotion.
	DemoteFloor float64 `json:"demote_floor" yaml:"demote_floor"`

	// DemoteStreak is the number of consecutive low-activity ticks
	// required before demotion.
	DemoteStreak int `json:"demote_streak" yaml:"demote_streak"`
}

// MemoryConfig configures per-agent episodic memory.
type MemoryConfig struct {
	// BaseDecayRate is the per-tick decay rate for zero-surprise entries.
	BaseDecayRate float64 `json:"base_decay_rate" yaml:"base_decay_rate"`

	// MinRetention is the eviction threshold.
	MinRetention float64 `json:"min_retention" yaml:"min_retention"`

	// Capacity is the fixed per-agent buffer size.
	Capacity int `json:"capacity" yaml:"capacity"`
}

// AdaptationConfig configures the TD learning loop.
type AdaptationConfig struct {
	// Alpha is the learning rate.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// Gamma is the future discount factor.
	Gamma float64 `json:"gamma" yaml:"gamma"`

	// LowerBound and UpperBound hard-clamp the behavioral weight.
	LowerBound float64 `json:"lower_bound" yaml:"lower_bound"`
	UpperBound float64 `json:"upper_bound" yaml:"upper_bound"`

	// BrokerThreshold and HoarderThreshold are the share-probability bands
	// for role classification.
	BrokerThreshold  float64 `json:"broker_threshold" yaml:"broker_threshold"`
	HoarderThreshold float64 `json:"hoarder_threshold" yaml:"hoarder_threshold"`
}

// ShieldConfig configures the safety gate.
type ShieldConfig struct {
	// BlockThreshold is the match score at which a sequence is blocked.
	// Range: 0.0 to 1.0.
	BlockThreshold float64 `json:"block_threshold" yaml:"block_threshold"`
}

// DispatchConfig configures the heavy-tier reasoner backend.
type DispatchConfig struct {
	// Backend identifies the reasoner: "heuristic" (default) or "local".
	// "local" requires building with -tags llamacpp.
	Backend string `json:"backend" yaml:"backend"`

	// LocalModelPath is the path to a GGUF embedding model file.
	// Only used when backend is "local".
	LocalModelPath string `json:"local_model_path,omitempty" yaml:"local_model_path,omitempty"`

	// LocalLibPath is the directory containing yzma shared libraries.
	// Falls back to YZMA_LIB. Only used when backend is "local".
	LocalLibPath string `json:"local_lib_path,omitempty" yaml:"local_lib_path,omitempty"`

	// LocalGPULayers is the number of model layers to offload to GPU
	// (0 = CPU only). Only used when backend is "local".
	LocalGPULayers int `json:"local_gpu_layers,omitempty" yaml:"local_gpu_layers,omitempty"`
}

// LoggingConfig configures swarmlod's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables tick trace logging to .swarmlod/ticks.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	ecfg := engine.DefaultConfig()
	return &Config{
		World: WorldConfig{
			Width:           ecfg.Grid.Width,
			Height:          ecfg.Grid.Height,
			DiffuseRate:     ecfg.Grid.DiffuseRate,
			EvaporationRate: ecfg.Grid.EvaporationRate,
		},
		Engine: EngineConfig{
			Workers:      ecfg.Workers,
			DT:           ecfg.DT,
			Seed:         ecfg.Seed,
			HeavyTimeout: ecfg.HeavyTimeout,
			HeavyWait:    ecfg.HeavyWait,
			MaxRetries:   ecfg.MaxRetries,
		},
		Tiering: TieringConfig{
			WakeThreshold: ecfg.Tiering.WakeThreshold,
			DemoteFloor:   ecfg.Tiering.DemoteFloor,
			DemoteStreak:  ecfg.Tiering.DemoteStreak,
		},
		Memory: MemoryConfig{
			BaseDecayRate: ecfg.Tiering.Memory.BaseDecayRate,
			MinRetention:  ecfg.Tiering.Memory.MinRetention,
			Capacity:      ecfg.Tiering.Memory.Capacity,
		},
		Adaptation: AdaptationConfig{
			Alpha:            ecfg.Adaptation.Alpha,
			Gamma:            ecfg.Adaptation.Gamma,
			LowerBound:       ecfg.Adaptation.LowerBound,
			UpperBound:       ecfg.Adaptation.UpperBound,
			BrokerThreshold:  ecfg.Adaptation.BrokerThreshold,
			HoarderThreshold: ecfg.Adaptation.HoarderThreshold,
		},
		Shield: ShieldConfig{
			BlockThreshold: ecfg.Shield.BlockThreshold,
		},
		Dispatch: DispatchConfig{
			Backend: "heuristic",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment
// variables. Order: defaults -> ~/.swarmlod/config.yaml -> environment.
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".swarmlod", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid. Invalid values are
// rejected here, never clamped.
func (c *Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("world dimensions must be positive, got %dx%d", c.World.Width, c.World.Height)
	}
	if c.World.DiffuseRate < 0 || c.World.DiffuseRate > 1 {
		return fmt.Errorf("diffuse_rate must be between 0 and 1, got %f", c.World.DiffuseRate)
	}
	if c.World.EvaporationRate < 0 || c.World.EvaporationRate > 1 {
		return fmt.Errorf("evaporation_rate must be between 0 and 1, got %f", c.World.EvaporationRate)
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Engine.Workers)
	}
	if c.Engine.DT <= 0 {
		return fmt.Errorf("dt must be positive, got %f", c.Engine.DT)
	}
	if c.Engine.HeavyTimeout <= 0 || c.Engine.HeavyWait <= 0 {
		return fmt.Errorf("heavy_timeout and heavy_wait must be positive")
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", c.Engine.MaxRetries)
	}
	if c.Tiering.DemoteStreak <= 0 {
		return fmt.Errorf("demote_streak must be positive, got %d", c.Tiering.DemoteStreak)
	}
	if c.Tiering.WakeThreshold < 0 || c.Tiering.WakeThreshold > 1 {
		return fmt.Errorf("wake_threshold must be between 0 and 1, got %f", c.Tiering.WakeThreshold)
	}
	if c.Memory.Capacity <= 0 {
		return fmt.Errorf("memory capacity must be positive, got %d", c.Memory.Capacity)
	}
	if c.Memory.BaseDecayRate <= 0 {
		return fmt.Errorf("base_decay_rate must be positive, got %f", c.Memory.BaseDecayRate)
	}
	if c.Adaptation.LowerBound >= c.Adaptation.UpperBound {
		return fmt.Errorf("adaptation bounds inverted: [%f, %f]", c.Adaptation.LowerBound, c.Adaptation.UpperBound)
	}
	if c.Adaptation.HoarderThreshold >= c.Adaptation.BrokerThreshold {
		return fmt.Errorf("role bands inverted: hoarder %f >= broker %f", c.Adaptation.HoarderThreshold, c.Adaptation.BrokerThreshold)
	}
	if c.Shield.BlockThreshold <= 0 || c.Shield.BlockThreshold > 1 {
		return fmt.Errorf("block_threshold must be in (0, 1], got %f", c.Shield.BlockThreshold)
	}

	validBackends := map[string]bool{"": true, "heuristic": true, "local": true}
	if !validBackends[c.Dispatch.Backend] {
		return fmt.Errorf("invalid dispatch backend: %s (valid: heuristic, local, or empty)", c.Dispatch.Backend)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// ToEngine assembles the orchestrator configuration from the loaded
// settings, keeping defaults for fields the file does not expose.
func (c *Config) ToEngine() engine.Config {
	ecfg := engine.DefaultConfig()
	ecfg.Workers = c.Engine.Workers
	ecfg.DT = c.Engine.DT
	ecfg.Seed = c.Engine.Seed
	ecfg.HeavyTimeout = c.Engine.HeavyTimeout
	ecfg.HeavyWait = c.Engine.HeavyWait
	ecfg.MaxRetries = c.Engine.MaxRetries
	ecfg.Grid = signalgrid.Config{
		Width:           c.World.Width,
		Height:          c.World.Height,
		DiffuseRate:     c.World.DiffuseRate,
		EvaporationRate: c.World.EvaporationRate,
	}
	ecfg.Tiering = tiering.Config{
		WakeThreshold: c.Tiering.WakeThreshold,
		DemoteFloor:   c.Tiering.DemoteFloor,
		DemoteStreak:  c.Tiering.DemoteStreak,
		Memory: memory.Config{
			BaseDecayRate: c.Memory.BaseDecayRate,
			MinRetention:  c.Memory.MinRetention,
			Capacity:      c.Memory.Capacity,
		},
	}
	acfg := adaptation.DefaultConfig()
	acfg.Alpha = c.Adaptation.Alpha
	acfg.Gamma = c.Adaptation.Gamma
	acfg.LowerBound = c.Adaptation.LowerBound
	acfg.UpperBound = c.Adaptation.UpperBound
	acfg.BrokerThreshold = c.Adaptation.BrokerThreshold
	acfg.HoarderThreshold = c.Adaptation.HoarderThreshold
	ecfg.Adaptation = acfg
	ecfg.Shield = shield.Config{BlockThreshold: c.Shield.BlockThreshold}
	return ecfg
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SWARMLOD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Engine.Workers = n
		}
	}
	if v := os.Getenv("SWARMLOD_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Engine.Seed = n
		}
	}
	if v := os.Getenv("SWARMLOD_HEAVY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Engine.HeavyTimeout = d
		}
	}
	if v := os.Getenv("SWARMLOD_DISPATCH_BACKEND"); v != "" {
		config.Dispatch.Backend = v
	}
	if v := os.Getenv("SWARMLOD_LOCAL_MODEL_PATH"); v != "" {
		config.Dispatch.LocalModelPath = v
	}
	if v := os.Getenv("SWARMLOD_LOCAL_GPU_LAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Dispatch.LocalGPULayers = n
		}
	}
	if v := os.Getenv("SWARMLOD_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
