// Package config provides unified configuration loading for ideograph.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/ideograph/internal/attractors"
	"github.com/nvandessel/ideograph/internal/backup"
	"github.com/nvandessel/ideograph/internal/graph"
	"github.com/nvandessel/ideograph/internal/patterns"
	"github.com/nvandessel/ideograph/internal/probing"
)

// Config contains all ideograph configuration settings.
type Config struct {
	// Graph contains the learning parameters applied on every walk step.
	Graph GraphConfig `json:"graph" yaml:"graph"`

	// Attractors contains the thresholds for attractor detection.
	Attractors AttractorConfig `json:"attractors" yaml:"attractors"`

	// Voids contains the thresholds for void detection.
	Voids VoidConfig `json:"voids" yaml:"voids"`

	// Probing contains the result sizes of the adaptive prober.
	Probing ProbingConfig `json:"probing" yaml:"probing"`

	// Patterns configures canonical trajectory matching.
	Patterns PatternConfig `json:"patterns" yaml:"patterns"`

	// Simulation configures population runs.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Store locates the persisted graph.
	Store StoreConfig `json:"store" yaml:"store"`

	// Backup configures graph backups and their retention.
	Backup BackupConfig `json:"backup" yaml:"backup"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// GraphConfig mirrors graph.Config.
type GraphConfig struct {
	Name         string  `json:"name" yaml:"name"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	DecayRate    float64 `json:"decay_rate" yaml:"decay_rate"`
}

// AttractorConfig sets when a heavily visited position counts as an attractor.
type AttractorConfig struct {
	MinVisits   int     `json:"min_visits" yaml:"min_visits"`
	MinStrength float64 `json:"min_strength" yaml:"min_strength"`
}

// VoidConfig sets when an unvisited but expected position counts as a void.
type VoidConfig struct {
	MinExpected  float64 `json:"min_expected" yaml:"min_expected"`
	MinVoidRatio float64 `json:"min_void_ratio" yaml:"min_void_ratio"`
}

// ProbingConfig sets how many candidates the prober returns.
type ProbingConfig struct {
	InformativeCount int `json:"informative_count" yaml:"informative_count"`
	UncertainCount   int `json:"uncertain_count" yaml:"uncertain_count"`
}

// PatternConfig configures the canonical pattern matcher.
type PatternConfig struct {
	// Threshold is the minimum match score. Range: 0.0 to 1.0
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// Path is an optional YAML catalog replacing the built-in patterns.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// SimulationConfig configures population simulations.
type SimulationConfig struct {
	// Walkers is the population size.
	Walkers int `json:"walkers" yaml:"walkers"`

	// Noise is the probability a simulated walker departs from its
	// archetype on a fork. Range: 0.0 to 1.0
	Noise float64 `json:"noise" yaml:"noise"`

	// Workers bounds how many walkers step concurrently.
	Workers int `json:"workers" yaml:"workers"`

	// Seed makes runs reproducible. Zero picks a random seed.
	Seed int64 `json:"seed" yaml:"seed"`
}

// StoreConfig locates the persisted graph.
type StoreConfig struct {
	// Path is the graph file. Supports ${VAR} syntax for env vars.
	// The extension picks the backend: .db/.sqlite for SQLite, .yaml/.yml
	// or .json for documents. Empty means ~/.ideograph/graph.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// BackupConfig configures graph backups. A backup survives pruning when
// any one of the limits keeps it.
type BackupConfig struct {
	// Dir holds the backups. Supports ${VAR}. Empty means ~/.ideograph/backups.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// MaxCount keeps this many of the newest backups. 0 disables the limit.
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge keeps backups younger than this, e.g. "30d", "2w", "72h".
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`

	// MaxTotalSize keeps the newest backups that fit, e.g. "100MB".
	MaxTotalSize string `json:"max_total_size,omitempty" yaml:"max_total_size,omitempty"`
}

// LoggingConfig configures ideograph's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to decisions.jsonl next to the store.
	// "trace" additionally includes per-edge walk detail.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	g := graph.DefaultConfig()
	d := attractors.DefaultOptions()
	return &Config{
		Graph: GraphConfig{
			Name:         g.Name,
			LearningRate: g.LearningRate,
			DecayRate:    g.DecayRate,
		},
		Attractors: AttractorConfig{
			MinVisits:   d.MinVisits,
			MinStrength: d.MinStrength,
		},
		Voids: VoidConfig{
			MinExpected:  d.MinExpected,
			MinVoidRatio: d.MinVoidRatio,
		},
		Probing: ProbingConfig{
			InformativeCount: probing.DefaultInformativeCount,
			UncertainCount:   probing.DefaultUncertainCount,
		},
		Patterns: PatternConfig{
			Threshold: patterns.DefaultThreshold,
		},
		Simulation: SimulationConfig{
			Walkers: 100,
			Noise:   0.1,
			Workers: 4,
		},
		Backup: BackupConfig{
			MaxCount: 10,
			MaxAge:   "30d",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GraphConfig converts the graph section into graph.Config.
func (c *Config) GraphConfig() graph.Config {
	return graph.Config{
		Name:         c.Graph.Name,
		LearningRate: c.Graph.LearningRate,
		DecayRate:    c.Graph.DecayRate,
	}
}

// DetectorOptions converts the attractor and void sections into detector options.
func (c *Config) DetectorOptions() attractors.Options {
	return attractors.Options{
		MinVisits:    c.Attractors.MinVisits,
		MinStrength:  c.Attractors.MinStrength,
		MinExpected:  c.Voids.MinExpected,
		MinVoidRatio: c.Voids.MinVoidRatio,
	}
}

// Matcher builds the pattern matcher, reading Patterns.Path when set.
func (c *Config) Matcher() (*patterns.Matcher, error) {
	if c.Patterns.Path == "" {
		return patterns.NewMatcher(c.Patterns.Threshold, patterns.Defaults()...), nil
	}
	ps, err := patterns.Load(c.Patterns.Path)
	if err != nil {
		return nil, err
	}
	return patterns.NewMatcher(c.Patterns.Threshold, ps...), nil
}

// BackupDir returns the configured backup directory or the default one.
func (c *Config) BackupDir() (string, error) {
	if c.Backup.Dir != "" {
		return c.Backup.Dir, nil
	}
	return backup.DefaultDir()
}

// RetentionPolicy builds the backup retention policy. Nil means keep everything.
func (c *Config) RetentionPolicy() (backup.RetentionPolicy, error) {
	var maxAge time.Duration
	if c.Backup.MaxAge != "" {
		d, err := backup.ParseDuration(c.Backup.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("backup max_age: %w", err)
		}
		maxAge = d
	}
	var maxSize int64
	if c.Backup.MaxTotalSize != "" {
		n, err := backup.ParseSize(c.Backup.MaxTotalSize)
		if err != nil {
			return nil, fmt.Errorf("backup max_total_size: %w", err)
		}
		maxSize = n
	}
	return backup.NewPolicy(c.Backup.MaxCount, maxAge, maxSize), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.ideograph/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".ideograph", "config.yaml")
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

	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Patterns.Path = expandEnvVars(config.Patterns.Path)
	config.Backup.Dir = expandEnvVars(config.Backup.Dir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Graph.LearningRate <= 0 || c.Graph.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be in (0, 1], got %f", c.Graph.LearningRate)
	}
	if c.Graph.DecayRate < 0 || c.Graph.DecayRate > 1 {
		return fmt.Errorf("decay_rate must be between 0 and 1, got %f", c.Graph.DecayRate)
	}

	if c.Attractors.MinVisits < 0 {
		return fmt.Errorf("min_visits must be non-negative, got %d", c.Attractors.MinVisits)
	}
	if c.Attractors.MinStrength < 0 || c.Attractors.MinStrength > 1 {
		return fmt.Errorf("min_strength must be between 0 and 1, got %f", c.Attractors.MinStrength)
	}
	if c.Voids.MinExpected < 0 {
		return fmt.Errorf("min_expected must be non-negative, got %f", c.Voids.MinExpected)
	}
	if c.Voids.MinVoidRatio < 0 || c.Voids.MinVoidRatio > 1 {
		return fmt.Errorf("min_void_ratio must be between 0 and 1, got %f", c.Voids.MinVoidRatio)
	}

	if c.Probing.InformativeCount < 1 || c.Probing.UncertainCount < 1 {
		return fmt.Errorf("probing counts must be positive, got informative=%d uncertain=%d",
			c.Probing.InformativeCount, c.Probing.UncertainCount)
	}

	if c.Patterns.Threshold < 0 || c.Patterns.Threshold > 1 {
		return fmt.Errorf("pattern threshold must be between 0 and 1, got %f", c.Patterns.Threshold)
	}

	if c.Simulation.Walkers < 0 {
		return fmt.Errorf("simulation walkers must be non-negative, got %d", c.Simulation.Walkers)
	}
	if c.Simulation.Noise < 0 || c.Simulation.Noise > 1 {
		return fmt.Errorf("simulation noise must be between 0 and 1, got %f", c.Simulation.Noise)
	}
	if c.Simulation.Workers < 1 {
		return fmt.Errorf("simulation workers must be positive, got %d", c.Simulation.Workers)
	}

	if c.Backup.MaxCount < 0 {
		return fmt.Errorf("backup max_count must be non-negative, got %d", c.Backup.MaxCount)
	}
	if _, err := c.RetentionPolicy(); err != nil {
		return err
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("IDEOGRAPH_LEARNING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Graph.LearningRate = f
		}
	}

	if v := os.Getenv("IDEOGRAPH_STORE_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("IDEOGRAPH_BACKUP_DIR"); v != "" {
		config.Backup.Dir = v
	}

	if v := os.Getenv("IDEOGRAPH_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("IDEOGRAPH_MIN_VISITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Attractors.MinVisits = n
		}
	}

	if v := os.Getenv("IDEOGRAPH_MIN_VOID_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Voids.MinVoidRatio = f
		}
	}

	if v := os.Getenv("IDEOGRAPH_SIMULATION_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
