package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/ideograph/internal/backup"
)

func TestDefault(t *testing.T) {
	config := Default()

	// Graph defaults
	if config.Graph.LearningRate != 0.1 {
		t.Errorf("expected LearningRate 0.1, got %f", config.Graph.LearningRate)
	}
	if config.Graph.DecayRate != 0.05 {
		t.Errorf("expected DecayRate 0.05, got %f", config.Graph.DecayRate)
	}

	// Detection defaults
	if config.Attractors.MinVisits != 10 {
		t.Errorf("expected MinVisits 10, got %d", config.Attractors.MinVisits)
	}
	if config.Attractors.MinStrength != 0.3 {
		t.Errorf("expected MinStrength 0.3, got %f", config.Attractors.MinStrength)
	}
	if config.Voids.MinExpected != 5 {
		t.Errorf("expected MinExpected 5, got %f", config.Voids.MinExpected)
	}
	if config.Voids.MinVoidRatio != 0.7 {
		t.Errorf("expected MinVoidRatio 0.7, got %f", config.Voids.MinVoidRatio)
	}

	// Probing defaults
	if config.Probing.InformativeCount != 3 || config.Probing.UncertainCount != 5 {
		t.Errorf("expected probing counts 3/5, got %d/%d",
			config.Probing.InformativeCount, config.Probing.UncertainCount)
	}

	if config.Patterns.Threshold != 0.6 {
		t.Errorf("expected pattern Threshold 0.6, got %f", config.Patterns.Threshold)
	}

	if config.Backup.MaxCount != 10 || config.Backup.MaxAge != "30d" {
		t.Errorf("expected backup retention 10/30d, got %d/%s", config.Backup.MaxCount, config.Backup.MaxAge)
	}

	// Logging defaults
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
graph:
  name: campus
  learning_rate: 0.2
attractors:
  min_visits: 25
voids:
  min_void_ratio: 0.5
simulation:
  walkers: 40
  seed: 7
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Graph.Name != "campus" {
		t.Errorf("expected Name 'campus', got '%s'", config.Graph.Name)
	}
	if config.Graph.LearningRate != 0.2 {
		t.Errorf("expected LearningRate 0.2, got %f", config.Graph.LearningRate)
	}
	// Unset fields keep their defaults.
	if config.Graph.DecayRate != 0.05 {
		t.Errorf("expected DecayRate default 0.05, got %f", config.Graph.DecayRate)
	}
	if config.Attractors.MinVisits != 25 {
		t.Errorf("expected MinVisits 25, got %d", config.Attractors.MinVisits)
	}
	if config.Attractors.MinStrength != 0.3 {
		t.Errorf("expected MinStrength default 0.3, got %f", config.Attractors.MinStrength)
	}
	if config.Simulation.Walkers != 40 || config.Simulation.Seed != 7 {
		t.Errorf("expected simulation 40 walkers seed 7, got %d seed %d",
			config.Simulation.Walkers, config.Simulation.Seed)
	}

	opts := config.DetectorOptions()
	if opts.MinVisits != 25 || opts.MinVoidRatio != 0.5 || opts.MinExpected != 5 {
		t.Errorf("unexpected detector options: %+v", opts)
	}
	gc := config.GraphConfig()
	if gc.Name != "campus" || gc.LearningRate != 0.2 {
		t.Errorf("unexpected graph config: %+v", gc)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_IDEOGRAPH_HOME", "/data/ideograph")

	configContent := `
store:
  path: ${TEST_IDEOGRAPH_HOME}/graph.db
patterns:
  path: ${TEST_IDEOGRAPH_HOME}/patterns.yaml
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Store.Path != "/data/ideograph/graph.db" {
		t.Errorf("expected expanded store path, got '%s'", config.Store.Path)
	}
	if config.Patterns.Path != "/data/ideograph/patterns.yaml" {
		t.Errorf("expected expanded patterns path, got '%s'", config.Patterns.Path)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("IDEOGRAPH_LEARNING_RATE", "0.3")
	t.Setenv("IDEOGRAPH_STORE_PATH", "/tmp/graph.yaml")
	t.Setenv("IDEOGRAPH_MIN_VISITS", "4")
	t.Setenv("IDEOGRAPH_MIN_VOID_RATIO", "0.9")
	t.Setenv("IDEOGRAPH_SIMULATION_SEED", "42")

	config := Default()
	applyEnvOverrides(config)

	if config.Graph.LearningRate != 0.3 {
		t.Errorf("expected LearningRate 0.3 from env, got %f", config.Graph.LearningRate)
	}
	if config.Store.Path != "/tmp/graph.yaml" {
		t.Errorf("expected store path from env, got '%s'", config.Store.Path)
	}
	if config.Attractors.MinVisits != 4 {
		t.Errorf("expected MinVisits 4 from env, got %d", config.Attractors.MinVisits)
	}
	if config.Voids.MinVoidRatio != 0.9 {
		t.Errorf("expected MinVoidRatio 0.9 from env, got %f", config.Voids.MinVoidRatio)
	}
	if config.Simulation.Seed != 42 {
		t.Errorf("expected Seed 42 from env, got %d", config.Simulation.Seed)
	}
}

func TestEnvOverrides_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("IDEOGRAPH_LEARNING_RATE", "fast")
	t.Setenv("IDEOGRAPH_MIN_VISITS", "many")

	config := Default()
	applyEnvOverrides(config)

	if config.Graph.LearningRate != 0.1 {
		t.Errorf("expected LearningRate to stay 0.1, got %f", config.Graph.LearningRate)
	}
	if config.Attractors.MinVisits != 10 {
		t.Errorf("expected MinVisits to stay 10, got %d", config.Attractors.MinVisits)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero learning rate", func(c *Config) { c.Graph.LearningRate = 0 }, "learning_rate"},
		{"learning rate above one", func(c *Config) { c.Graph.LearningRate = 1.5 }, "learning_rate"},
		{"negative decay", func(c *Config) { c.Graph.DecayRate = -0.1 }, "decay_rate"},
		{"negative visits", func(c *Config) { c.Attractors.MinVisits = -1 }, "min_visits"},
		{"strength above one", func(c *Config) { c.Attractors.MinStrength = 2 }, "min_strength"},
		{"negative expected", func(c *Config) { c.Voids.MinExpected = -3 }, "min_expected"},
		{"void ratio above one", func(c *Config) { c.Voids.MinVoidRatio = 1.1 }, "min_void_ratio"},
		{"zero probe count", func(c *Config) { c.Probing.UncertainCount = 0 }, "probing counts"},
		{"pattern threshold", func(c *Config) { c.Patterns.Threshold = -0.2 }, "pattern threshold"},
		{"negative walkers", func(c *Config) { c.Simulation.Walkers = -5 }, "walkers"},
		{"noise above one", func(c *Config) { c.Simulation.Noise = 1.5 }, "noise"},
		{"zero workers", func(c *Config) { c.Simulation.Workers = 0 }, "workers"},
		{"negative backup count", func(c *Config) { c.Backup.MaxCount = -1 }, "max_count"},
		{"bad backup age", func(c *Config) { c.Backup.MaxAge = "soon" }, "max_age"},
		{"bad backup size", func(c *Config) { c.Backup.MaxTotalSize = "lots" }, "max_total_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_BoundaryValues(t *testing.T) {
	config := Default()
	config.Graph.LearningRate = 1
	config.Graph.DecayRate = 0
	config.Attractors.MinStrength = 0
	config.Voids.MinVoidRatio = 1
	config.Simulation.Walkers = 0
	config.Simulation.Noise = 1

	if err := config.Validate(); err != nil {
		t.Errorf("expected boundary values to validate, got %v", err)
	}
}

func TestEnvOverrides_LogLevel(t *testing.T) {
	t.Setenv("IDEOGRAPH_LOG_LEVEL", "debug")

	config := Default()
	applyEnvOverrides(config)

	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug' from env, got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile_LoggingConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: trace
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Logging.Level != "trace" {
		t.Errorf("expected Logging.Level 'trace', got '%s'", config.Logging.Level)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	config := Default()
	config.Logging.Level = "verbose"
	if err := config.Validate(); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	for _, level := range []string{"", "info", "debug", "trace"} {
		config := Default()
		config.Logging.Level = level
		if err := config.Validate(); err != nil {
			t.Errorf("expected level %q to be valid, got error: %v", level, err)
		}
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("graph: [not valid"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestMatcher(t *testing.T) {
	config := Default()
	m, err := config.Matcher()
	if err != nil {
		t.Fatalf("Matcher() with built-in patterns: %v", err)
	}
	if len(m.Patterns()) == 0 {
		t.Error("expected built-in patterns")
	}

	path := filepath.Join(t.TempDir(), "patterns.yaml")
	catalog := "patterns:\n  - name: planner\n    required: [root_a]\n"
	if err := os.WriteFile(path, []byte(catalog), 0600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	config.Patterns.Path = path
	m, err = config.Matcher()
	if err != nil {
		t.Fatalf("Matcher() with catalog: %v", err)
	}
	if ps := m.Patterns(); len(ps) != 1 || ps[0].Name != "planner" {
		t.Errorf("expected the catalog's single pattern, got %+v", ps)
	}

	config.Patterns.Path = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := config.Matcher(); err == nil {
		t.Error("expected error for missing catalog")
	}
}

func TestRetentionPolicy(t *testing.T) {
	config := Default()
	policy, err := config.RetentionPolicy()
	if err != nil {
		t.Fatalf("RetentionPolicy() error = %v", err)
	}
	if _, ok := policy.(*backup.CompositePolicy); !ok {
		t.Errorf("default policy = %T, want count and age combined", policy)
	}

	config.Backup = BackupConfig{}
	policy, err = config.RetentionPolicy()
	if err != nil || policy != nil {
		t.Errorf("no limits: got %v, %v; want nil, nil", policy, err)
	}
}

func TestBackupDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("IDEOGRAPH_BACKUP_DIR", "/tmp/ideograph-backups")

	config := Default()
	dir, err := config.BackupDir()
	if err != nil {
		t.Fatalf("BackupDir() error = %v", err)
	}
	if filepath.Base(dir) != "backups" {
		t.Errorf("default BackupDir() = %q", dir)
	}

	applyEnvOverrides(config)
	if dir, _ := config.BackupDir(); dir != "/tmp/ideograph-backups" {
		t.Errorf("BackupDir() = %q, want env override", dir)
	}
}
