// Package config provides unified configuration loading for neurosim.
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

	"github.com/nvandessel/neurosim/internal/backup"
	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/coordinator"
	"github.com/nvandessel/neurosim/internal/engine"
	"github.com/nvandessel/neurosim/internal/logging"
	"github.com/nvandessel/neurosim/internal/report"
	"github.com/nvandessel/neurosim/internal/simulation"
	"github.com/nvandessel/neurosim/internal/store"
)

// ConfigFilename is the config file name inside ~/.neurosim.
const ConfigFilename = "config.yaml"

// NeuroSimConfig contains all neurosim configuration settings.
type NeuroSimConfig struct {
	// Simulation contains the run parameters.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Logging contains settings for operational and per-round logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Archive controls where finished runs are recorded.
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Backup controls archive exports and their retention.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// SimulationConfig holds the parameters of a run.
type SimulationConfig struct {
	// Workers is the number of partitions run in parallel.
	Workers int `json:"workers" yaml:"workers"`

	// Budget is the number of simulated time units to run.
	Budget int `json:"budget" yaml:"budget"`

	// BudgetPolicy decides what a budget <= 0 means: "zero" runs nothing,
	// "forever" runs until interrupted.
	BudgetPolicy constants.BudgetPolicy `json:"budget_policy" yaml:"budget_policy"`

	// Seed makes a run reproducible. Zero picks a random seed.
	Seed uint64 `json:"seed" yaml:"seed"`

	// ClockMode is "rounds" or "wallclock".
	ClockMode constants.ClockMode `json:"clock_mode" yaml:"clock_mode"`

	// RoundsPerUnit is the rounds per simulated unit in rounds mode.
	RoundsPerUnit int `json:"rounds_per_unit" yaml:"rounds_per_unit"`

	// Quantum is the wall time per simulated unit in wallclock mode.
	Quantum time.Duration `json:"quantum" yaml:"quantum"`

	// RoundTimeout bounds each barrier wait. Zero disables it.
	RoundTimeout time.Duration `json:"round_timeout" yaml:"round_timeout"`

	// InboxCapacity is the per-node inbox size.
	InboxCapacity int `json:"inbox_capacity" yaml:"inbox_capacity"`

	// ReportFormat is "text" or "json".
	ReportFormat report.Format `json:"report_format" yaml:"report_format"`

	// ReportPath is where the report is written.
	ReportPath string `json:"report_path" yaml:"report_path"`
}

// LoggingConfig configures neurosim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "error", "warn", "info" (default),
	// "debug" or "trace". "debug" and above also write per-round records
	// to rounds.jsonl in TraceDir.
	Level string `json:"level" yaml:"level"`

	// TraceDir is the directory for rounds.jsonl. Empty disables the trace.
	TraceDir string `json:"trace_dir,omitempty" yaml:"trace_dir,omitempty"`
}

// ArchiveConfig configures the run archive.
type ArchiveConfig struct {
	// Enabled records every finished run.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the archive location. Empty means ~/.neurosim/runs.db; a
	// .jsonl path selects the JSON Lines archive.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// BackupConfig configures 'neurosim runs export'.
type BackupConfig struct {
	// Dir receives exports without an explicit path. Empty means
	// ~/.neurosim/backups.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Retention limits the exports kept in Dir.
	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// RetentionConfig limits kept exports. A backup survives if any limit
// keeps it.
type RetentionConfig struct {
	MaxCount     int    `json:"max_count" yaml:"max_count"`
	MaxAge       string `json:"max_age,omitempty" yaml:"max_age,omitempty"`
	MaxTotalSize string `json:"max_total_size,omitempty" yaml:"max_total_size,omitempty"`
}

// Default returns a NeuroSimConfig with sensible defaults.
func Default() *NeuroSimConfig {
	return &NeuroSimConfig{
		Simulation: SimulationConfig{
			Workers:       1,
			BudgetPolicy:  constants.BudgetZero,
			ClockMode:     constants.ClockRounds,
			RoundsPerUnit: constants.DefaultRoundsPerUnit,
			Quantum:       constants.DefaultWallClockQuantum,
			InboxCapacity: constants.DefaultInboxCapacity,
			ReportFormat:  report.FormatText,
			ReportPath:    constants.DefaultReportFilename,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Backup: BackupConfig{
			Retention: RetentionConfig{MaxCount: backup.DefaultMaxCount},
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.neurosim/config.yaml -> environment variables
func Load() (*NeuroSimConfig, error) {
	config := Default()

	dir, err := store.GlobalNeurosimPath()
	if err == nil {
		configPath := filepath.Join(dir, ConfigFilename)
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Resolve loads path when it is set, otherwise the default file, and
// applies environment variable overrides either way.
func Resolve(path string) (*NeuroSimConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*NeuroSimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Archive.Path = expandPath(config.Archive.Path)
	config.Logging.TraceDir = expandPath(config.Logging.TraceDir)
	config.Backup.Dir = expandPath(config.Backup.Dir)
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *NeuroSimConfig) Validate() error {
	s := c.Simulation
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	if s.InboxCapacity < 1 {
		return fmt.Errorf("inbox_capacity must be at least 1, got %d", s.InboxCapacity)
	}
	if s.RoundTimeout < 0 {
		return fmt.Errorf("round_timeout must be non-negative, got %v", s.RoundTimeout)
	}
	if _, err := report.ParseFormat(string(s.ReportFormat)); err != nil {
		return err
	}
	if err := c.ClockConfig().Validate(); err != nil {
		return err
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: error, warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}
	if _, err := c.Retention(); err != nil {
		return fmt.Errorf("backup retention: %w", err)
	}
	return nil
}

// Retention parses the export retention limits.
func (c *NeuroSimConfig) Retention() (backup.Retention, error) {
	r := c.Backup.Retention
	return backup.ParseRetention(r.MaxCount, r.MaxAge, r.MaxTotalSize)
}

// BackupDir resolves the export directory, falling back to
// ~/.neurosim/backups.
func (c *NeuroSimConfig) BackupDir() (string, error) {
	if c.Backup.Dir != "" {
		return c.Backup.Dir, nil
	}
	return backup.DefaultBackupDir()
}

// ClockConfig returns the clock settings of the simulation section.
func (c *NeuroSimConfig) ClockConfig() coordinator.ClockConfig {
	s := c.Simulation
	return coordinator.ClockConfig{
		Mode:          s.ClockMode,
		RoundsPerUnit: s.RoundsPerUnit,
		Quantum:       s.Quantum,
		Budget:        s.Budget,
		Policy:        s.BudgetPolicy,
	}
}

// RunConfig builds the simulation configuration. Logger and Tracer are
// left for the caller.
func (c *NeuroSimConfig) RunConfig() simulation.Config {
	cfg := simulation.DefaultConfig()
	cfg.Workers = c.Simulation.Workers
	cfg.Seed = c.Simulation.Seed
	cfg.Clock = c.ClockConfig()
	cfg.Engine = engine.Config{InboxCapacity: c.Simulation.InboxCapacity}
	cfg.RoundTimeout = c.Simulation.RoundTimeout
	return cfg
}

// ArchivePath resolves the archive location, falling back to
// ~/.neurosim/runs.db.
func (c *NeuroSimConfig) ArchivePath() (string, error) {
	if c.Archive.Path != "" {
		return c.Archive.Path, nil
	}
	return store.DefaultArchivePath()
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *NeuroSimConfig) error {
	s := &config.Simulation

	if v := os.Getenv("NEUROSIM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NEUROSIM_WORKERS: %w", err)
		}
		s.Workers = n
	}

	if v := os.Getenv("NEUROSIM_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NEUROSIM_BUDGET: %w", err)
		}
		s.Budget = n
	}

	if v := os.Getenv("NEUROSIM_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("NEUROSIM_SEED: %w", err)
		}
		s.Seed = n
	}

	if v := os.Getenv("NEUROSIM_CLOCK_MODE"); v != "" {
		s.ClockMode = constants.ClockMode(strings.ToLower(v))
	}

	if v := os.Getenv("NEUROSIM_ROUND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NEUROSIM_ROUND_TIMEOUT: %w", err)
		}
		s.RoundTimeout = d
	}

	if v := os.Getenv("NEUROSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("NEUROSIM_ARCHIVE"); v != "" {
		switch strings.ToLower(v) {
		case "0", "false", "off":
			config.Archive.Enabled = false
		case "1", "true", "on":
			config.Archive.Enabled = true
		default:
			config.Archive.Enabled = true
			config.Archive.Path = expandPath(v)
		}
	}
	return nil
}

// expandPath expands ${VAR} patterns and a leading ~/ in a path.
func expandPath(p string) string {
	if strings.Contains(p, "${") {
		p = os.Expand(p, os.Getenv)
	}
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, rest)
		}
	}
	return p
}
