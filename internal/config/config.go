package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GridConfig describes the daily time grid of the practice.
type GridConfig struct {
	// StartHour is the first bookable hour (24h clock).
	StartHour int `yaml:"start_hour" json:"start_hour"`
	// EndHour is the end of the grid, exclusive.
	EndHour int `yaml:"end_hour" json:"end_hour"`
	// StepMinutes is the slot granularity.
	StepMinutes int `yaml:"step_minutes" json:"step_minutes"`
}

// BackupConfig controls the scheduled JSON backups of the book.
type BackupConfig struct {
	// Cron is a cron-style schedule string (e.g. "0 3 * * *").
	// Empty disables scheduled backups.
	Cron string `yaml:"cron" json:"cron"`
	// Retention is how many backup pairs to keep.
	Retention int `yaml:"retention" json:"retention"`
}

// AssistantConfig points at the remote text-completion collaborator used to
// answer questions about the book. Empty endpoint disables the assistant.
type AssistantConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
	APIKey   string `yaml:"api_key" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the local UI/API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone of the practice (e.g. "Europe/Madrid").
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataDir is where the JSON store and backups live.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// HistoryCap bounds the undo/redo stack.
	HistoryCap int `yaml:"history_cap" json:"history_cap"`

	Grid      GridConfig      `yaml:"grid" json:"grid"`
	Backup    BackupConfig    `yaml:"backup" json:"backup"`
	Assistant AssistantConfig `yaml:"assistant" json:"assistant"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:     "127.0.0.1:8093",
		Timezone:   "Europe/Madrid",
		DataDir:    "/var/lib/turnero",
		HistoryCap: 50,
		Grid: GridConfig{
			StartHour:   11,
			EndHour:     18,
			StepMinutes: 30,
		},
		Backup: BackupConfig{
			Cron:      "0 3 * * *",
			Retention: 14,
		},
		Assistant: AssistantConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8093"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Madrid"
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/turnero"
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = 50
	}
	if c.Grid.StartHour <= 0 {
		c.Grid.StartHour = 11
	}
	if c.Grid.EndHour <= c.Grid.StartHour {
		c.Grid.EndHour = 18
	}
	if c.Grid.StepMinutes <= 0 {
		c.Grid.StepMinutes = 30
	}
	if c.Backup.Retention <= 0 {
		c.Backup.Retention = 14
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create parent directory if needed, write a
//     default config with 0600 perms and return the default config.
//   - If the file exists: read YAML, unmarshal and normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory when missing.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".turnero-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
