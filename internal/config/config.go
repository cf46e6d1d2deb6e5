// Package config loads evidence-run settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tordrt/lala/internal/apperrors"
)

// Config holds all configuration for an evidence run.
// Environment variables always override YAML values.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Evidence  EvidenceConfig  `yaml:"evidence"`
	Relations RelationsConfig `yaml:"relations"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig points at the audited database.
type DatabaseConfig struct {
	// URL is a postgres://, mysql:// or sqlite:// connection URL.
	URL string `yaml:"url" env:"LALA_DATABASE_URL" env-default:""`
	// Schema defaults to "public" for PostgreSQL and to the DSN's database for MySQL.
	Schema string `yaml:"schema" env:"LALA_DATABASE_SCHEMA" env-default:""`
	// TablePrefix is stripped from physical table names, e.g. "mdl_user" is seen as "user".
	TablePrefix string `yaml:"table_prefix" env:"LALA_TABLE_PREFIX" env-default:"mdl_"`
	// NoTablePrefix reads tables under their physical names. An empty
	// table_prefix falls back to the default.
	NoTablePrefix bool `yaml:"no_table_prefix" env:"LALA_NO_TABLE_PREFIX" env-default:"false"`
}

// Prefix returns the table prefix in effect.
func (d DatabaseConfig) Prefix() string {
	if d.NoTablePrefix {
		return ""
	}
	return d.TablePrefix
}

// EvidenceConfig controls what a run produces and where it goes.
type EvidenceConfig struct {
	Dir string `yaml:"dir" env:"LALA_EVIDENCE_DIR" env-default:"evidence"`
	// NoAnonymize writes original ids. Anonymization is on unless this is set.
	NoAnonymize bool    `yaml:"no_anonymize" env:"LALA_NO_ANONYMIZE" env-default:"false"`
	TrainRatio  float64 `yaml:"train_ratio" env:"LALA_TRAIN_RATIO" env-default:"0.8"`
	RootTable   string  `yaml:"root_table" env:"LALA_ROOT_TABLE" env-default:"user"`
}

// Anonymize reports whether ids are pseudonymized.
func (e EvidenceConfig) Anonymize() bool {
	return !e.NoAnonymize
}

// RelationsConfig tunes foreign key discovery.
type RelationsConfig struct {
	// PluralTables lets "user_id" reference a "users" table.
	PluralTables bool `yaml:"plural_tables" env:"LALA_PLURAL_TABLES" env-default:"false"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LALA_LOG_LEVEL" env-default:"info"`
}

// Load reads path if it exists and applies environment overrides. An empty
// path or a missing file means environment and defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	if path != "" && fileExists(path) {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Evidence.TrainRatio <= 0 || c.Evidence.TrainRatio >= 1 {
		return fmt.Errorf("%w: train_ratio must be between 0 and 1, got %v", apperrors.ErrConfiguration, c.Evidence.TrainRatio)
	}
	if c.Evidence.Dir == "" {
		return fmt.Errorf("%w: evidence dir is required", apperrors.ErrConfiguration)
	}
	if c.Evidence.RootTable == "" {
		return fmt.Errorf("%w: root_table is required", apperrors.ErrConfiguration)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", apperrors.ErrConfiguration, c.Log.Level)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
