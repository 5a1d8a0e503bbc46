// Package config loads the labbot configuration: core bot settings, database,
// upload storage and the ops listener.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/labbot/core/config"
	coredatabase "github.com/m3rciful/labbot/core/database"
)

// UploadsConfig describes where staged lab files live.
type UploadsConfig struct {
	Dir string `yaml:"dir" envconfig:"UPLOAD_DIR"`
	// RemoveOnDelete also deletes disk copies when a lab or subject is deleted.
	RemoveOnDelete bool `yaml:"remove_on_delete" envconfig:"UPLOAD_REMOVE_ON_DELETE"`
}

// OpsConfig configures the metrics and health listener; an empty Listen disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Uploads  UploadsConfig       `yaml:"uploads"`
	Ops      OpsConfig           `yaml:"ops"`
}

// CoreConfig exposes the embedded bot runtime configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads .env (if present), then the YAML file at path (optional when empty),
// then overlays environment variables and normalizes the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("config: env overlay: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize validates the core settings and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Database.Normalize()
	if strings.TrimSpace(c.Database.Name) == "" {
		return fmt.Errorf("config: database.name is required")
	}
	if strings.TrimSpace(c.Uploads.Dir) == "" {
		c.Uploads.Dir = "lab_files"
	}
	c.Ops.Listen = strings.TrimSpace(c.Ops.Listen)
	return nil
}
