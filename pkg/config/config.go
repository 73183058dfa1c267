// Package config loads StegLab settings from TOML files with environment
// overrides and per-environment overlays.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// BaseConfigFile is the primary configuration file name.
	BaseConfigFile = "steglab.toml"

	// OverlayConfigPattern is the file name pattern for environment-specific overlays.
	OverlayConfigPattern = "steglab.%s.toml"

	// EnvName selects the overlay file.
	EnvName = "STEG_ENV"
)

// Config is the root configuration.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Limits    LimitsConfig    `toml:"limits"`
	Video     VideoConfig     `toml:"video"`
	Detection DetectionConfig `toml:"detection"`
	Network   NetworkConfig   `toml:"network"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Default returns a finalized configuration built only from defaults and environment.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads path (or BaseConfigFile in the working directory when path is empty),
// applies the overlay named by STEG_ENV, and finalizes the result. A missing base file
// is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = BaseConfigFile
	}

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if overlay := overlayPath(path); overlay != "" {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize applies defaults, loads environment overrides, and validates every section.
func (c *Config) Finalize() error {
	if err := c.Storage.Finalize(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Limits.Finalize(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	if err := c.Video.Finalize(); err != nil {
		return fmt.Errorf("video: %w", err)
	}
	if err := c.Detection.Finalize(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if err := c.Network.Finalize(); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// Merge applies values from overlay that differ from zero values.
func (c *Config) Merge(overlay *Config) {
	c.Storage.Merge(&overlay.Storage)
	c.Limits.Merge(&overlay.Limits)
	c.Video.Merge(&overlay.Video)
	c.Detection.Merge(&overlay.Detection)
	c.Network.Merge(&overlay.Network)
	c.Logging.Merge(&overlay.Logging)
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func overlayPath(base string) string {
	env := strings.TrimSpace(os.Getenv(EnvName))
	if env == "" {
		return ""
	}
	p := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}
