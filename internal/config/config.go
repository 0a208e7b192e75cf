// Package config loads unpub's YAML settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yuanying/unpub/internal/converter"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvLibraryDir = "UNPUB_LIBRARY_DIR"
	EnvStagingDir = "UNPUB_STAGING_DIR"
	EnvWorkers    = "UNPUB_WORKERS"
)

// Config holds library locations, processing options and display style.
type Config struct {
	LibraryDir     string                `yaml:"library_dir"`
	StagingDir     string                `yaml:"staging_dir"`
	Workers        int                   `yaml:"workers"`
	ThumbnailWidth int                   `yaml:"thumbnail_width"`
	Style          converter.StyleConfig `yaml:"style"`
}

// Default returns the settings written on first run.
func Default() Config {
	return Config{
		LibraryDir:     "books",
		StagingDir:     "epubs",
		Workers:        1,
		ThumbnailWidth: 300,
		Style:          converter.DefaultStyle(),
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/unpub/unpub.yaml or the platform
// equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "unpub", "unpub.yaml"), nil
}

// Load reads the file at path, writing the defaults there first if it
// does not exist. Fields missing from the file keep their defaults, and
// environment variables override both.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return Config{}, err
		}
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.Style = cfg.Style.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating its directory.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvLibraryDir); ok && v != "" {
		c.LibraryDir = v
	}
	if v, ok := os.LookupEnv(EnvStagingDir); ok && v != "" {
		c.StagingDir = v
	}
	if v, ok := os.LookupEnv(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorkers, v, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate reports settings the importer cannot work with.
func (c Config) Validate() error {
	if c.LibraryDir == "" {
		return errors.New("library_dir must not be empty")
	}
	if c.StagingDir == "" {
		return errors.New("staging_dir must not be empty")
	}
	if filepath.Clean(c.LibraryDir) == filepath.Clean(c.StagingDir) {
		return errors.New("library_dir and staging_dir must differ")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ThumbnailWidth < 0 {
		return fmt.Errorf("thumbnail_width must not be negative, got %d", c.ThumbnailWidth)
	}
	return nil
}
