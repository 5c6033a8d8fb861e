// Package config loads and saves frame configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// FileName is the config file looked up in the current directory and
// under ~/.fotoramme/.
const FileName = "frame-config.yaml"

// Config holds everything the frame needs to run.
type Config struct {
	// PhotosDir is where displayable photos live.
	PhotosDir string `yaml:"photos_directory"`
	// SlideshowSeconds is how long each photo stays fully visible.
	SlideshowSeconds int `yaml:"slideshow_duration"`
	// FadeMillis is how long the crossfade between photos runs.
	FadeMillis int `yaml:"fade_duration"`
	// ImportDir, if set, is scanned for new photos to import.
	ImportDir string `yaml:"import_directory,omitempty"`

	FullScreen   bool `yaml:"full_screen"`
	ScreenWidth  int  `yaml:"screen_width"`
	ScreenHeight int  `yaml:"screen_height"`

	// ServerAddr is the host:port for the frame's web API.
	ServerAddr string `yaml:"server_address"`
	// MaxUploadBytes caps the size of one uploaded photo.
	MaxUploadBytes int64 `yaml:"server_max_file_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PhotosDir:        "images",
		SlideshowSeconds: 5,
		FadeMillis:       1000,
		ScreenWidth:      1920,
		ScreenHeight:     1080,
		ServerAddr:       "localhost:12801",
		MaxUploadBytes:   32 << 20,
	}
}

// Load reads the config file from the current directory, then from
// ~/.fotoramme/, and falls back to defaults when neither exists. A
// file that exists but cannot be parsed is an error, not a fallback.
func Load() (*Config, error) {
	if _, err := os.Stat(FileName); err == nil {
		return LoadFile(FileName)
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".fotoramme", FileName)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}

	klog.Warningf("no configuration file found, using defaults")
	klog.Infof("to create one, place %s in the current directory or ~/.fotoramme/", FileName)
	return Default(), nil
}

// LoadFile reads a config file, layering it over the defaults.
func LoadFile(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	c := Default()
	if err := yaml.Unmarshal(bs, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	klog.Infof("loaded configuration from %s", path)
	klog.V(1).Infof("config: %+v", c)
	return c, nil
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	bs, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	if err := os.WriteFile(path, bs, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}

	klog.Infof("saved configuration to %s", path)
	return nil
}

// DisplayDuration is SlideshowSeconds as a duration.
func (c *Config) DisplayDuration() time.Duration {
	return time.Duration(c.SlideshowSeconds) * time.Second
}

// FadeDuration is FadeMillis as a duration.
func (c *Config) FadeDuration() time.Duration {
	return time.Duration(c.FadeMillis) * time.Millisecond
}

// PhotosPath returns the photos directory as an absolute path.
func (c *Config) PhotosPath() string {
	return absolute(c.PhotosDir)
}

// ImportPath returns the import directory as an absolute path, or ""
// when importing is not configured.
func (c *Config) ImportPath() string {
	if c.ImportDir == "" {
		return ""
	}
	return absolute(c.ImportDir)
}

func absolute(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
