// Package config handles atlas export configuration loading and management.
package config

import (
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/Faultbox/atlas-export/internal/logger"
	"github.com/Faultbox/atlas-export/pkg/manifest"
)

// Config holds all export settings.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Export  ExportConfig  `yaml:"export"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig selects where atlases are discovered.
type SourceConfig struct {
	Paths     []string `yaml:"paths"`     // Directories or GRF archives, later ones override earlier ones
	Root      string   `yaml:"root"`      // Path prefix inside the sources
	Recursive bool     `yaml:"recursive"` // Include subdirectories of Root
	Formats   []string `yaml:"formats"`   // Manifest formats, empty for all
}

// ExportConfig holds output settings.
type ExportConfig struct {
	Destination     string `yaml:"destination"`
	WriteAtlasImage bool   `yaml:"write_atlas_image"`
	Compression     string `yaml:"compression"` // best, default, speed or none
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Paths:     []string{"."},
			Root:      "",
			Recursive: true,
		},
		Export: ExportConfig{
			Destination:     "Saved/Atlases",
			WriteAtlasImage: true,
			Compression:     "best",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks values that can only be verified after loading.
func (c *Config) Validate() error {
	if len(c.Source.Paths) == 0 {
		return fmt.Errorf("source.paths: at least one source is required")
	}
	if c.Export.Destination == "" {
		return fmt.Errorf("export.destination: must not be empty")
	}
	if _, err := c.Source.ManifestFormats(); err != nil {
		return fmt.Errorf("source.formats: %w", err)
	}
	if _, err := c.Export.CompressionLevel(); err != nil {
		return fmt.Errorf("export.compression: %w", err)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce: must not be negative")
	}
	return nil
}

// ManifestFormats parses the configured format names.
func (s SourceConfig) ManifestFormats() ([]manifest.Format, error) {
	formats := make([]manifest.Format, 0, len(s.Formats))
	for _, name := range s.Formats {
		f, err := manifest.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// CompressionLevel maps the configured name to a PNG compression level.
func (e ExportConfig) CompressionLevel() (png.CompressionLevel, error) {
	switch strings.ToLower(e.Compression) {
	case "", "best":
		return png.BestCompression, nil
	case "default":
		return png.DefaultCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "none":
		return png.NoCompression, nil
	default:
		return png.BestCompression, fmt.Errorf("unknown compression %q", e.Compression)
	}
}
