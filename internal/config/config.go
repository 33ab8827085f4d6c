// Package config handles wmoforge configuration loading and management.
package config

import (
	"errors"
	"fmt"
	stdmath "math"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/wmoforge/internal/logger"
	"github.com/Faultbox/wmoforge/pkg/convert"
	"github.com/Faultbox/wmoforge/pkg/formats"
	"github.com/Faultbox/wmoforge/pkg/math"
)

// Config holds all tool settings.
type Config struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Convert ConvertConfig `yaml:"convert" mapstructure:"convert"`
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	// Locale selects the DBC string column, e.g. "enUS".
	Locale string `yaml:"locale" mapstructure:"locale"`
	// Workers caps concurrent zone conversions in a batch.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	LogFile    string `yaml:"log_file" mapstructure:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// ConvertConfig mirrors convert.Options in config form.
type ConvertConfig struct {
	Axis             string  `yaml:"axis" mapstructure:"axis"`
	// Scale converts mesh units to world units and is applied after Axis.
	Scale            float64 `yaml:"scale" mapstructure:"scale"`
	Bounds           string  `yaml:"bounds" mapstructure:"bounds"`
	Normals          bool    `yaml:"normals" mapstructure:"normals"`
	TexCoords        string  `yaml:"texcoords" mapstructure:"texcoords"`
	GroupVertexLimit int     `yaml:"group_vertex_limit" mapstructure:"group_vertex_limit"`
}

// PathsConfig holds input and output locations.
type PathsConfig struct {
	// Input is the directory holding zone meshes (<name>.yaml or <name>.s3d).
	Input string `yaml:"input" mapstructure:"input"`
	// Output is the directory WMO files are written to.
	Output string `yaml:"output" mapstructure:"output"`
	// Archives switches the input from loose YAML meshes to per-zone
	// <name>.s3d archives.
	Archives bool `yaml:"archives" mapstructure:"archives"`
	// Packs are shared .s3d archives mounted in order; later packs win.
	// When set they take precedence over Input.
	Packs []string `yaml:"packs,omitempty" mapstructure:"packs"`
	// DBC is an optional WMOAreaTable.dbc used to assign root IDs.
	DBC string `yaml:"dbc" mapstructure:"dbc"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	file := logger.DefaultFileConfig("")
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAgeDays: file.MaxAgeDays,
			Compress:   file.Compress,
		},
		Convert: ConvertConfig{
			Axis:      "identity",
			Scale:     1,
			Bounds:    "computed",
			TexCoords: "drop",
		},
		Paths: PathsConfig{
			Input:  ".",
			Output: "out",
		},
		Locale:  "enUS",
		Workers: 4,
	}
}

// Validate checks every setting and reports all violations at once.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs, validateLogging(c.Logging)...)
	errs = append(errs, validateConvert(c.Convert)...)
	if c.Paths.Output == "" {
		errs = append(errs, errors.New("paths.output must not be empty"))
	}
	if _, err := formats.ParseLocale(c.Locale); err != nil {
		errs = append(errs, fmt.Errorf("locale: %w", err))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

func validateLogging(l LoggingConfig) []error {
	var errs []error
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level))
	}
	if l.Format != "console" && l.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format must be one of [console, json], got %q", l.Format))
	}
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		errs = append(errs, errors.New("logging rotation limits must not be negative"))
	}
	return errs
}

func validateConvert(c ConvertConfig) []error {
	var errs []error
	if _, err := convert.ParseAxis(c.Axis); err != nil {
		errs = append(errs, fmt.Errorf("convert.axis: %w", err))
	}
	if !(c.Scale > 0) || stdmath.IsInf(c.Scale, 1) {
		errs = append(errs, fmt.Errorf("convert.scale must be a positive finite number, got %v", c.Scale))
	}
	if _, err := convert.ParseBoundsMode(c.Bounds); err != nil {
		errs = append(errs, fmt.Errorf("convert.bounds: %w", err))
	}
	if _, err := convert.ParseTexCoordPolicy(c.TexCoords); err != nil {
		errs = append(errs, fmt.Errorf("convert.texcoords: %w", err))
	}
	if n := c.GroupVertexLimit; n != 0 && (n < 3 || n > convert.MaxGroupVertices) {
		errs = append(errs, fmt.Errorf("convert.group_vertex_limit must be 0 or 3-%d, got %d", convert.MaxGroupVertices, n))
	}
	return errs
}

// LoggerConfig converts the logging section for logger.New.
func (c *Config) LoggerConfig() logger.Config {
	cfg := logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
	if c.Logging.LogFile != "" {
		cfg.File = logger.FileConfig{
			Path:       c.Logging.LogFile,
			MaxSizeMB:  c.Logging.MaxSizeMB,
			MaxBackups: c.Logging.MaxBackups,
			MaxAgeDays: c.Logging.MaxAgeDays,
			Compress:   c.Logging.Compress,
		}
	}
	return cfg
}

// ConvertOptions builds converter options from the convert section.
func (c *Config) ConvertOptions(log *zap.Logger) (convert.Options, error) {
	opts := convert.DefaultOptions()
	axis, err := convert.ParseAxis(c.Convert.Axis)
	if err != nil {
		return opts, err
	}
	bounds, err := convert.ParseBoundsMode(c.Convert.Bounds)
	if err != nil {
		return opts, err
	}
	tex, err := convert.ParseTexCoordPolicy(c.Convert.TexCoords)
	if err != nil {
		return opts, err
	}
	if s := float32(c.Convert.Scale); s != 1 {
		axis = math.Scale(s, s, s).Mul(axis)
	}
	opts.Axis = axis
	opts.Bounds = bounds
	opts.TexCoords = tex
	opts.ComputeNormals = c.Convert.Normals
	opts.GroupVertexLimit = c.Convert.GroupVertexLimit
	opts.Logger = log
	return opts, nil
}
