package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. WMOFORGE_CONVERT_AXIS.
const EnvPrefix = "WMOFORGE"

// Load loads configuration with priority: defaults < file < env < flags,
// then validates the result. An empty path searches the standard locations;
// f may be nil.
func Load(path string, f *Flags) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if path == "" && f != nil {
		path = f.ConfigPath()
	}
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if f != nil {
		f.Apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it. Packs
// has no default and is bound to its variable explicitly.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.log_file", d.Logging.LogFile)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("convert.axis", d.Convert.Axis)
	v.SetDefault("convert.scale", d.Convert.Scale)
	v.SetDefault("convert.bounds", d.Convert.Bounds)
	v.SetDefault("convert.normals", d.Convert.Normals)
	v.SetDefault("convert.texcoords", d.Convert.TexCoords)
	v.SetDefault("convert.group_vertex_limit", d.Convert.GroupVertexLimit)

	v.SetDefault("paths.input", d.Paths.Input)
	v.SetDefault("paths.output", d.Paths.Output)
	v.SetDefault("paths.archives", d.Paths.Archives)
	v.SetDefault("paths.dbc", d.Paths.DBC)
	_ = v.BindEnv("paths.packs")

	v.SetDefault("locale", d.Locale)
	v.SetDefault("workers", d.Workers)
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./wmoforge.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "wmoforge")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "wmoforge")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "wmoforge")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "wmoforge")
	}
}
