// Package config provides configuration management for mpwizard using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration covers where fragment templates come from, how documents
// are assembled, the preview server, the state file watcher and batch
// builds. Values can be overridden with MPWIZARD_ prefixed environment
// variables.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/mpwizard/internal/assembler"
)

type Config struct {
	Fragments FragmentsConfig `yaml:"fragments" mapstructure:"fragments"`
	Assembly  AssemblyConfig  `yaml:"assembly" mapstructure:"assembly"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Build     BuildConfig     `yaml:"build" mapstructure:"build"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// Fragment sources.
const (
	SourceEmbedded = "embedded"
	SourceDir      = "dir"
	SourceHTTP     = "http"
)

type FragmentsConfig struct {
	Source     string        `yaml:"source" mapstructure:"source"`
	Dir        string        `yaml:"dir" mapstructure:"dir"`
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	LibraryDir string        `yaml:"library_dir" mapstructure:"library_dir"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type AssemblyConfig struct {
	DescriptionPolicy string `yaml:"description_policy" mapstructure:"description_policy"`
	DefaultVersion    string `yaml:"default_version" mapstructure:"default_version"`
}

type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	Host           string   `yaml:"host" mapstructure:"host"`
	Open           bool     `yaml:"open" mapstructure:"open"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type BuildConfig struct {
	Workers   int    `yaml:"workers" mapstructure:"workers"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Fragments: FragmentsConfig{
			Source:     SourceEmbedded,
			LibraryDir: "fragments",
			Timeout:    10 * time.Second,
		},
		Assembly: AssemblyConfig{
			DescriptionPolicy: string(assembler.DescriptionNewOnly),
			DefaultVersion:    "1.0.0.0",
		},
		Server: ServerConfig{
			Port:      8080,
			Host:      "localhost",
			RateLimit: 20,
			RateBurst: 40,
		},
		Watch: WatchConfig{Debounce: 300 * time.Millisecond},
		Build: BuildConfig{Workers: 4, OutputDir: "dist"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers Defaults with viper so that unset keys and
// environment lookups resolve.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("fragments.source", d.Fragments.Source)
	v.SetDefault("fragments.dir", d.Fragments.Dir)
	v.SetDefault("fragments.base_url", d.Fragments.BaseURL)
	v.SetDefault("fragments.library_dir", d.Fragments.LibraryDir)
	v.SetDefault("fragments.timeout", d.Fragments.Timeout)
	v.SetDefault("assembly.description_policy", d.Assembly.DescriptionPolicy)
	v.SetDefault("assembly.default_version", d.Assembly.DefaultVersion)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.open", d.Server.Open)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("build.workers", d.Build.Workers)
	v.SetDefault("build.output_dir", d.Build.OutputDir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v, fills in defaults for anything left empty and
// validates the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config := Defaults()
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	// Handle allowed origins set via env as a comma separated string
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	applyDefaults(config)

	// Validate configuration values
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyDefaults(config *Config) {
	d := Defaults()

	if config.Fragments.Source == "" {
		config.Fragments.Source = d.Fragments.Source
	}
	if config.Fragments.LibraryDir == "" {
		config.Fragments.LibraryDir = d.Fragments.LibraryDir
	}
	if config.Fragments.Timeout <= 0 {
		config.Fragments.Timeout = d.Fragments.Timeout
	}
	if config.Assembly.DescriptionPolicy == "" {
		config.Assembly.DescriptionPolicy = d.Assembly.DescriptionPolicy
	}
	if config.Assembly.DefaultVersion == "" {
		config.Assembly.DefaultVersion = d.Assembly.DefaultVersion
	}
	if config.Server.Host == "" {
		config.Server.Host = d.Server.Host
	}
	if config.Watch.Debounce <= 0 {
		config.Watch.Debounce = d.Watch.Debounce
	}
	if config.Build.OutputDir == "" {
		config.Build.OutputDir = d.Build.OutputDir
	}
	if config.Log.Level == "" {
		config.Log.Level = d.Log.Level
	}
	if config.Log.Format == "" {
		config.Log.Format = d.Log.Format
	}
}

// validateConfig reports the first section that Load must refuse.
func validateConfig(config *Config) error {
	sections := []struct {
		name  string
		check func() error
	}{
		{"fragments", func() error { return validateFragmentsConfig(&config.Fragments) }},
		{"assembly", func() error {
			_, err := assembler.ParseDescriptionPolicy(config.Assembly.DescriptionPolicy)
			return err
		}},
		{"server", func() error { return validateServerConfig(&config.Server) }},
		{"build", func() error { return validateBuildConfig(&config.Build) }},
	}

	for _, s := range sections {
		if err := s.check(); err != nil {
			return fmt.Errorf("%s config: %w", s.name, err)
		}
	}

	return nil
}

func validateFragmentsConfig(config *FragmentsConfig) error {
	switch config.Source {
	case SourceEmbedded:
	case SourceDir:
		if config.Dir == "" {
			return fmt.Errorf("source %q needs fragments.dir", SourceDir)
		}
	case SourceHTTP:
		u, err := url.Parse(config.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("base_url %q is not an http(s) URL", config.BaseURL)
		}
	default:
		return fmt.Errorf("unknown source %q (want %s, %s or %s)", config.Source, SourceEmbedded, SourceDir, SourceHTTP)
	}

	if err := validatePath(config.LibraryDir); err != nil {
		return fmt.Errorf("library_dir: %w", err)
	}

	return nil
}

// shellMeta lists characters refused in hosts and library paths.
const shellMeta = ";&|$`()<>\"'"

func validateServerConfig(config *ServerConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	if i := strings.IndexAny(config.Host, shellMeta+`\`); i >= 0 {
		return fmt.Errorf("host %q contains %q", config.Host, config.Host[i])
	}
	if config.RateLimit < 0 {
		return fmt.Errorf("rate_limit %v must not be negative", config.RateLimit)
	}
	if config.RateBurst < 0 {
		return fmt.Errorf("rate_burst %d must not be negative", config.RateBurst)
	}

	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	if config.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", config.Workers)
	}
	if config.OutputDir == "" {
		return nil
	}

	dir := filepath.Clean(config.OutputDir)
	switch {
	case filepath.IsAbs(dir):
		return fmt.Errorf("output_dir %s must be relative to the project", config.OutputDir)
	case escapesProject(dir):
		return fmt.Errorf("output_dir %s leaves the project directory", config.OutputDir)
	}

	return nil
}

// validatePath accepts non-empty relative paths that stay inside the
// project and carry no shell metacharacters.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	clean := filepath.Clean(path)
	if escapesProject(clean) {
		return fmt.Errorf("path %s leaves the project directory", path)
	}
	if i := strings.IndexAny(clean, shellMeta); i >= 0 {
		return fmt.Errorf("path %s contains %q", path, clean[i])
	}

	return nil
}

func escapesProject(clean string) bool {
	return strings.Contains(clean, "..")
}
