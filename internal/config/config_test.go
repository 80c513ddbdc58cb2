package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:  "defaults",
			setup: func(v *viper.Viper) {},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, SourceEmbedded, cfg.Fragments.Source)
				assert.Equal(t, "fragments", cfg.Fragments.LibraryDir)
				assert.Equal(t, 10*time.Second, cfg.Fragments.Timeout)
				assert.Equal(t, "new-only", cfg.Assembly.DescriptionPolicy)
				assert.Equal(t, "1.0.0.0", cfg.Assembly.DefaultVersion)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
				assert.Equal(t, 4, cfg.Build.Workers)
				assert.Equal(t, "dist", cfg.Build.OutputDir)
			},
		},
		{
			name: "http source",
			setup: func(v *viper.Viper) {
				v.Set("fragments.source", "http")
				v.Set("fragments.base_url", "http://localhost:8080")
				v.Set("fragments.timeout", "2s")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, SourceHTTP, cfg.Fragments.Source)
				assert.Equal(t, "http://localhost:8080", cfg.Fragments.BaseURL)
				assert.Equal(t, 2*time.Second, cfg.Fragments.Timeout)
			},
		},
		{
			name: "description policy",
			setup: func(v *viper.Viper) {
				v.Set("assembly.description_policy", "always")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "always", cfg.Assembly.DescriptionPolicy)
			},
		},
		{
			name:        "unknown policy",
			setup:       func(v *viper.Viper) { v.Set("assembly.description_policy", "sometimes") },
			expectError: true,
		},
		{
			name:        "unknown source",
			setup:       func(v *viper.Viper) { v.Set("fragments.source", "ftp") },
			expectError: true,
		},
		{
			name:        "http source without url",
			setup:       func(v *viper.Viper) { v.Set("fragments.source", "http") },
			expectError: true,
		},
		{
			name:        "dir source without dir",
			setup:       func(v *viper.Viper) { v.Set("fragments.source", "dir") },
			expectError: true,
		},
		{
			name:        "invalid port type",
			setup:       func(v *viper.Viper) { v.Set("server.port", "invalid_port") },
			expectError: true,
		},
		{
			name:        "output dir traversal",
			setup:       func(v *viper.Viper) { v.Set("build.output_dir", "../out") },
			expectError: true,
		},
		{
			name:        "no workers",
			setup:       func(v *viper.Viper) { v.Set("build.workers", 0) },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			tt.setup(v)

			cfg, err := LoadFrom(v)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)

				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".mpwizard.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
fragments:
  source: dir
  dir: ./fragments
assembly:
  default_version: 2.0.0.0
server:
  port: 9090
  allowed_origins:
    - http://localhost:3000
`), 0o600))

	t.Setenv("MPWIZARD_SERVER_PORT", "9191")

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("MPWIZARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, SourceDir, cfg.Fragments.Source)
	assert.Equal(t, "./fragments", cfg.Fragments.Dir)
	assert.Equal(t, "2.0.0.0", cfg.Assembly.DefaultVersion)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestValidateServerConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ServerConfig
		wantErr bool
	}{
		{name: "valid", config: ServerConfig{Port: 8080, Host: "localhost"}},
		{name: "port zero", config: ServerConfig{Port: 0, Host: "localhost"}},
		{name: "port too high", config: ServerConfig{Port: 65536}, wantErr: true},
		{name: "negative port", config: ServerConfig{Port: -1}, wantErr: true},
		{name: "dangerous host", config: ServerConfig{Port: 80, Host: "localhost; rm -rf /"}, wantErr: true},
		{name: "negative rate", config: ServerConfig{Port: 80, RateLimit: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServerConfig(&tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, validatePath("fragments"))
	assert.NoError(t, validatePath("./library/mp"))
	assert.Error(t, validatePath(""))
	assert.Error(t, validatePath("../secrets"))
	assert.Error(t, validatePath("frag;ments"))
}

func TestValidateConfigWithDetails(t *testing.T) {
	cfg := Defaults()
	result := ValidateConfigWithDetails(cfg)
	assert.True(t, result.Valid)
	assert.False(t, result.HasErrors())

	cfg.Server.Port = 80
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Assembly.DefaultVersion = "1.0"
	result = ValidateConfigWithDetails(cfg)
	assert.True(t, result.Valid)
	assert.True(t, result.HasWarnings())
	assert.Len(t, result.Warnings, 3)

	cfg.Assembly.DescriptionPolicy = "sometimes"
	cfg.Fragments.Source = "ftp"
	result = ValidateConfigWithDetails(cfg)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
	assert.Contains(t, result.String(), "assembly.description_policy")
	assert.Contains(t, result.String(), "hint:")
}
