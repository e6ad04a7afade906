package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redwren/redwrenlib/errors"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "gesture.yaml", `
store:
  path: /data/wave.gesture
  version: 1
service:
  subject: gestures.wave
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/wave.gesture", cfg.Store.Path)
	assert.Equal(t, 1, cfg.Store.Version)
	assert.Equal(t, "gestures.wave", cfg.Service.Subject)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched fields keep their defaults.
	def := DefaultConfig()
	assert.Equal(t, def.Store.Format, cfg.Store.Format)
	assert.Equal(t, def.Service.URL, cfg.Service.URL)
	assert.Equal(t, def.Store.Defaults, cfg.Store.Defaults)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "gesture.json", `{"store": {"path": "wave.gesture"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wave.gesture", cfg.Store.Path)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want func(error) bool
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") },
			want: errors.IsIO,
		},
		{
			name: "unsupported extension",
			path: func(t *testing.T) string { return writeFile(t, "gesture.toml", "x = 1") },
			want: errors.IsInvalidParameter,
		},
		{
			name: "malformed yaml",
			path: func(t *testing.T) string { return writeFile(t, "gesture.yaml", "store: [") },
			want: errors.IsInvalidParameter,
		},
		{
			name: "invalid values",
			path: func(t *testing.T) string { return writeFile(t, "gesture.yaml", "store:\n  format: parquet\n") },
			want: errors.IsInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			require.Error(t, err)
			assert.True(t, tt.want(err), "got %v", err)
		})
	}
}

func TestValidateRejections(t *testing.T) {
	mutations := map[string]func(*Config){
		"empty store path":     func(c *Config) { c.Store.Path = "" },
		"unknown format":       func(c *Config) { c.Store.Format = "csv" },
		"unknown version":      func(c *Config) { c.Store.Version = 3 },
		"bad defaults":         func(c *Config) { c.Store.Defaults.NComponents = 0 },
		"negative workers":     func(c *Config) { c.Evaluator.Workers = -1 },
		"empty service url":    func(c *Config) { c.Service.URL = "" },
		"zero service workers": func(c *Config) { c.Service.Workers = 0 },
		"unknown log level":    func(c *Config) { c.Log.Level = "trace" },
		"unknown log format":   func(c *Config) { c.Log.Format = "logfmt" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalidParameter(err), "got %v", err)
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "error"
	logger := cfg.Logger()
	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Enabled(ctx, slog.LevelError))

	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	assert.True(t, cfg.Logger().Enabled(ctx, slog.LevelDebug))
}
