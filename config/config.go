package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/redwren/redwrenlib/container"
	"github.com/redwren/redwrenlib/errors"
	"github.com/redwren/redwrenlib/model"
	"github.com/redwren/redwrenlib/store"
)

// Config is the complete application configuration for the CLI and the
// match service. Zero values are filled in from DefaultConfig by Load.
type Config struct {
	Store     StoreConfig     `json:"store" yaml:"store"`
	Evaluator EvaluatorConfig `json:"evaluator" yaml:"evaluator"`
	Service   ServiceConfig   `json:"service" yaml:"service"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// StoreConfig selects the gesture file and its on-disk representation.
type StoreConfig struct {
	Path     string           `json:"path" yaml:"path"`
	Format   string           `json:"format" yaml:"format"`   // "container" or "log"
	Version  int              `json:"version" yaml:"version"` // container schema generation, 1 or 2
	Defaults model.Parameters `json:"defaults" yaml:"defaults"`
}

// EvaluatorConfig tunes match evaluation.
type EvaluatorConfig struct {
	Workers int `json:"workers" yaml:"workers"` // 0 means GOMAXPROCS
}

// ServiceConfig configures the NATS match service.
type ServiceConfig struct {
	URL         string `json:"url" yaml:"url"`
	Subject     string `json:"subject" yaml:"subject"`
	Queue       string `json:"queue" yaml:"queue"`
	Workers     int    `json:"workers" yaml:"workers"`
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"` // empty disables the /metrics listener
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:     "models.gesture",
			Format:   string(store.FormatContainer),
			Version:  int(container.V2),
			Defaults: model.DefaultParameters(),
		},
		Evaluator: EvaluatorConfig{Workers: 0},
		Service: ServiceConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "gesture.match",
			Queue:   "gesture-match",
			Workers: 4,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML or JSON configuration file, layered over DefaultConfig,
// and validates the result. The format is chosen by file extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO(err, "config", "Load", "read config file")
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, errors.New(errors.KindInvalidParameter, "config", "Load",
			fmt.Sprintf("unsupported config extension %q, want .yaml, .yml or .json", ext))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInvalidParameter, "config", "Load", "parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the packages downstream
// would reject, so misconfiguration surfaces at startup rather than on
// first use.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return invalid("store.path must not be empty")
	}
	switch store.Format(c.Store.Format) {
	case store.FormatContainer, store.FormatLog:
	default:
		return invalid(fmt.Sprintf("store.format %q, want %q or %q",
			c.Store.Format, store.FormatContainer, store.FormatLog))
	}
	switch container.Version(c.Store.Version) {
	case container.V1, container.V2:
	default:
		return invalid(fmt.Sprintf("store.version %d, want 1 or 2", c.Store.Version))
	}
	if err := c.Store.Defaults.Validate(); err != nil {
		return err
	}
	if c.Evaluator.Workers < 0 {
		return invalid("evaluator.workers must not be negative")
	}
	if c.Service.URL == "" {
		return invalid("service.url must not be empty")
	}
	if c.Service.Subject == "" {
		return invalid("service.subject must not be empty")
	}
	if c.Service.Workers < 1 {
		return invalid("service.workers must be at least 1")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("log.level %q, want debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid(fmt.Sprintf("log.format %q, want text or json", c.Log.Format))
	}
	return nil
}

// Logger builds the slog logger described by the log section. Validate
// must have accepted the configuration first.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// StoreOptions translates the store section into store.New options.
func (c *Config) StoreOptions() []store.Option {
	return []store.Option{
		store.WithFormat(store.Format(c.Store.Format)),
		store.WithVersion(container.Version(c.Store.Version)),
		store.WithDefaults(c.Store.Defaults),
	}
}

func invalid(msg string) error {
	return errors.New(errors.KindInvalidParameter, "config", "Validate", msg)
}
