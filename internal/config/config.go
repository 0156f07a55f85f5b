// Package config loads client settings from an optional YAML file, then lets
// LCM_* environment variables override individual keys.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"LCM-Bus/internal/core/network"
	"LCM-Bus/internal/core/transport"
)

type Config struct {
	// URL selects the backend, e.g. udpm://239.255.76.67:7667?ttl=0 or memq://.
	URL string `yaml:"url" env:"LCM_DEFAULT_URL"`
	// QueueCapacity is the initial per-subscription queue length; <= 0 is unbounded.
	QueueCapacity int `yaml:"queue_capacity" env:"LCM_QUEUE_CAPACITY"`
	Log           Log `yaml:"log"`
}

type Log struct {
	Level       string `yaml:"level" env:"LCM_LOG_LEVEL"`
	Format      string `yaml:"format" env:"LCM_LOG_FORMAT"` // console or json
	Development bool   `yaml:"development"`
	// Quiet logs warnings and errors only, without caller or stack traces.
	Quiet bool `yaml:"quiet" env:"LCM_LOG_QUIET"`
}

func Default() Config {
	return Config{
		URL:           network.DefaultURL,
		QueueCapacity: transport.DefaultQueueCapacity,
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load returns Default overlaid by the YAML file at path (skipped when path
// is empty) and then by the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		defer f.Close()
		if err := DecodeStrict(f, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecodeStrict decodes YAML from r and rejects unknown keys. An empty
// document leaves out untouched.
func DecodeStrict(r io.Reader, out *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", c.URL, err)
	}
	switch u.Scheme {
	case "memq", "udpm", "redis", "rediss", "libp2p":
	default:
		return fmt.Errorf("invalid url %q: %w: %q", c.URL, network.ErrUnknownScheme, u.Scheme)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}
