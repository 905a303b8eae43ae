// Package config loads sessionvault settings from YAML and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/sessionvault/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

type Config struct {
	Backend string        `mapstructure:"backend"`
	File    FileConfig    `mapstructure:"file"`
	Redis   RedisConfig   `mapstructure:"redis"`
	GC      GCConfig      `mapstructure:"gc"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type FileConfig struct {
	Dir string `mapstructure:"dir"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type GCConfig struct {
	MaxAge   time.Duration `mapstructure:"max_age"`
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the configuration used when no file or flag sets a value.
func Default() Config {
	return Config{
		Backend: BackendMemory,
		File:    FileConfig{Dir: ".sessionvault/sessions"},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "sessionvault:",
		},
		GC: GCConfig{
			MaxAge:   24 * time.Hour,
			Interval: 10 * time.Minute,
		},
		Log:     LogConfig{Level: "info", Format: string(logging.FormatText)},
		Metrics: MetricsConfig{Addr: ":2112"},
	}
}

// Load reads path (if not empty), applies overrides keyed by dotted names such as
// "redis.addr", and validates the result.
func Load(path string, overrides map[string]any) (*Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	for key, value := range overrides {
		if err := set(raw, key, value); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(raw map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// set stores value under a dotted key, creating intermediate maps.
func set(raw map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	m := raw
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part]
		if !ok || next == nil {
			child := map[string]any{}
			m[part] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("config key %q is not a section", part)
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
	return nil
}

// Validate checks values that cannot be caught by decoding.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Backend == BackendFile && c.File.Dir == "" {
		errs = append(errs, errors.New("file.dir must not be empty"))
	}
	if c.Backend == BackendRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr must not be empty"))
	}
	if c.Redis.LockTTL < 0 {
		errs = append(errs, errors.New("redis.lock_ttl must not be negative"))
	}
	if c.GC.MaxAge < 0 {
		errs = append(errs, errors.New("gc.max_age must not be negative"))
	}
	if c.GC.Interval < 0 {
		errs = append(errs, errors.New("gc.interval must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
