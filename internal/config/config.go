package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MapConfig holds the expiration defaults of one named map.
type MapConfig struct {
	MaxIdle    time.Duration `yaml:"max_idle"`    //0 disables the idle policy
	DefaultTTL time.Duration `yaml:"default_ttl"` //TTL used by puts that do not pass one, 0 = none
	Shards     int           `yaml:"shards"`      //lock stripes per map
}

// ReaperConfig controls the background expiration sweep.
type ReaperConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"` //max keys examined per cycle
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	BufferSize int    `yaml:"buffer_size"`
}

type Config struct {
	Server     ServerConfig         `yaml:"server"`
	Log        LogConfig            `yaml:"log"`
	Reaper     ReaperConfig         `yaml:"reaper"`
	DefaultMap MapConfig            `yaml:"default_map"`
	Maps       map[string]MapConfig `yaml:"maps"`
}

const DefaultShards = 16

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:      "INFO",
			BufferSize: 1000,
		},
		Reaper: ReaperConfig{
			Interval:  time.Second,
			BatchSize: 10_000,
		},
		DefaultMap: MapConfig{
			Shards: DefaultShards,
		},
		Maps: map[string]MapConfig{},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

var (
	ErrReaperInterval = errors.New("reaper interval must be positive")
	ErrReaperBatch    = errors.New("reaper batch size must be positive")
	ErrNegativeLimit  = errors.New("max idle and default ttl must not be negative")
)

func (c Config) Validate() error {
	if c.Reaper.Interval <= 0 {
		return ErrReaperInterval
	}
	if c.Reaper.BatchSize <= 0 {
		return ErrReaperBatch
	}

	if err := c.DefaultMap.validate(); err != nil {
		return fmt.Errorf("default_map: %w", err)
	}
	for name, m := range c.Maps {
		if err := m.validate(); err != nil {
			return fmt.Errorf("map %q: %w", name, err)
		}
	}
	return nil
}

func (m MapConfig) validate() error {
	if m.MaxIdle < 0 || m.DefaultTTL < 0 {
		return ErrNegativeLimit
	}
	if m.Shards < 0 {
		return fmt.Errorf("shards must not be negative, got %d", m.Shards)
	}
	return nil
}

// ForMap returns the configuration of a named map, falling back to
// DefaultMap. Unset shard counts inherit the default.
func (c Config) ForMap(name string) MapConfig {
	m, ok := c.Maps[name]
	if !ok {
		m = c.DefaultMap
	}
	if m.Shards <= 0 {
		m.Shards = c.DefaultMap.Shards
	}
	if m.Shards <= 0 {
		m.Shards = DefaultShards
	}
	return m
}
