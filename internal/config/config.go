// Package config loads engine configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunables for the scheduling engine and its CLI.
type Config struct {
	// DBPath is the SQLite database file for snapshots and audit events.
	DBPath string `yaml:"db_path"`

	// RedisAddr enables the ready-stitch mirror when non-empty
	// (host:port). Empty disables the mirror.
	RedisAddr string `yaml:"redis_addr"`

	// LogMode selects the logger preset ("dev" or "prod").
	LogMode string `yaml:"log_mode"`

	Cache CacheConfig `yaml:"cache"`
	Skip  SkipConfig  `yaml:"skip"`
}

// CacheConfig tunes ready-stitch caching.
type CacheConfig struct {
	// BaseTTL is the cache validity at boundary level 0.
	BaseTTL time.Duration `yaml:"base_ttl"`

	// LevelFactor scales TTL per boundary level:
	// ttl = BaseTTL * (1 + level*LevelFactor).
	LevelFactor float64 `yaml:"level_factor"`
}

// SkipConfig tunes skip number calculation.
type SkipConfig struct {
	// ExpectedResponseTime is the reference answer speed; faster
	// answers raise the skip number, slower ones lower it.
	ExpectedResponseTime time.Duration `yaml:"expected_response_time"`
}

// UnmarshalYAML accepts durations in time.ParseDuration notation
// ("30m", "2s") and leaves unset fields at their prior values.
func (c *CacheConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		BaseTTL     string   `yaml:"base_ttl"`
		LevelFactor *float64 `yaml:"level_factor"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.BaseTTL != "" {
		d, err := time.ParseDuration(raw.BaseTTL)
		if err != nil {
			return fmt.Errorf("cache base_ttl: %w", err)
		}
		c.BaseTTL = d
	}
	if raw.LevelFactor != nil {
		c.LevelFactor = *raw.LevelFactor
	}
	return nil
}

// UnmarshalYAML accepts the expected response time in
// time.ParseDuration notation.
func (c *SkipConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ExpectedResponseTime string `yaml:"expected_response_time"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.ExpectedResponseTime != "" {
		d, err := time.ParseDuration(raw.ExpectedResponseTime)
		if err != nil {
			return fmt.Errorf("skip expected_response_time: %w", err)
		}
		c.ExpectedResponseTime = d
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogMode: "dev",
		Cache: CacheConfig{
			BaseTTL:     30 * time.Minute,
			LevelFactor: 0.5,
		},
		Skip: SkipConfig{
			ExpectedResponseTime: 3 * time.Second,
		},
	}
}

// Load reads the config file at path (if path is non-empty and the file
// exists), then applies environment overrides. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to env overrides.
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Cache.BaseTTL <= 0 {
		return cfg, fmt.Errorf("config: cache base_ttl must be positive, got %v", cfg.Cache.BaseTTL)
	}
	if cfg.Cache.LevelFactor < 0 {
		return cfg, fmt.Errorf("config: cache level_factor must not be negative, got %v", cfg.Cache.LevelFactor)
	}
	if cfg.Skip.ExpectedResponseTime <= 0 {
		return cfg, fmt.Errorf("config: skip expected_response_time must be positive, got %v", cfg.Skip.ExpectedResponseTime)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HELIX_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("HELIX_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("HELIX_LOG_MODE"); v != "" {
		cfg.LogMode = v
	}
	if v := os.Getenv("HELIX_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.BaseTTL = d
		}
	}
}

// DefaultDBPath resolves the database file path in priority order:
// 1. HELIX_DB environment variable
// 2. $XDG_DATA_HOME/helix/helix.db
// 3. ~/.local/share/helix/helix.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("HELIX_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "helix", "helix.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
