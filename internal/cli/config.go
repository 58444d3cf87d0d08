package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/mhersch/flowlevel/pkg/pipeline"
)

// =============================================================================
// Config - User Configuration File
// =============================================================================

// Cache backend names accepted in the config file.
const (
	backendFile  = "file"
	backendRedis = "redis"
	backendNull  = "null"
)

// Config holds user defaults loaded from ~/.config/flowlevel/config.toml.
// Command-line flags always win over config values.
type Config struct {
	Cache    CacheConfig    `toml:"cache"`
	Store    StoreConfig    `toml:"store"`
	Legalize LegalizeConfig `toml:"legalize"`
	Serve    ServeConfig    `toml:"serve"`
}

// CacheConfig selects the cache backend used by pipeline commands.
type CacheConfig struct {
	Backend  string `toml:"backend"`   // "file" (default), "redis", or "null"
	RedisURL string `toml:"redis_url"` // e.g. "redis://localhost:6379/0"
}

// StoreConfig configures the report archive.
type StoreConfig struct {
	MongoURI string `toml:"mongo_uri"` // e.g. "mongodb://localhost:27017"
}

// LegalizeConfig supplies default legalization options.
type LegalizeConfig struct {
	InsertCopy *bool `toml:"insert_copy"` // nil means unset (default true)
	MinGran    int   `toml:"min_gran"`
}

// ServeConfig configures the HTTP API server.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// defaultConfig returns the configuration used when no config file exists.
func defaultConfig() *Config {
	return &Config{
		Cache:    CacheConfig{Backend: backendFile},
		Legalize: LegalizeConfig{MinGran: pipeline.DefaultMinGran},
		Serve:    ServeConfig{Addr: ":8080"},
	}
}

// configPath returns the config file path using the XDG standard
// (~/.config/flowlevel/config.toml).
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// loadConfig reads the config file at path, or the default location if path
// is empty. A missing file is not an error; defaults are returned.
func loadConfig(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = configPath()
		if err != nil {
			return defaultConfig(), nil
		}
	}

	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

// validate checks backend names and option ranges.
func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "", backendFile, backendRedis, backendNull:
	default:
		return fmt.Errorf("invalid cache backend: %q (must be 'file', 'redis', or 'null')", c.Cache.Backend)
	}
	if c.Cache.Backend == backendRedis && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache backend 'redis' requires redis_url")
	}
	if c.Legalize.MinGran < 0 {
		return fmt.Errorf("invalid min_gran: %d (must be >= 0)", c.Legalize.MinGran)
	}
	return nil
}

// insertCopy returns the configured insert-copy default, true when unset.
func (c *Config) insertCopy() bool {
	if c.Legalize.InsertCopy == nil {
		return true
	}
	return *c.Legalize.InsertCopy
}
