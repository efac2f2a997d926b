// Package config loads the statcube configuration from file, environment
// and flags, in that order of increasing precedence.
package config

import (
	"fmt"
	"time"
)

// DatabaseConfig is the relational metadata store connection.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"ssl_mode"`

	MaxConns        int           `koanf:"max_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
}

// EngineConfig is the embedded analytical engine.
type EngineConfig struct {
	Path           string        `koanf:"path"`
	Threads        int           `koanf:"threads"`
	MemoryLimit    string        `koanf:"memory_limit"`
	TempDirectory  string        `koanf:"temp_directory"`
	SettleInterval time.Duration `koanf:"settle_interval"`
}

// StorageConfig is the object storage backend for durable upload copies.
type StorageConfig struct {
	Backend  string `koanf:"backend"` // "fs" or "s3"
	Bucket   string `koanf:"bucket"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
	RootDir  string `koanf:"root_dir"`
}

// CacheConfig is the query store cache.
type CacheConfig struct {
	Path string `koanf:"path"`
}

// LocaleConfig lists the supported cube locales.
type LocaleConfig struct {
	Supported []string `koanf:"supported"`
	Default   string   `koanf:"default"`
}

// Config is the full statcube configuration.
type Config struct {
	Database   DatabaseConfig `koanf:"database"`
	Engine     EngineConfig   `koanf:"engine"`
	Storage    StorageConfig  `koanf:"storage"`
	Cache      CacheConfig    `koanf:"cache"`
	Locales    LocaleConfig   `koanf:"locales"`
	StagingDir string         `koanf:"staging_dir"`
	Verbose    bool           `koanf:"verbose"`
}

// Validate rejects configurations no component could start with.
func (c *Config) Validate() error {
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Storage.Backend != "fs" && c.Storage.Backend != "s3" {
		return fmt.Errorf("storage.backend must be fs or s3, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for the s3 backend")
	}
	if len(c.Locales.Supported) == 0 {
		return fmt.Errorf("locales.supported must name at least one locale")
	}
	return nil
}
