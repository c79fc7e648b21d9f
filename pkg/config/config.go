package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for mnemos-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Entry storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Database configuration (PostgreSQL, used when storage backend is "postgres")
	Database DatabaseConfig `yaml:"database"`

	// Term index configuration
	TermIndex TermIndexConfig `yaml:"term_index"`

	// Recency cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Import pipeline configuration
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Search configuration
	Search SearchConfig `yaml:"search"`
}

// StorageConfig selects the entry store backend.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"mnemos"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"mnemos_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MinConnections int32  `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"2"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// TermIndexConfig selects and tunes the term index backend.
type TermIndexConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend" env:"TERM_INDEX_BACKEND" env-default:"memory"`
	// Path is the SQLite database file for the sqlite backend.
	// ":memory:" keeps the index in process memory.
	Path string `yaml:"path" env:"TERM_INDEX_PATH" env-default:"mnemos-index.db"`
}

// CacheConfig tunes the recency cache.
type CacheConfig struct {
	// Capacity is the fixed number of entries the cache retains.
	Capacity int `yaml:"capacity" env:"CACHE_CAPACITY" env-default:"256"`
}

// PipelineConfig holds import pipeline toggles.
type PipelineConfig struct {
	// SanitizeContent enables the sanitization stage.
	SanitizeContent bool `yaml:"sanitize_content" env:"PIPELINE_SANITIZE_CONTENT" env-default:"true"`
	// DeduplicateEntries enables the deduplication stage.
	DeduplicateEntries bool `yaml:"deduplicate_entries" env:"PIPELINE_DEDUPLICATE_ENTRIES" env-default:"true"`
	// StorageBatchSize is the number of entries persisted per storage batch.
	StorageBatchSize int `yaml:"storage_batch_size" env:"PIPELINE_STORAGE_BATCH_SIZE" env-default:"100"`
	// GuardedTypes lists content types whose entries pass through the
	// injection-guard sanitizer. Unlisted types use pass-through.
	GuardedTypes []string `yaml:"guarded_types" env:"PIPELINE_GUARDED_TYPES" env-separator:","`
}

// SearchConfig holds query-side defaults.
type SearchConfig struct {
	// DefaultLimit is the result cap applied when a query does not set one.
	DefaultLimit int `yaml:"default_limit" env:"SEARCH_DEFAULT_LIMIT" env-default:"20"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When config.yaml does not exist, configuration comes from
// environment variables and defaults alone. The version parameter is
// injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom("config.yaml", version)
}

// LoadFrom is Load with an explicit config file path.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate rejects unknown backends and out-of-range tunables early,
// before any component is constructed from them.
func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.TermIndex.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown term index backend %q", c.TermIndex.Backend)
	}

	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Cache.Capacity)
	}

	if c.Pipeline.StorageBatchSize <= 0 {
		return fmt.Errorf("storage batch size must be positive, got %d", c.Pipeline.StorageBatchSize)
	}

	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
