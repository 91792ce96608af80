// Package config loads playbook settings: defaults, then an optional YAML file,
// then PLAYBOOK_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// EnvPrefix namespaces every environment variable.
const EnvPrefix = "PLAYBOOK_"

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "playbook.yaml"

type Config struct {
	DataDir  string `yaml:"data_dir" env:"DATA_DIR"`
	Store    string `yaml:"store" env:"STORE"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	SQLite   SQLiteConfig   `yaml:"sqlite" envPrefix:"SQLITE_"`
	Catalog  CatalogConfig  `yaml:"catalog" envPrefix:"CATALOG_"`
	Security SecurityConfig `yaml:"security" envPrefix:"SECURITY_"`

	HTTPAddr      string        `yaml:"http_addr" env:"HTTP_ADDR"`
	Metrics       bool          `yaml:"metrics" env:"METRICS"`
	CleanupMaxAge time.Duration `yaml:"cleanup_max_age" env:"CLEANUP_MAX_AGE"`

	// Vars seed the context of every started protocol (e.g. code_root, vault_dir).
	Vars map[string]string `yaml:"vars"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	Prefix   string        `yaml:"prefix" env:"PREFIX"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// CatalogConfig selects the protocol sources. Later sources override earlier ones by ID:
// built-ins, then File, then Dir.
type CatalogConfig struct {
	Dir       string `yaml:"dir" env:"DIR"`
	File      string `yaml:"file" env:"FILE"`
	NoBuiltin bool   `yaml:"no_builtin" env:"NO_BUILTIN"`
}

// SecurityConfig controls what reaches the execution store.
type SecurityConfig struct {
	// EncryptionKey is a base64 encoded 32-byte AES key. Empty disables encryption.
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
	// FallbackKeys still decrypt data written under a rotated-out key.
	FallbackKeys []string `yaml:"fallback_keys" env:"FALLBACK_KEYS" envSeparator:","`
	// Redact lists regular expressions; matching context keys are masked before saving.
	Redact []string `yaml:"redact" env:"REDACT" envSeparator:","`
}

// Keys decodes the encryption keys. active is nil when encryption is off.
func (s SecurityConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err = decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("security.encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("security.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	dataDir := filepath.Join(".playbook", "data")
	return Config{
		DataDir:  dataDir,
		Store:    StoreFile,
		LogLevel: "info",
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "playbook:",
		},
		SQLite: SQLiteConfig{
			Path: filepath.Join(dataDir, "playbook.db"),
		},
		HTTPAddr:      ":8080",
		CleanupMaxAge: 24 * time.Hour,
	}
}

// Load resolves the configuration. An explicit path must exist; otherwise
// PLAYBOOK_CONFIG and then ./playbook.yaml are tried.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultFile
	}

	if err := loadFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks enumerations and required fields.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreMemory, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("unknown store %q (want file, memory, redis or sqlite)", c.Store)
	}
	if c.Store == StoreRedis && c.Redis.Addr == "" {
		return errors.New("redis store requires redis.addr")
	}
	if c.Store == StoreSQLite && c.SQLite.Path == "" {
		return errors.New("sqlite store requires sqlite.path")
	}
	if _, _, err := c.Security.Keys(); err != nil {
		return err
	}
	return nil
}
