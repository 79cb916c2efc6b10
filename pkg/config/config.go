// Package config handles relkv configuration via environment variables.
//
// Configuration is loaded from environment variables using LoadFromEnv()
// and can be validated with Validate() before use. An optional .env file
// is read first through LoadDotenv, and a YAML file can seed the same
// settings via LoadFile for deployments that prefer files over env vars.
//
// Environment Variables:
//   - RELKV_DATA_DIR="./data" (badger data directory)
//   - RELKV_AUDIT_ENABLED=true
//   - RELKV_SYNC_WRITES=false
//   - RELKV_MAX_KEY_SIZE=100000 (bytes)
//   - RELKV_MAX_VALUE_SIZE=1000000 (bytes)
//   - RELKV_NAMESPACE="" (default namespace for CLI dumps)
//
// Precedence: environment variables override file values, file values
// override defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all relkv settings.
type Config struct {
	// DataDir is the badger data directory.
	DataDir string `yaml:"data_dir"`

	// AuditEnabled controls whether the engine appends audit entries.
	AuditEnabled bool `yaml:"audit_enabled"`

	// SyncWrites makes badger fsync every write.
	SyncWrites bool `yaml:"sync_writes"`

	// MaxKeySize and MaxValueSize bound stored entries in bytes.
	MaxKeySize   int `yaml:"max_key_size"`
	MaxValueSize int `yaml:"max_value_size"`

	// Namespace scopes CLI operations to one namespace, empty for all.
	Namespace string `yaml:"namespace"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DataDir:      "./data",
		AuditEnabled: true,
		SyncWrites:   false,
		MaxKeySize:   100_000,
		MaxValueSize: 1_000_000,
	}
}

// LoadDotenv loads a .env file into the process environment when one
// exists. A missing file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a YAML config file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv reads settings from the environment over the defaults.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// applyEnv overlays environment variables onto cfg.
func (c *Config) applyEnv() {
	c.DataDir = getEnv("RELKV_DATA_DIR", c.DataDir)
	c.AuditEnabled = getEnvBool("RELKV_AUDIT_ENABLED", c.AuditEnabled)
	c.SyncWrites = getEnvBool("RELKV_SYNC_WRITES", c.SyncWrites)
	c.MaxKeySize = getEnvInt("RELKV_MAX_KEY_SIZE", c.MaxKeySize)
	c.MaxValueSize = getEnvInt("RELKV_MAX_VALUE_SIZE", c.MaxValueSize)
	c.Namespace = getEnv("RELKV_NAMESPACE", c.Namespace)
}

// Load combines the sources in precedence order: defaults, then the
// YAML file when path is non-empty, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	cfg.applyEnv()
	return cfg, nil
}

// Validate reports the first invalid setting found.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.MaxKeySize <= 0 {
		return fmt.Errorf("max_key_size must be positive, got %d", c.MaxKeySize)
	}
	if c.MaxValueSize <= 0 {
		return fmt.Errorf("max_value_size must be positive, got %d", c.MaxValueSize)
	}
	if c.MaxKeySize > c.MaxValueSize {
		return fmt.Errorf("max_key_size %d exceeds max_value_size %d", c.MaxKeySize, c.MaxValueSize)
	}
	return nil
}

// String renders the config for startup logging, one setting per line.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "data_dir=%s\n", c.DataDir)
	fmt.Fprintf(&b, "audit_enabled=%t\n", c.AuditEnabled)
	fmt.Fprintf(&b, "sync_writes=%t\n", c.SyncWrites)
	fmt.Fprintf(&b, "max_key_size=%d\n", c.MaxKeySize)
	fmt.Fprintf(&b, "max_value_size=%d\n", c.MaxValueSize)
	fmt.Fprintf(&b, "namespace=%s", c.Namespace)
	return b.String()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
