// Package config provides configuration management for rollframe engine operations
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for rolling-window execution
type Config struct {
	// Parallel Processing Configuration
	ParallelThreshold int `json:"parallel_threshold" yaml:"parallel_threshold"` // Minimum rows to trigger parallel kernel execution
	WorkerPoolSize    int `json:"worker_pool_size" yaml:"worker_pool_size"`     // Number of worker goroutines (0 = auto-detect)
	ChunkSize         int `json:"chunk_size" yaml:"chunk_size"`                 // Rows per collective group; must be a multiple of 64

	// UDF Configuration
	UDFCacheDisabled bool `json:"udf_cache_disabled" yaml:"udf_cache_disabled"` // Bypass the compiled-program cache

	// Debugging Configuration
	VerboseLogging bool `json:"verbose_logging" yaml:"verbose_logging"` // Log kernel launches and UDF cache activity
}

// Default configuration values
const (
	DefaultParallelThreshold = 1000
	DefaultChunkSize         = 256
)

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

func init() {
	globalConfig = Default()
}

// Default returns a Config populated with default values
func Default() Config {
	return Config{
		ParallelThreshold: DefaultParallelThreshold,
		WorkerPoolSize:    runtime.NumCPU(),
		ChunkSize:         DefaultChunkSize,
	}
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.ParallelThreshold < 0 {
		return fmt.Errorf("parallel_threshold must be non-negative, got %d", c.ParallelThreshold)
	}
	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("worker_pool_size must be non-negative, got %d", c.WorkerPoolSize)
	}
	if c.ChunkSize <= 0 || c.ChunkSize%64 != 0 {
		return fmt.Errorf("chunk_size must be a positive multiple of 64, got %d", c.ChunkSize)
	}
	return nil
}

// Get returns a copy of the current global configuration
func Get() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// Set replaces the global configuration after validating it
func Set(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = c
	return nil
}

// Reset restores the global configuration to defaults
func Reset() {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = Default()
}

// LoadFromFile loads configuration from a YAML or JSON file, applying it
// on top of the defaults
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromEnv applies ROLLFRAME_* environment variable overrides to a copy
// of the given configuration
func LoadFromEnv(base Config) Config {
	cfg := base

	if v := os.Getenv("ROLLFRAME_PARALLEL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ParallelThreshold = n
		}
	}
	if v := os.Getenv("ROLLFRAME_WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("ROLLFRAME_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChunkSize = n
		}
	}
	if v := os.Getenv("ROLLFRAME_UDF_CACHE_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UDFCacheDisabled = b
		}
	}
	if v := os.Getenv("ROLLFRAME_VERBOSE_LOGGING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.VerboseLogging = b
		}
	}

	return cfg
}
