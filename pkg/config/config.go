// Package config handles engine configuration via environment variables
// and YAML files.
//
// CypherFrame is embeddable, so most hosts configure the runner directly
// in code; this package serves the CLI and hosts that want file- or
// environment-driven tuning. Environment variables are prefixed with
// CYPHERFRAME_.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	runner := cypher.NewRunner(model,
//		cypher.WithParseCacheSize(cfg.Engine.ParseCacheSize),
//		cypher.WithOptimizerPasses(cfg.Engine.OptimizerPasses))
//
// Environment Variables:
//   - CYPHERFRAME_PARSE_CACHE_SIZE=256
//   - CYPHERFRAME_OPTIMIZER_PASSES=10
//   - CYPHERFRAME_SHOW_LIMIT=20
//   - CYPHERFRAME_DATA_DIR=./data
//   - CYPHERFRAME_BADGER_SYNC_WRITES=false
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
}

// EngineConfig tunes the query pipeline.
type EngineConfig struct {
	// ParseCacheSize bounds the LRU parse cache.
	ParseCacheSize int `yaml:"parse_cache_size"`

	// OptimizerPasses bounds the optimizer fixpoint loop.
	OptimizerPasses int `yaml:"optimizer_passes"`

	// ShowLimit is the default row limit for table output.
	ShowLimit int `yaml:"show_limit"`
}

// StorageConfig configures the optional Badger-backed graph model used by
// the CLI.
type StorageConfig struct {
	// DataDir is the Badger directory. Empty selects the in-memory model.
	DataDir string `yaml:"data_dir"`

	// SyncWrites forces fsync after each write.
	SyncWrites bool `yaml:"sync_writes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			ParseCacheSize:  256,
			OptimizerPasses: 10,
			ShowLimit:       20,
		},
	}
}

// LoadFromEnv builds a Config from defaults overlaid with CYPHERFRAME_*
// environment variables. Unparsable values keep their defaults.
func LoadFromEnv() *Config {
	cfg := Default()
	if v, ok := envInt("CYPHERFRAME_PARSE_CACHE_SIZE"); ok {
		cfg.Engine.ParseCacheSize = v
	}
	if v, ok := envInt("CYPHERFRAME_OPTIMIZER_PASSES"); ok {
		cfg.Engine.OptimizerPasses = v
	}
	if v, ok := envInt("CYPHERFRAME_SHOW_LIMIT"); ok {
		cfg.Engine.ShowLimit = v
	}
	if v := os.Getenv("CYPHERFRAME_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("CYPHERFRAME_BADGER_SYNC_WRITES"); v != "" {
		cfg.Storage.SyncWrites = v == "true" || v == "1"
	}
	return cfg
}

// LoadFile reads a YAML configuration file over defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Engine.ParseCacheSize < 1 {
		return fmt.Errorf("engine.parse_cache_size must be at least 1, got %d", c.Engine.ParseCacheSize)
	}
	if c.Engine.OptimizerPasses < 1 {
		return fmt.Errorf("engine.optimizer_passes must be at least 1, got %d", c.Engine.OptimizerPasses)
	}
	return nil
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
