// Package config provides tests for engine configuration loading.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 256, cfg.Engine.ParseCacheSize)
	assert.Equal(t, 10, cfg.Engine.OptimizerPasses)
	assert.Equal(t, 20, cfg.Engine.ShowLimit)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CYPHERFRAME_PARSE_CACHE_SIZE", "512")
	t.Setenv("CYPHERFRAME_OPTIMIZER_PASSES", "4")
	t.Setenv("CYPHERFRAME_SHOW_LIMIT", "7")
	t.Setenv("CYPHERFRAME_DATA_DIR", "/tmp/graph")
	t.Setenv("CYPHERFRAME_BADGER_SYNC_WRITES", "true")

	cfg := LoadFromEnv()
	assert.Equal(t, 512, cfg.Engine.ParseCacheSize)
	assert.Equal(t, 4, cfg.Engine.OptimizerPasses)
	assert.Equal(t, 7, cfg.Engine.ShowLimit)
	assert.Equal(t, "/tmp/graph", cfg.Storage.DataDir)
	assert.True(t, cfg.Storage.SyncWrites)
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("CYPHERFRAME_PARSE_CACHE_SIZE", "not-a-number")
	cfg := LoadFromEnv()
	assert.Equal(t, 256, cfg.Engine.ParseCacheSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("engine:\n  parse_cache_size: 128\n  optimizer_passes: 3\nstorage:\n  data_dir: ./data\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Engine.ParseCacheSize)
	assert.Equal(t, 3, cfg.Engine.OptimizerPasses)
	// Unset keys keep defaults.
	assert.Equal(t, 20, cfg.Engine.ShowLimit)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Engine.ParseCacheSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.OptimizerPasses = -1
	assert.Error(t, cfg.Validate())
}
