package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Contains(t, cfg.Truth.Collections, "HGCHitsEE")
	assert.Equal(t, 0.5, cfg.Truth.MinEnergy)
	assert.True(t, cfg.Truth.SignalOnly)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, 4, cfg.Input.Workers)
	assert.True(t, cfg.Pool.Enabled)

	opts := cfg.TruthOptions()
	assert.Equal(t, cfg.Truth.Collections, opts.Collections)
	assert.Equal(t, 5.0, opts.Selector.MaxPseudoRapidity)
	assert.True(t, opts.Selector.RequireGenParticle)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CALOTRUTH_COLLECTIONS", "EE, HE ,")
	t.Setenv("CALOTRUTH_MIN_ENERGY", "1.25")
	t.Setenv("CALOTRUTH_CHARGED_ONLY", "yes")
	t.Setenv("CALOTRUTH_SIGNAL_ONLY", "false")
	t.Setenv("CALOTRUTH_MAX_PREVIOUS_BX", "3")
	t.Setenv("CALOTRUTH_MAX_SUBSEQUENT_BX", "-1")
	t.Setenv("CALOTRUTH_WORKERS", "not-a-number")
	t.Setenv("CALOTRUTH_IN_MEMORY", "1")
	t.Setenv("CALOTRUTH_LOG_FORMAT", "json")

	cfg := LoadFromEnv()
	assert.Equal(t, []string{"EE", "HE"}, cfg.Truth.Collections)
	assert.Equal(t, 1.25, cfg.Truth.MinEnergy)
	assert.True(t, cfg.Truth.ChargedOnly)
	assert.False(t, cfg.Truth.SignalOnly)
	assert.Equal(t, uint(3), cfg.Truth.MaximumPreviousBunchCrossing)
	assert.Equal(t, uint(0), cfg.Truth.MaximumSubsequentBunchCrossing)
	assert.Equal(t, 4, cfg.Input.Workers)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, "json", cfg.LoggingOptions().Format)
}

func TestLoadFile(t *testing.T) {
	t.Run("overrides_only_given_keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		content := `truth:
  collections: [EE]
  min_energy: 2
  maximum_previous_bunch_crossing: 2
storage:
  data_dir: /tmp/calotruth
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"EE"}, cfg.Truth.Collections)
		assert.Equal(t, 2.0, cfg.Truth.MinEnergy)
		assert.Equal(t, uint(2), cfg.Truth.MaximumPreviousBunchCrossing)
		assert.Equal(t, 5.0, cfg.Truth.MaxPseudoRapidity)
		assert.Equal(t, "/tmp/calotruth", cfg.Storage.DataDir)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte("truth: [unclosed"), 0644))
		_, err := LoadFile(path)
		assert.Error(t, err)
	})
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	cfg.Truth.AllowDifferentProcessTypes = true
	cfg.Metrics.File = "metrics.prom"
	require.NoError(t, cfg.WriteFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, DefaultConfig().WriteFile(path))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CALOTRUTH_TEST_DOTENV=from-file\n"), 0644))
	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "missing.env")))
	t.Cleanup(func() { os.Unsetenv("CALOTRUTH_TEST_DOTENV") })
	assert.Equal(t, "from-file", os.Getenv("CALOTRUTH_TEST_DOTENV"))

	t.Setenv("CALOTRUTH_MIN_ENERGY", "-1")
	_, err := Load(path)
	assert.Error(t, err)

	t.Setenv("CALOTRUTH_MIN_ENERGY", "0.75")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.75, cfg.Truth.MinEnergy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no_collections", func(c *Config) { c.Truth.Collections = nil }},
		{"blank_collection", func(c *Config) { c.Truth.Collections = []string{"EE", " "} }},
		{"negative_min_energy", func(c *Config) { c.Truth.MinEnergy = -0.1 }},
		{"negative_max_eta", func(c *Config) { c.Truth.MaxPseudoRapidity = -1 }},
		{"no_workers", func(c *Config) { c.Input.Workers = 0 }},
		{"negative_pool_size", func(c *Config) { c.Pool.MaxSize = -1 }},
		{"no_data_dir", func(c *Config) { c.Storage.DataDir = "" }},
		{"bad_log_level", func(c *Config) { c.Logging.Level = "chatty" }},
		{"bad_log_format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("in_memory_needs_no_data_dir", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = ""
		cfg.Storage.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

func TestString(t *testing.T) {
	s := DefaultConfig().String()
	assert.Contains(t, s, "MinEnergy: 0.5")
	assert.Contains(t, s, "DataDir: ./data")
}

func TestPoolOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pool.Enabled = false
	p := cfg.PoolOptions()
	assert.False(t, p.Enabled)
	assert.Equal(t, 1<<16, p.MaxSize)
}
