// Package config handles calotruth configuration from a YAML file and the
// environment.
//
// Configuration is layered: defaults, then the YAML file written by
// `calotruth init`, then environment variables prefixed with CALOTRUTH_. A
// .env file in the working directory is read first, so its values act as
// environment variables without overriding ones already set.
//
// Example Usage:
//
//	cfg, err := config.Load("./data/calotruth.yaml")
//	if err != nil {
//		return err
//	}
//	acc := truth.NewAccumulator(cfg.TruthOptions(), logger)
//
// Environment Variables:
//
// Truth:
//   - CALOTRUTH_COLLECTIONS="EcalHitsEB,HGCHitsEE"
//   - CALOTRUTH_MIN_ENERGY=0.5
//   - CALOTRUTH_MAX_PSEUDO_RAPIDITY=5.0
//   - CALOTRUTH_CHARGED_ONLY=false
//   - CALOTRUTH_SIGNAL_ONLY=true
//   - CALOTRUTH_REQUIRE_GEN_PARTICLE=true
//   - CALOTRUTH_MAX_PREVIOUS_BX=0
//   - CALOTRUTH_MAX_SUBSEQUENT_BX=0
//   - CALOTRUTH_ALLOW_DIFFERENT_PROCESS_TYPES=false
//
// Storage, input and logging:
//   - CALOTRUTH_DATA_DIR="./data"
//   - CALOTRUTH_IN_MEMORY=false
//   - CALOTRUTH_SYNC_WRITES=false
//   - CALOTRUTH_LOW_MEMORY=false
//   - CALOTRUTH_WORKERS=4
//   - CALOTRUTH_LOG_LEVEL=info
//   - CALOTRUTH_LOG_FORMAT=console
//   - CALOTRUTH_LOG_OUTPUT=stderr
//   - CALOTRUTH_METRICS_FILE=""
//   - CALOTRUTH_POOL_ENABLED=true
//   - CALOTRUTH_POOL_MAX_SIZE=65536
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/orneryd/calotruth/pkg/logging"
	"github.com/orneryd/calotruth/pkg/pool"
	"github.com/orneryd/calotruth/pkg/truth"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "CALOTRUTH_"

// FileName is the configuration file created by `calotruth init`.
const FileName = "calotruth.yaml"

// Config holds all calotruth configuration.
//
// Configuration is organized into logical sections:
//   - Truth: hit collections, particle selection and the bunch-crossing window
//   - Storage: where finalized events are persisted
//   - Input: event file loading
//   - Logging: logger level, format and destination
//   - Metrics: Prometheus textfile export
//   - Pool: slice pooling for the truth engine
type Config struct {
	Truth   TruthConfig   `yaml:"truth"`
	Storage StorageConfig `yaml:"storage"`
	Input   InputConfig   `yaml:"input"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Pool    PoolConfig    `yaml:"pool"`
}

// TruthConfig holds the accumulator settings.
type TruthConfig struct {
	// Collections are the hit collections read from every sub-event.
	Collections []string `yaml:"collections"`
	// MinEnergy is the minimum energy (GeV) of a calo particle.
	MinEnergy float64 `yaml:"min_energy"`
	// MaxPseudoRapidity is the maximum |eta| of a calo particle.
	MaxPseudoRapidity float64 `yaml:"max_pseudo_rapidity"`
	ChargedOnly       bool    `yaml:"charged_only"`
	SignalOnly        bool    `yaml:"signal_only"`
	// RequireGenParticle drops primaries without a generator particle.
	RequireGenParticle bool `yaml:"require_gen_particle"`
	// MaximumPreviousBunchCrossing and MaximumSubsequentBunchCrossing bound
	// the pileup window around the signal crossing.
	MaximumPreviousBunchCrossing   uint `yaml:"maximum_previous_bunch_crossing"`
	MaximumSubsequentBunchCrossing uint `yaml:"maximum_subsequent_bunch_crossing"`
	AllowDifferentProcessTypes     bool `yaml:"allow_different_process_types"`
}

// StorageConfig holds the event store settings.
type StorageConfig struct {
	DataDir    string `yaml:"data_dir"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
	LowMemory  bool   `yaml:"low_memory"`
}

// InputConfig holds event file loading settings.
type InputConfig struct {
	// Workers bounds how many files are decoded concurrently.
	Workers int `yaml:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (debug, info, warn, error)
	Level string `yaml:"level"`
	// Format (json, console)
	Format string `yaml:"format"`
	// Output path (stdout, stderr, or file path)
	Output string `yaml:"output"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// File receives a Prometheus textfile exposition after a run. Empty disables it.
	File string `yaml:"file"`
}

// PoolConfig holds slice pooling settings.
type PoolConfig struct {
	Enabled bool `yaml:"enabled"`
	MaxSize int  `yaml:"max_size"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	opts := truth.DefaultOptions()
	return &Config{
		Truth: TruthConfig{
			Collections:                    opts.Collections,
			MinEnergy:                      opts.Selector.MinEnergy,
			MaxPseudoRapidity:              opts.Selector.MaxPseudoRapidity,
			ChargedOnly:                    opts.Selector.ChargedOnly,
			SignalOnly:                     opts.Selector.SignalOnly,
			RequireGenParticle:             opts.Selector.RequireGenParticle,
			MaximumPreviousBunchCrossing:   opts.MaximumPreviousBunchCrossing,
			MaximumSubsequentBunchCrossing: opts.MaximumSubsequentBunchCrossing,
			AllowDifferentProcessTypes:     opts.AllowDifferentProcessTypes,
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Input: InputConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Pool: PoolConfig{
			Enabled: true,
			MaxSize: 1 << 16,
		},
	}
}

// Load reads .env, then the YAML file at path (skipped when path is empty),
// then the environment, and validates the result.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files, or ./.env when none are given.
// Missing files are ignored and variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// LoadFile reads a YAML configuration file over the defaults. Keys absent
// from the file keep their default value.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv returns the defaults with environment overrides applied.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides settings from CALOTRUTH_* environment variables.
func (c *Config) ApplyEnv() {
	t := &c.Truth
	t.Collections = getEnvStringSlice(EnvPrefix+"COLLECTIONS", t.Collections)
	t.MinEnergy = getEnvFloat(EnvPrefix+"MIN_ENERGY", t.MinEnergy)
	t.MaxPseudoRapidity = getEnvFloat(EnvPrefix+"MAX_PSEUDO_RAPIDITY", t.MaxPseudoRapidity)
	t.ChargedOnly = getEnvBool(EnvPrefix+"CHARGED_ONLY", t.ChargedOnly)
	t.SignalOnly = getEnvBool(EnvPrefix+"SIGNAL_ONLY", t.SignalOnly)
	t.RequireGenParticle = getEnvBool(EnvPrefix+"REQUIRE_GEN_PARTICLE", t.RequireGenParticle)
	t.MaximumPreviousBunchCrossing = getEnvUint(EnvPrefix+"MAX_PREVIOUS_BX", t.MaximumPreviousBunchCrossing)
	t.MaximumSubsequentBunchCrossing = getEnvUint(EnvPrefix+"MAX_SUBSEQUENT_BX", t.MaximumSubsequentBunchCrossing)
	t.AllowDifferentProcessTypes = getEnvBool(EnvPrefix+"ALLOW_DIFFERENT_PROCESS_TYPES", t.AllowDifferentProcessTypes)

	c.Storage.DataDir = getEnv(EnvPrefix+"DATA_DIR", c.Storage.DataDir)
	c.Storage.InMemory = getEnvBool(EnvPrefix+"IN_MEMORY", c.Storage.InMemory)
	c.Storage.SyncWrites = getEnvBool(EnvPrefix+"SYNC_WRITES", c.Storage.SyncWrites)
	c.Storage.LowMemory = getEnvBool(EnvPrefix+"LOW_MEMORY", c.Storage.LowMemory)

	c.Input.Workers = getEnvInt(EnvPrefix+"WORKERS", c.Input.Workers)

	c.Logging.Level = getEnv(EnvPrefix+"LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv(EnvPrefix+"LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv(EnvPrefix+"LOG_OUTPUT", c.Logging.Output)

	c.Metrics.File = getEnv(EnvPrefix+"METRICS_FILE", c.Metrics.File)

	c.Pool.Enabled = getEnvBool(EnvPrefix+"POOL_ENABLED", c.Pool.Enabled)
	c.Pool.MaxSize = getEnvInt(EnvPrefix+"POOL_MAX_SIZE", c.Pool.MaxSize)
}

// Validate checks that the configuration is usable.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	if len(c.Truth.Collections) == 0 {
		return fmt.Errorf("no hit collections configured")
	}
	for i, name := range c.Truth.Collections {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("hit collection %d has an empty name", i)
		}
	}
	if c.Truth.MinEnergy < 0 {
		return fmt.Errorf("invalid min energy: %g", c.Truth.MinEnergy)
	}
	if c.Truth.MaxPseudoRapidity < 0 {
		return fmt.Errorf("invalid max pseudorapidity: %g", c.Truth.MaxPseudoRapidity)
	}
	if c.Input.Workers <= 0 {
		return fmt.Errorf("invalid worker count: %d", c.Input.Workers)
	}
	if c.Pool.MaxSize < 0 {
		return fmt.Errorf("invalid pool max size: %d", c.Pool.MaxSize)
	}
	if !c.Storage.InMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("data dir required unless storage is in memory")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// TruthOptions converts the truth section into accumulator options.
func (c *Config) TruthOptions() truth.Options {
	return truth.Options{
		Collections: append([]string(nil), c.Truth.Collections...),
		Selector: truth.Selector{
			MinEnergy:          c.Truth.MinEnergy,
			MaxPseudoRapidity:  c.Truth.MaxPseudoRapidity,
			ChargedOnly:        c.Truth.ChargedOnly,
			SignalOnly:         c.Truth.SignalOnly,
			RequireGenParticle: c.Truth.RequireGenParticle,
		},
		MaximumPreviousBunchCrossing:   c.Truth.MaximumPreviousBunchCrossing,
		MaximumSubsequentBunchCrossing: c.Truth.MaximumSubsequentBunchCrossing,
		AllowDifferentProcessTypes:     c.Truth.AllowDifferentProcessTypes,
	}
}

// LoggingOptions converts the logging section into logger options.
func (c *Config) LoggingOptions() logging.Options {
	opts := logging.Options{Level: c.Logging.Level, Format: c.Logging.Format}
	if c.Logging.Output != "" {
		opts.OutputPaths = []string{c.Logging.Output}
	}
	return opts
}

// PoolOptions converts the pool section into pool settings.
func (c *Config) PoolOptions() pool.PoolConfig {
	return pool.PoolConfig{Enabled: c.Pool.Enabled, MaxSize: c.Pool.MaxSize}
}

// WriteFile writes the configuration as YAML.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	content := "# calotruth configuration\n" + string(data)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// String returns a short summary of the Config suitable for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Collections: %v, MinEnergy: %g, MaxEta: %g, Window: [-%d,%d], DataDir: %s, InMemory: %v}",
		c.Truth.Collections,
		c.Truth.MinEnergy, c.Truth.MaxPseudoRapidity,
		c.Truth.MaximumPreviousBunchCrossing, c.Truth.MaximumSubsequentBunchCrossing,
		c.Storage.DataDir, c.Storage.InMemory,
	)
}

// Helper functions for environment variable parsing

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

func getEnvUint(key string, defaultVal uint) uint {
	if val := os.Getenv(key); val != "" {
		if u, err := strconv.ParseUint(val, 10, 0); err == nil {
			return uint(u)
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
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

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		// Split by comma, trim whitespace
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}
