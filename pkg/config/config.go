// Package config holds the typed, validated configuration for the
// commitment tree engine, per SPEC_FULL.md §9. Recognized keys are
// spec.md §6's plus the persistence and API keys; loading follows the
// teacher's cmd/kmsServer/main.go convention of urfave/cli/v2 flags with EnvVars fallbacks parsed into a
// typed struct before being handed to pkg/builder.
package config

import (
	"fmt"
	"time"
)

// Environment variable names, mirroring the teacher's EnvKMS* naming
// convention (pkg/config's EnvKMSOperatorAddress etc.) adapted to this
// engine's keys.
const (
	EnvPollIntervalSeconds = "SEQUENCER_POLL_INTERVAL_SECONDS"
	EnvBatchSize           = "SEQUENCER_BATCH_SIZE"
	EnvEnableRebuild       = "SEQUENCER_ENABLE_STARTUP_REBUILD"
	EnvTreeDepth           = "SEQUENCER_TREE_DEPTH"
	EnvLogLevel            = "SEQUENCER_LOG_LEVEL"
	EnvPersistenceType     = "SEQUENCER_PERSISTENCE_TYPE"
	EnvPersistenceDataPath = "SEQUENCER_PERSISTENCE_DATA_PATH"
	EnvAPIAddr             = "SEQUENCER_API_ADDR"
	EnvAPIInsertRateLimit  = "SEQUENCER_API_INSERT_RATE_LIMIT"
	EnvAPIInsertBurst      = "SEQUENCER_API_INSERT_BURST"
)

// LogLevel is one of debug|info|warn|error, per spec.md §6.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) valid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Config is the fully parsed, validated engine configuration.
type Config struct {
	PollIntervalSeconds int
	BatchSize           int
	EnableRebuild       bool
	TreeDepth           int
	LogLevel            LogLevel

	PersistenceType     string
	PersistenceDataPath string

	APIAddr          string
	APIInsertRateLim float64
	APIInsertBurst   int
}

// Default returns spec.md §6's documented defaults.
func Default() Config {
	return Config{
		PollIntervalSeconds: 10,
		BatchSize:           100,
		EnableRebuild:       true,
		TreeDepth:           32,
		LogLevel:            LogLevelInfo,
		PersistenceType:     "badger",
		PersistenceDataPath: "./sequencer-data",
		APIAddr:             ":8080",
		APIInsertRateLim:    50,
		APIInsertBurst:      100,
	}
}

// Validate rejects an unusable configuration before it reaches the
// builder or store.
func (c Config) Validate() error {
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("config: poll_interval_seconds must be positive, got %d", c.PollIntervalSeconds)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive, got %d", c.BatchSize)
	}
	if c.TreeDepth <= 0 {
		return fmt.Errorf("config: tree_depth must be positive, got %d", c.TreeDepth)
	}
	if !c.LogLevel.valid() {
		return fmt.Errorf("config: log_level must be one of debug|info|warn|error, got %q", c.LogLevel)
	}
	switch c.PersistenceType {
	case "badger", "memory":
	default:
		return fmt.Errorf("config: persistence_type must be badger or memory, got %q", c.PersistenceType)
	}
	if c.APIInsertRateLim <= 0 {
		return fmt.Errorf("config: api_insert_rate_limit must be positive, got %v", c.APIInsertRateLim)
	}
	if c.APIInsertBurst <= 0 {
		return fmt.Errorf("config: api_insert_burst must be positive, got %d", c.APIInsertBurst)
	}
	return nil
}

// PollInterval converts PollIntervalSeconds to a time.Duration for
// builder.Config.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}
