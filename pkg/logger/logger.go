// Package logger builds the zap.Logger used throughout the commitment
// tree engine. Every long-running component takes a *zap.Logger rather
// than reaching for a package-level global.
package logger

import "go.uber.org/zap"

// LoggerConfig controls the verbosity and encoding of the constructed logger.
type LoggerConfig struct {
	// Debug enables debug-level logging and the development encoder
	// (human-readable, colorized console output instead of JSON).
	Debug bool
}

// NewLogger builds a zap.Logger configured for either production (JSON,
// info level and above) or development (console, debug level and above) use.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}

	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
