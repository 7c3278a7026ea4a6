// Package logger builds the process-wide zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ModeDebug is the server mode that selects the development logger.
const ModeDebug = "debug"

// New creates a new zap logger. Development mode uses the colored console
// encoder at debug level; production emits JSON at info level.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config

	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.InitialFields = map[string]any{"service": "tradeboard"}

	return cfg.Build()
}

// ForMode picks the logger for a server mode. The debug flag forces
// development output regardless of mode.
func ForMode(mode string, debug bool) (*zap.Logger, error) {
	return New(debug || mode == ModeDebug)
}

// Must creates a logger or panics
func Must(development bool) *zap.Logger {
	log, err := New(development)
	if err != nil {
		panic(err)
	}
	return log
}
