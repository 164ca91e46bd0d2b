// Package logger provides the process-wide zap logger.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "estatetoken"

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init builds the global logger once per process.
//
// "production" logs JSON at info level with ISO8601 timestamps, "test" discards
// everything, and anything else uses the colored development encoder.
// LOG_LEVEL overrides the level in every mode but "test".
func Init(env string) {
	once.Do(func() {
		sugar = build(env).Sugar()
	})
}

func build(env string) *zap.Logger {
	if env == "test" {
		return zap.NewNop()
	}

	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.InitialFields = map[string]interface{}{"service": serviceName}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := zap.ParseAtomicLevel(raw); err == nil {
			cfg.Level = level
		}
	}

	base, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return base
}

// Get returns the global logger, initializing a development one on first use.
func Get() *zap.SugaredLogger {
	if sugar == nil {
		Init("development")
	}
	return sugar
}

// Named returns a child logger tagged with a component name.
func Named(component string) *zap.SugaredLogger {
	return Get().Named(component)
}

// Sync flushes buffered entries. Call it before exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
