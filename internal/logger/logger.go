// Package logger builds the service-wide zap logger.
package logger

import (
	"fmt"

	"storefront-ledger/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a zap logger configured from cfg. Development mode forces the
// console encoder at debug level.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
		zc.Encoding = "console"
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zc = zap.NewProductionConfig()
		zc.Encoding = cfg.Logger.Encoding
		level, err := zapcore.ParseLevel(cfg.Logger.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logger.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	zc.DisableCaller = cfg.Logger.DisableCaller
	zc.DisableStacktrace = cfg.Logger.DisableStacktrace
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log.With(zap.String("service", "storefront-ledger")), nil
}

// Must is New that panics on error. Intended for main packages.
func Must(cfg *config.Config) *zap.Logger {
	log, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return log
}
