// Package logger provides structured logging for FieldPass.
//
// It wraps Uber's zap logger behind a package-level instance that the
// rest of the service shares. The level comes from configuration:
//
//	logger.InitLogger("debug") // debug, info, warn, error
//
// Security-relevant rejections (counter regression, challenge replay)
// are logged here with their specific reason while the HTTP boundary
// only ever reveals a generic category.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is a no-op until InitLogger runs, so library use and tests never
// trip on a nil logger.
var Log = zap.NewNop()

func InitLogger(level string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	Log, err = cfg.Build()
	if err != nil {
		panic(err)
	}
}
