// Package logging builds the zap loggers used across the application.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Modes accepted by New.
const (
	ModeRelease = "release"
	ModeDebug   = "debug"
)

// New returns a JSON production logger in release mode and a coloured
// development logger otherwise.
func New(mode string) (*zap.Logger, error) {
	var config zap.Config

	if mode == ModeRelease {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Sync flushes buffered entries. Errors from syncing a terminal are
// ignored.
func Sync(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
