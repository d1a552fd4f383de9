// Package logging builds the structured zap logger shared by the daemon and
// CLI entrypoints.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for the given level and format
// ("json" or "text"), optionally also writing to filePath.
func New(level, format, filePath string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if filePath != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, filePath)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, filePath)
	}

	return cfg.Build()
}
