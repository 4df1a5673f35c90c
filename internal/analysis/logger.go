package analysis

import (
	"log/slog"

	"github.com/third-eye-sec/thirdeye/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("analysis")
	if logger == nil {
		logger = slog.Default().With("service", "analysis")
	}
}

// GetLogger returns the analysis package logger.
func GetLogger() *slog.Logger {
	return logger
}
