// logger.go: structured logging for the jobqueue package
package jobqueue

import (
	"log/slog"

	"github.com/third-eye-sec/thirdeye/internal/logging"
)

const serviceName = "analysis.jobqueue"

// Package-level logger for job queue operations
var logger *slog.Logger

func init() {
	logger = logging.ForService(serviceName)
	// the logging system may not be initialized yet during early startup
	if logger == nil {
		logger = slog.Default().With("service", serviceName)
	}
}

// GetLogger returns the jobqueue package logger
func GetLogger() *slog.Logger {
	return logger
}
