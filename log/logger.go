package log

import "github.com/mazrean/fcgiclient/internal/pkg/log"

// Logger defines the interface for logging operations used throughout the client
// It provides methods for different log levels: debug, info, warn, and error
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

var DefaultLogger Logger = log.NewLogger(log.Info) // defaultLogger is the default logger instance
