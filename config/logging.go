package config

import (
	"fmt"
	"strings"

	"github.com/pion/logging"
)

// ParseLevel maps "trace", "debug", "info", "warn", "error" and "disabled"
// to a log level.
func ParseLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(s) {
	case "trace":
		return logging.LogLevelTrace, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "info", "":
		return logging.LogLevelInfo, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "error":
		return logging.LogLevelError, nil
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	}
	return logging.LogLevelDisabled, fmt.Errorf("%w: LOG_LEVEL=%q", ErrInvalidValue, s)
}

// LoggerFactory returns a factory whose loggers log at level.
func LoggerFactory(level string) (*logging.DefaultLoggerFactory, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = lvl
	return f, nil
}
