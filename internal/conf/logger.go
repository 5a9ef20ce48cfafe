// Package conf provides configuration management for leafscan.
package conf

import "github.com/tphakala/leafscan/internal/logger"

// GetLogger returns the config package logger. It is fetched from the
// global logger on every call because configuration is loaded before the
// central logger is installed.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
