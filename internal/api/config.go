// Package api serves the leafscan HTTP API.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/tphakala/leafscan/internal/conf"
)

// Default constants for the HTTP server.
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 60 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
	DefaultHistoryLimit = 50
)

// Config holds the HTTP server configuration.
type Config struct {
	Host      string
	Port      string
	UploadDir string

	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64
	Burst     int
	BodyLimit string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:         "8080",
		UploadDir:    "uploads",
		RateLimit:    5,
		Burst:        10,
		BodyLimit:    "10M",
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
}

// ConfigFromSettings builds a Config from the web server settings.
func ConfigFromSettings(settings *conf.WebServerSettings) *Config {
	cfg := DefaultConfig()
	if settings.Port != "" {
		cfg.Port = settings.Port
	}
	if settings.UploadDir != "" {
		cfg.UploadDir = settings.UploadDir
	}
	if settings.BodyLimit != "" {
		cfg.BodyLimit = settings.BodyLimit
	}
	cfg.RateLimit = settings.RateLimit
	if settings.Burst > 0 {
		cfg.Burst = settings.Burst
	}
	return cfg
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload directory is required")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

// Address returns host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}
