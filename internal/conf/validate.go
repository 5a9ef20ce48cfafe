// validate.go contains the checks run on loaded settings
package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

var validLogLevels = []string{"trace", "debug", "info", "warn", "warning", "error"}

// ValidateSettings validates the entire Settings struct and collects every
// problem instead of stopping at the first.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) []string{
		validateLoggingSettings,
		validateClassifierSettings,
		validateHistorySettings,
		validateWebServerSettings,
		validateMQTTSettings,
		validateSentrySettings,
		validateSessionSettings,
	} {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLoggingSettings(s *Settings) []string {
	var errs []string
	check := func(name, level string) {
		if level != "" && !slices.Contains(validLogLevels, strings.ToLower(level)) {
			errs = append(errs, fmt.Sprintf("logging: invalid %s level %q", name, level))
		}
	}
	check("default", s.Logging.DefaultLevel)
	if s.Logging.Console != nil {
		check("console", s.Logging.Console.Level)
	}
	if s.Logging.FileOutput != nil {
		check("file", s.Logging.FileOutput.Level)
		if s.Logging.FileOutput.Enabled && s.Logging.FileOutput.Path == "" {
			errs = append(errs, "logging: file output enabled but path is empty")
		}
	}
	return errs
}

func validateClassifierSettings(s *Settings) []string {
	var errs []string
	c := &s.Classifier
	if c.ModelPath == "" && c.ModelDir == "" && c.QuantizedPath == "" {
		errs = append(errs, "classifier: at least one of modelpath, modeldir or quantizedpath must be set")
	}
	if c.Threads < 0 {
		errs = append(errs, fmt.Sprintf("classifier: threads must be >= 0, got %d", c.Threads))
	}
	return errs
}

func validateHistorySettings(s *Settings) []string {
	var errs []string
	h := &s.History
	if h.SQLite.Enabled && h.MySQL.Enabled {
		errs = append(errs, "history: sqlite and mysql cannot both be enabled")
	}
	if h.SQLite.Enabled && h.SQLite.Path == "" {
		errs = append(errs, "history: sqlite path is required")
	}
	if h.MySQL.Enabled {
		if h.MySQL.Host == "" {
			errs = append(errs, "history: mysql host is required")
		}
		if h.MySQL.Database == "" {
			errs = append(errs, "history: mysql database is required")
		}
		if err := validatePort(h.MySQL.Port); err != nil {
			errs = append(errs, "history: mysql "+err.Error())
		}
	}
	return errs
}

func validateWebServerSettings(s *Settings) []string {
	var errs []string
	w := &s.WebServer
	if !w.Enabled {
		return nil
	}
	if err := validatePort(w.Port); err != nil {
		errs = append(errs, "webserver: "+err.Error())
	}
	if w.UploadDir == "" {
		errs = append(errs, "webserver: uploaddir is required")
	}
	if w.RateLimit < 0 {
		errs = append(errs, "webserver: ratelimit must be >= 0")
	}
	if w.RateLimit > 0 && w.Burst < 1 {
		errs = append(errs, "webserver: burst must be >= 1 when rate limiting is enabled")
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	m := &s.MQTT
	if !m.Enabled {
		return nil
	}
	var errs []string
	if m.Topic == "" {
		errs = append(errs, "mqtt: topic is required")
	}
	u, err := url.Parse(m.Broker)
	switch {
	case m.Broker == "":
		errs = append(errs, "mqtt: broker is required")
	case err != nil:
		errs = append(errs, fmt.Sprintf("mqtt: invalid broker URL: %v", err))
	case !slices.Contains([]string{"tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts"}, u.Scheme):
		errs = append(errs, fmt.Sprintf("mqtt: unsupported broker scheme %q", u.Scheme))
	}
	return errs
}

func validateSentrySettings(s *Settings) []string {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return []string{"sentry: dsn is required when enabled"}
	}
	return nil
}

func validateSessionSettings(s *Settings) []string {
	if s.Session.TTL <= 0 {
		return []string{"session: ttl must be positive"}
	}
	return nil
}

func validatePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}
