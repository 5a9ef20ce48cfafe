// Package telemetry provides opt-in error tracking through Sentry.
package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/leafscan/internal/conf"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/logger"
)

// FlushTimeout bounds how long Close waits for queued events.
const FlushTimeout = 2 * time.Second

var initialized atomic.Bool

// Option adjusts the Sentry client options before Init.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport, used by tests.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) {
		o.Transport = t
	}
}

// Init starts Sentry when enabled and installs the error reporter so every
// built EnhancedError is captured. It is a no-op when telemetry is disabled.
func Init(settings conf.SentrySettings, version string, opts ...Option) error {
	log := GetLogger()
	if !settings.Enabled {
		log.Info("sentry telemetry is disabled")
		return nil
	}

	env := settings.Environment
	if env == "" {
		env = "production"
	}
	options := sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      env,
		ServerName:       "",
		Release:          fmt.Sprintf("leafscan@%s", version),
		BeforeSend:       applyPrivacyFilters,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized.Store(true)
	log.Info("sentry telemetry initialized",
		logger.String("environment", env),
		logger.String("release", options.Release))
	return nil
}

// Enabled reports whether Init started Sentry.
func Enabled() bool {
	return initialized.Load()
}

// Close detaches the reporter and flushes pending events.
func Close() {
	if !initialized.CompareAndSwap(true, false) {
		return
	}
	errors.SetTelemetryReporter(nil)
	if !sentry.Flush(FlushTimeout) {
		GetLogger().Warn("sentry flush timed out", logger.Duration("timeout", FlushTimeout))
	}
}

// applyPrivacyFilters strips host and user identity from outgoing events.
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil
	event.Modules = nil
	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	return event
}
