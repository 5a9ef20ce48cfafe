package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives every built EnhancedError while enabled.
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reporterMu         sync.RWMutex
	telemetryReporter  TelemetryReporter
	hasActiveReporting atomic.Bool
)

// SetTelemetryReporter installs the process-wide reporter. nil disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	telemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

func reportToTelemetry(ee *EnhancedError) {
	if !hasActiveReporting.Load() {
		return
	}
	reporterMu.RLock()
	reporter := telemetryReporter
	reporterMu.RUnlock()
	if reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

// SentryReporter sends errors to Sentry after scrubbing personal data.
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a reporter. The Sentry client must already be initialized.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError captures ee as a Sentry event, once.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := errorTitle(ee)
	component := ee.GetComponent()

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_title", title)
		scope.SetTag("component", component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		level := levelFor(ee.Category)
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

func errorTitle(ee *EnhancedError) string {
	var parts []string
	if c := ee.GetComponent(); c != "" && c != ComponentUnknown {
		parts = append(parts, titleCase(c))
	}
	if cat := categoryTitle(ee.Category); cat != "" {
		parts = append(parts, cat)
	}
	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		words := strings.Fields(strings.ReplaceAll(op, "_", " "))
		for i, w := range words {
			words[i] = titleCase(w)
		}
		parts = append(parts, strings.Join(words, " "))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

func categoryTitle(category ErrorCategory) string {
	switch category {
	case CategoryImageLoad:
		return "Image Load Error"
	case CategoryModelLoad:
		return "Model Loading Error"
	case CategoryModelInit:
		return "Model Initialization Error"
	case CategoryInference:
		return "Inference Error"
	case CategoryDatabase:
		return "Database Error"
	case CategoryValidation:
		return "Validation Error"
	case CategoryConfiguration:
		return "Configuration Error"
	case CategoryNetwork:
		return "Network Error"
	case CategoryFileIO:
		return "File I/O Error"
	default:
		return string(category)
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func levelFor(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryMQTTConnect, CategoryMQTTPublish, CategoryFileIO, CategoryImageLoad, CategoryValidation:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	urlQueryPattern = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretPattern   = regexp.MustCompile(`(?i)(password|passwd|token|api[_-]?key|dsn)[=:]\S+`)
	homePathPattern = regexp.MustCompile(`/(home|Users)/[^/\s]+`)
)

// scrubMessage removes emails, secrets, URL queries and home directory
// names. History rows are keyed by email so those show up in database errors.
func scrubMessage(message string) string {
	scrubbed := emailPattern.ReplaceAllString(message, "[EMAIL_REDACTED]")
	scrubbed = urlQueryPattern.ReplaceAllString(scrubbed, "$1?[REDACTED]")
	scrubbed = secretPattern.ReplaceAllString(scrubbed, "$1=[REDACTED]")
	scrubbed = homePathPattern.ReplaceAllString(scrubbed, "/$1/[USER]")
	return scrubbed
}
