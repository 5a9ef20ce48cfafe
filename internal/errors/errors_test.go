package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReporter struct {
	enabled  bool
	reported []*EnhancedError
}

func (f *fakeReporter) ReportError(ee *EnhancedError) {
	f.reported = append(f.reported, ee)
	ee.MarkReported()
}

func (f *fakeReporter) IsEnabled() bool { return f.enabled }

type labelErr struct{}

func (labelErr) Error() string                { return "duplicate label index" }
func (labelErr) ErrorCategory() ErrorCategory { return CategoryLabelLoad }

func TestBuild_Defaults(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("plain failure")).Build()

	assert.Equal(t, "plain failure", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuild_ExplicitFields(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := Newf("model %s missing", "leaf.tflite").
		Component("classifier").
		Category(CategoryModelLoad).
		Priority(PriorityHigh).
		ModelContext("full", "/opt/models/leaf.tflite").
		Timing("load_model", 1500*time.Millisecond).
		Build()

	assert.Equal(t, "classifier", ee.GetComponent())
	assert.Equal(t, CategoryModelLoad, ee.Category)
	assert.Equal(t, PriorityHigh, ee.Priority)
	ctx := ee.GetContext()
	assert.Equal(t, "full", ctx["model_strategy"])
	assert.Equal(t, "leaf.tflite", ctx["model_file"])
	assert.Equal(t, "load_model", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])
}

func TestBuild_InvalidPriorityFallsBack(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestBuild_CategoryFromCategorizedError(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("labels: %w", labelErr{})).Build()
	assert.Equal(t, CategoryLabelLoad, ee.Category)
}

func TestFileContext(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(NewStd("decode failed")).FileContext("/home/grower/leaf.JPG", 2048).Build()
	ctx := ee.GetContext()
	assert.Equal(t, "jpg", ctx["file_extension"])
	assert.Equal(t, "small", ctx["file_size_category"])
	assert.NotContains(t, fmt.Sprint(ctx), "grower")
}

func TestIsAndCategory(t *testing.T) {
	SetTelemetryReporter(nil)

	sentinel := NewStd("no model loaded")
	ee := New(sentinel).Category(CategoryModelLoad).Build()
	wrapped := fmt.Errorf("detect: %w", ee)

	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, IsCategory(wrapped, CategoryModelLoad))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, CategoryModelLoad, CategoryOf(wrapped))
	assert.Equal(t, CategoryGeneric, CategoryOf(sentinel))
	assert.True(t, Is(wrapped, &EnhancedError{Category: CategoryModelLoad}))
}

func TestTelemetryReporter(t *testing.T) {
	reporter := &fakeReporter{enabled: true}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("publish failed")).Component("mqtt").Category(CategoryMQTTPublish).Build()

	require.Len(t, reporter.reported, 1)
	assert.Same(t, ee, reporter.reported[0])
	assert.True(t, ee.IsReported())
}

func TestTelemetryReporter_Disabled(t *testing.T) {
	reporter := &fakeReporter{enabled: false}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	_ = New(NewStd("ignored")).Build()
	assert.Empty(t, reporter.reported)
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		absent  string
		present string
	}{
		{"email", "no history for grower@example.com", "grower@example.com", "[EMAIL_REDACTED]"},
		{"password", "dial failed password=hunter2", "hunter2", "password=[REDACTED]"},
		{"url query", "GET https://sentry.io/api?key=abc failed", "key=abc", "https://sentry.io/api?[REDACTED]"},
		{"home dir", "open /home/alice/leaf.jpg: no such file", "alice", "/home/[USER]/leaf.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scrubMessage(tt.in)
			assert.NotContains(t, got, tt.absent)
			assert.Contains(t, got, tt.present)
		})
	}
}

func TestErrorTitle(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(NewStd("x")).Component("history").Category(CategoryDatabase).Timing("save_record", time.Millisecond).Build()
	assert.Equal(t, "History Database Error Save Record", errorTitle(ee))
}
