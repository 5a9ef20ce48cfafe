// Package report renders a detection and its chat transcript as a plain
// text report.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/errors"
)

// TimeLayout formats the Generated line.
const TimeLayout = "2006-01-02 15:04:05"

// Report holds everything shown in an exported report.
type Report struct {
	Disease    string
	Confidence float32 // 0..1
	Remedies   string
	Turns      []conversation.Turn
	Generated  time.Time
}

// Render returns the report text.
func Render(r Report) string {
	generated := r.Generated
	if generated.IsZero() {
		generated = time.Now()
	}

	remedies := r.Remedies
	if remedies == "" {
		remedies = "No remedies available"
	}

	chat := "No chat history"
	if len(r.Turns) > 0 {
		lines := make([]string, len(r.Turns))
		for i, t := range r.Turns {
			lines[i] = t.Sender + ": " + t.Message
		}
		chat = strings.Join(lines, "\n")
	}

	var b strings.Builder
	b.WriteString("Coffee Leaf Disease Detection Report\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", generated.Format(TimeLayout))
	fmt.Fprintf(&b, "Disease Detected: %s\n", r.Disease)
	fmt.Fprintf(&b, "Confidence: %.1f%%\n\n", r.Confidence*100)
	fmt.Fprintf(&b, "Remedies:\n%s\n\n", remedies)
	fmt.Fprintf(&b, "Chat History:\n%s\n\n", chat)
	b.WriteString("---\nReport generated by Coffee Disease Detection App\n")
	return b.String()
}

// Write renders r to path, creating the parent directory if needed.
func Write(path string, r Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return writeError(err, path)
		}
	}
	if err := os.WriteFile(path, []byte(Render(r)), 0o644); err != nil { //nolint:gosec // reports are meant to be shared
		return writeError(err, path)
	}
	return nil
}

func writeError(err error, path string) error {
	return errors.New(err).
		Component("report").
		Category(errors.CategoryFileIO).
		Context("operation", "write_report").
		FileContext(path, 0).
		Build()
}
