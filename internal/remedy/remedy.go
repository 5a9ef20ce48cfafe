// Package remedy looks up treatment advice for detected labels and
// translates it into the user's preferred language.
package remedy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/logger"
)

//go:embed remedies.yaml
var defaultRemedies []byte

// Table maps lowercase labels to remedy text.
type Table struct {
	entries map[string]string
}

// NewTable parses a YAML mapping of label to remedy text.
func NewTable(data []byte) (*Table, error) {
	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.New(fmt.Errorf("parse remedy table: %w", err)).
			Component("remedy").
			Category(errors.CategoryConfiguration).
			Build()
	}
	entries := make(map[string]string, len(raw))
	for label, text := range raw {
		entries[normalizeLabel(label)] = text
	}
	return &Table{entries: entries}, nil
}

// DefaultTable returns the built-in remedy table.
func DefaultTable() *Table {
	t, err := NewTable(defaultRemedies)
	if err != nil {
		panic(fmt.Sprintf("embedded remedies.yaml is invalid: %v", err))
	}
	return t
}

// LoadTable reads a remedy table from path, or returns the built-in table
// when path is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, errors.New(err).
			Component("remedy").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	t, err := NewTable(data)
	if err != nil {
		return nil, err
	}
	GetLogger().Info("remedy table loaded", logger.String("path", path), logger.Int("entries", len(t.entries)))
	return t, nil
}

// Lookup returns the remedy text for label. Labels without an entry get a
// generic remedy naming the label.
func (t *Table) Lookup(label string) string {
	if text, ok := t.entries[normalizeLabel(label)]; ok {
		return text
	}
	return Fallback(label)
}

// Has reports whether label has a dedicated entry.
func (t *Table) Has(label string) bool {
	_, ok := t.entries[normalizeLabel(label)]
	return ok
}

// Fallback is the generic remedy used for labels missing from the table.
func Fallback(label string) string {
	return fmt.Sprintf("General remedies for %s:\n"+
		"1. Remove affected parts\n"+
		"2. Apply fungicide\n"+
		"3. Improve plant spacing for air circulation\n"+
		"4. Avoid overhead watering", label)
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
