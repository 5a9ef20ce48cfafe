package classifier

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/logger"
)

// DefaultLabels is the label order the bundled model was trained with.
var DefaultLabels = Labels{"miner", "nodisease", "other", "phoma", "rust"}

// Labels maps a model output index to a label name.
type Labels []string

// Name returns the label at index i. ok is false when i is outside the set.
func (l Labels) Name(i int) (name string, ok bool) {
	if i < 0 || i >= len(l) {
		return "", false
	}
	return l[i], true
}

// Len returns the number of labels.
func (l Labels) Len() int { return len(l) }

var titleCaser = cases.Title(language.English)

// Display returns a human friendly form of a label, e.g. "nodisease" -> "Nodisease".
func Display(label string) string {
	return titleCaser.String(strings.TrimSpace(label))
}

// LoadLabels reads a labels.json file of the form {"miner": 0, "rust": 4}
// and returns the names ordered by index. A missing file yields
// DefaultLabels. Indices must cover 0..n-1 exactly once.
func LoadLabels(path string) (Labels, error) {
	log := GetLogger()

	data, err := os.ReadFile(path) //nolint:gosec // labels path comes from configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("labels file not found, using default labels",
				logger.String("path", path),
				logger.Any("labels", []string(DefaultLabels)))
			return DefaultLabels, nil
		}
		return nil, labelError(err, path)
	}

	var byName map[string]int
	if err := json.Unmarshal(data, &byName); err != nil {
		return nil, labelError(fmt.Errorf("parse labels: %w", err), path)
	}

	labels, err := invertLabels(byName)
	if err != nil {
		return nil, labelError(err, path)
	}

	log.Info("labels loaded", logger.String("path", path), logger.Int("count", len(labels)))
	return labels, nil
}

func invertLabels(byName map[string]int) (Labels, error) {
	if len(byName) == 0 {
		return nil, fmt.Errorf("labels file is empty")
	}
	labels := make(Labels, len(byName))
	for name, idx := range byName {
		if idx < 0 || idx >= len(byName) {
			return nil, fmt.Errorf("label %q has index %d outside 0..%d", name, idx, len(byName)-1)
		}
		if labels[idx] != "" {
			return nil, fmt.Errorf("labels %q and %q share index %d", labels[idx], name, idx)
		}
		labels[idx] = name
	}
	return labels, nil
}

func labelError(err error, path string) error {
	return errors.New(err).
		Component("classifier").
		Category(errors.CategoryLabelLoad).
		FileContext(path, 0).
		Build()
}
