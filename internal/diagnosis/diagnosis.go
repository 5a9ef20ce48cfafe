// Package diagnosis turns a probability vector into a label and decides
// what the user is told about it.
package diagnosis

import (
	"fmt"
	"math"

	"github.com/tphakala/leafscan/internal/classifier"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/logger"
)

// UnrecognizedIndex is the output slot that always means "not a coffee leaf",
// whatever label the labels file gives it.
const UnrecognizedIndex = 4

const (
	LabelOther     = "other"
	LabelNoDisease = "nodisease"
)

// User-facing messages and the advice stored in history for the
// non-disease outcomes.
const (
	MessageUnrecognized = "The above photo cannot be recognized as a coffee leaf."
	MessageHealthy      = "The leaf appears to be healthy with no visible disease."
	AdviceUnrecognized  = "Image not recognized as coffee leaf"
	AdviceHealthy       = "No disease detected - leaf is healthy"
)

// ErrEmptyPrediction is returned when the classifier produced no scores.
var ErrEmptyPrediction = errors.NewStd("empty prediction vector")

// Prediction is the arg-max of one classifier run.
type Prediction struct {
	Index      int
	Label      string
	Confidence float32
}

// Resolve picks the highest scoring class. Ties go to the lowest index. An
// index past the end of labels resolves to "class_<index>". A NaN score
// anywhere in probs fails with classifier.ErrInference.
func Resolve(probs []float32, labels classifier.Labels) (Prediction, error) {
	if len(probs) == 0 {
		return Prediction{}, errors.New(ErrEmptyPrediction).
			Component("diagnosis").
			Category(errors.CategoryInference).
			Context("labels", labels.Len()).
			Build()
	}

	for i, p := range probs {
		if math.IsNaN(float64(p)) {
			return Prediction{}, errors.New(fmt.Errorf("%w: NaN score at index %d", classifier.ErrInference, i)).
				Component("diagnosis").
				Category(errors.CategoryInference).
				Context("labels", labels.Len()).
				Build()
		}
	}

	best := 0
	for i, p := range probs[1:] {
		if p > probs[best] {
			best = i + 1
		}
	}

	name, ok := labels.Name(best)
	if !ok {
		name = fmt.Sprintf("class_%d", best)
		GetLogger().Warn("prediction index outside label set",
			logger.Int("index", best),
			logger.Int("labels", labels.Len()))
	}

	pred := Prediction{Index: best, Label: name, Confidence: probs[best]}
	GetLogger().Debug("prediction resolved",
		logger.Int("index", pred.Index),
		logger.String("label", pred.Label),
		logger.Float32("confidence", pred.Confidence))
	return pred, nil
}
