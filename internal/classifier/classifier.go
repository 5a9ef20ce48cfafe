// Package classifier runs the coffee leaf disease model.
//
// Two implementations share the Classifier interface: FullModel runs a
// float32 TensorFlow Lite network and QuantizedModel runs an integer
// quantized one. Load probes the configured strategies once at startup and
// returns a Runner that serialises access to whichever model loaded.
package classifier

import (
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/imageload"
)

var (
	// ErrNoModelLoaded is returned by Runner.Predict when every load strategy failed.
	ErrNoModelLoaded = errors.NewStd("no model loaded")
	// ErrInference wraps failures while running the interpreter.
	ErrInference = errors.NewStd("inference failed")
	// ErrLabelMismatch is returned by Runner.CheckLabels when the model
	// output layer and the label set differ in size.
	ErrLabelMismatch = errors.NewStd("model output size does not match label count")
)

// Strategy names, in the order Load tries them.
const (
	StrategyFull      = "full"
	StrategyModelDir  = "modeldir"
	StrategyQuantized = "quantized"
)

// Classifier maps one preprocessed image to a probability per label.
type Classifier interface {
	// Predict returns the raw output vector for t.
	Predict(t imageload.Tensor) ([]float32, error)
	// Name identifies the loading strategy, for logs and metrics.
	Name() string
	// Close releases interpreter resources.
	Close() error
}

// OutputSizer is implemented by classifiers that know the size of their
// output layer. FullModel and QuantizedModel implement it.
type OutputSizer interface {
	OutputSize() int
}

// Options tunes interpreter construction.
type Options struct {
	Threads    int  // 0 uses all CPUs
	UseXNNPACK bool // full model only
}

func inferenceError(err error, strategy string) error {
	return errors.New(err).
		Component("classifier").
		Category(errors.CategoryInference).
		Context("model_strategy", strategy).
		Build()
}
