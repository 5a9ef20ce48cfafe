package classifier

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/leafscan/internal/conf"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/imageload"
	"github.com/tphakala/leafscan/internal/logger"
)

// Runner owns the classifier chosen at startup. The underlying interpreter
// is not safe for concurrent use, so Predict holds a mutex.
type Runner struct {
	mu       sync.Mutex
	clf      Classifier
	observer Observer
}

// Observer receives inference timings. The metrics package implements it.
type Observer interface {
	ObserveInference(strategy string, d time.Duration, err error)
}

// strategy is one way of obtaining a classifier.
type strategy struct {
	name string
	path string
	open func(path string, opts Options) (Classifier, error)
}

// NewRunner wraps an already constructed classifier. A nil classifier
// gives a Runner whose Predict always fails with ErrNoModelLoaded.
func NewRunner(clf Classifier) *Runner {
	return &Runner{clf: clf}
}

// Load tries, in order, the full model at ModelPath, a full model found in
// ModelDir and the quantized model at QuantizedPath. The first success
// wins. If nothing loads the returned Runner is still usable but every
// Predict fails fast with ErrNoModelLoaded.
func Load(settings conf.ClassifierSettings) *Runner {
	opts := Options{Threads: settings.Threads, UseXNNPACK: settings.UseXNNPACK}
	return loadFirst(opts, []strategy{
		{StrategyFull, settings.ModelPath, func(p string, o Options) (Classifier, error) { return NewFullModel(p, o) }},
		{StrategyModelDir, settings.ModelDir, func(p string, o Options) (Classifier, error) { return NewModelDirModel(p, o) }},
		{StrategyQuantized, settings.QuantizedPath, func(p string, o Options) (Classifier, error) { return NewQuantizedModel(p, o) }},
	})
}

func loadFirst(opts Options, strategies []strategy) *Runner {
	log := GetLogger()
	for _, s := range strategies {
		if s.path == "" {
			log.Debug("model strategy not configured", logger.String("strategy", s.name))
			continue
		}
		clf, err := s.open(s.path, opts)
		if err != nil {
			log.Warn("model strategy failed",
				logger.String("strategy", s.name),
				logger.String("path", s.path),
				logger.Error(err))
			continue
		}
		log.Info("classifier ready", logger.String("strategy", clf.Name()))
		return &Runner{clf: clf}
	}
	log.Error("no model loaded, detections will fail until model files are installed")
	return &Runner{}
}

// SetObserver installs an inference observer.
func (r *Runner) SetObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Ready reports whether a model is loaded.
func (r *Runner) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clf != nil
}

// Strategy returns the name of the loaded strategy, or "" when none loaded.
func (r *Runner) Strategy() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clf == nil {
		return ""
	}
	return r.clf.Name()
}

// Predict runs the loaded classifier on t.
func (r *Runner) Predict(t imageload.Tensor) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clf == nil {
		return nil, errors.New(ErrNoModelLoaded).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Build()
	}

	start := time.Now()
	probs, err := r.predictSafe(t)
	elapsed := time.Since(start)

	if r.observer != nil {
		r.observer.ObserveInference(r.clf.Name(), elapsed, err)
	}
	if err != nil {
		return nil, err
	}

	GetLogger().Debug("inference completed",
		logger.String("strategy", r.clf.Name()),
		logger.Int("outputs", len(probs)),
		logger.Duration("took", elapsed))
	return probs, nil
}

// predictSafe turns a panic inside the cgo binding into ErrInference so a
// corrupt model cannot take the process down.
func (r *Runner) predictSafe(t imageload.Tensor) (probs []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			probs = nil
			err = inferenceError(fmt.Errorf("%w: panic: %v", ErrInference, rec), r.clf.Name())
		}
	}()
	probs, err = r.clf.Predict(t)
	if err != nil && !errors.Is(err, ErrInference) {
		err = inferenceError(fmt.Errorf("%w: %w", ErrInference, err), r.clf.Name())
	}
	if err == nil {
		if i := slices.IndexFunc(probs, isNaN); i >= 0 {
			probs = nil
			err = inferenceError(fmt.Errorf("%w: NaN score at index %d", ErrInference, i), r.clf.Name())
		}
	}
	return probs, err
}

func isNaN(p float32) bool {
	return math.IsNaN(float64(p))
}

// CheckLabels compares the loaded model's output size with labels. It
// returns ErrLabelMismatch when both sizes are known and differ.
func (r *Runner) CheckLabels(labels Labels) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sizer, ok := r.clf.(OutputSizer)
	if !ok {
		return nil
	}
	size := sizer.OutputSize()
	if size <= 0 || size == labels.Len() {
		return nil
	}
	return errors.New(fmt.Errorf("%w: model has %d outputs, labels file has %d", ErrLabelMismatch, size, labels.Len())).
		Component("classifier").
		Category(errors.CategoryLabelLoad).
		Context("model_strategy", r.clf.Name()).
		Context("model_outputs", size).
		Context("labels", labels.Len()).
		Build()
}

// Close releases the loaded classifier.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clf == nil {
		return nil
	}
	err := r.clf.Close()
	r.clf = nil
	return err
}
