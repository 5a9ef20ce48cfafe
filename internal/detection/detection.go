// Package detection runs the leaf disease pipeline: load the image,
// classify it, decide what the label means, record it and tell the user.
//
// The pipeline depends on small interfaces rather than concrete stores so
// the classifier, history and publishers can be replaced in tests.
package detection

import (
	"context"
	"time"

	"github.com/tphakala/leafscan/internal/classifier"
	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/diagnosis"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/history"
	"github.com/tphakala/leafscan/internal/imageload"
	"github.com/tphakala/leafscan/internal/remedy"
)

// User-facing messages.
const (
	MessageNoImage       = "Please upload an image first!"
	MessageNoModel       = "No model loaded. Check model files."
	MessageCancelled     = "Detection cancelled."
	MessageNoRemedies    = "No remedies to translate."
	MessageEnglishOrNone = "Preferred language is English or not set."
	MessageNoDetection   = "Please detect a disease first."
)

var (
	ErrNoImage       = errors.NewStd("no image selected")
	ErrNoDetection   = errors.NewStd("no disease detected in this session")
	ErrChatDisabled  = errors.NewStd("chat is not enabled for this session")
	ErrEmptyQuestion = errors.NewStd("question is empty")
)

// Session carries per-user state between Detect, Translate and Ask.
type Session = conversation.Session

// Predictor produces class scores for an image tensor.
// classifier.Runner implements it.
type Predictor interface {
	Predict(t imageload.Tensor) ([]float32, error)
}

// Recorder persists detections. history.Store implements it.
type Recorder interface {
	Save(ctx context.Context, rec *history.Record) error
	AttachConversation(ctx context.Context, id uint, turns []conversation.Turn) error
}

// Publisher is notified of every completed detection.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Observer receives pipeline timings. outcome is a diagnosis kind or
// "error".
type Observer interface {
	ObserveDetection(outcome string, d time.Duration)
	ObserveHistoryError()
}

// Event describes a completed detection for publishers.
type Event struct {
	SessionID  string         `json:"session_id"`
	User       string         `json:"user,omitempty"`
	Label      string         `json:"label"`
	Kind       diagnosis.Kind `json:"kind"`
	Confidence float32        `json:"confidence"`
	RecordID   uint           `json:"record_id,omitempty"`
	ImagePath  string         `json:"image_path"`
	Time       time.Time      `json:"time"`
}

// Result is the outcome of one Detect call. Step failures never surface as
// a Go error from Detect; Err holds the typed cause and Message the text
// for the user.
type Result struct {
	Message string
	Err     error
	// HistoryErr is set when the detection succeeded but could not be
	// recorded. It wraps history.ErrPersistence.
	HistoryErr error

	Outcome       diagnosis.Outcome
	Probabilities []float32
	RecordID      uint
	ImagePath     string
	Duration      time.Duration
}

// OK reports whether a prediction was made.
func (r Result) OK() bool {
	return r.Err == nil
}

// Pipeline wires the detection steps together. It is safe for concurrent
// use when its Predictor is.
type Pipeline struct {
	predictor  Predictor
	labels     classifier.Labels
	remedies   diagnosis.RemedySource
	translator *remedy.Translator
	recorder   Recorder
	publishers []Publisher
	observer   Observer
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder enables history recording.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithPublisher adds a detection event publisher.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publishers = append(p.publishers, pub) }
}

// WithObserver installs a timing observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline. Nil remedies or translator fall back to the
// built-in tables.
func New(predictor Predictor, labels classifier.Labels, remedies diagnosis.RemedySource, translator *remedy.Translator, opts ...Option) *Pipeline {
	if remedies == nil {
		remedies = remedy.DefaultTable()
	}
	if translator == nil {
		translator = remedy.DefaultTranslator()
	}
	if len(labels) == 0 {
		labels = classifier.DefaultLabels
	}
	p := &Pipeline{
		predictor:  predictor,
		labels:     labels,
		remedies:   remedies,
		translator: translator,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Labels returns the label set used to resolve predictions.
func (p *Pipeline) Labels() classifier.Labels {
	return p.labels
}

// Languages lists the languages remedies can be translated into.
func (p *Pipeline) Languages() []string {
	return p.translator.Languages()
}
