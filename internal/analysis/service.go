// Package analysis assembles the detection service from configuration and
// runs it as a one-shot file detection or as the long-running server.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/tphakala/leafscan/internal/classifier"
	"github.com/tphakala/leafscan/internal/conf"
	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/detection"
	"github.com/tphakala/leafscan/internal/diagnosis"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/history"
	"github.com/tphakala/leafscan/internal/logger"
	"github.com/tphakala/leafscan/internal/mqtt"
	"github.com/tphakala/leafscan/internal/observability"
	"github.com/tphakala/leafscan/internal/remedy"
)

// Service holds every long-lived component of leafscan.
type Service struct {
	Settings *conf.Settings
	Runner   *classifier.Runner
	Labels   classifier.Labels
	History  *history.Store // nil when history is disabled or unavailable
	Sessions *conversation.Store
	Metrics  *observability.Metrics
	Pipeline *detection.Pipeline
	MQTT     mqtt.Client // nil when MQTT is disabled

	predictor detection.Predictor
}

// ServiceOption customizes NewService.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	predictor detection.Predictor
	noHistory bool
}

// WithPredictor replaces the TFLite runner, used by tests.
func WithPredictor(p detection.Predictor) ServiceOption {
	return func(c *serviceConfig) {
		c.predictor = p
	}
}

// WithoutHistory skips opening the history store.
func WithoutHistory() ServiceOption {
	return func(c *serviceConfig) {
		c.noHistory = true
	}
}

// NewService loads the model, tables and stores described by settings.
// A missing model or an unreachable database does not fail startup:
// detections then report "No model loaded" and history is skipped.
func NewService(settings *conf.Settings, opts ...ServiceOption) (*Service, error) {
	var cfg serviceConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	log := GetLogger()

	labels, err := classifier.LoadLabels(settings.Classifier.LabelsPath)
	if err != nil {
		return nil, err
	}
	remedies, err := remedy.LoadTable(settings.Remedy.RemediesPath)
	if err != nil {
		return nil, err
	}
	translator, err := remedy.LoadTranslator(settings.Remedy.TranslationsPath)
	if err != nil {
		return nil, err
	}
	for _, label := range missingRemedies(labels, remedies) {
		log.Warn("no remedy entry for label, generic advice will be shown", logger.String("label", label))
	}

	svc := &Service{
		Settings: settings,
		Labels:   labels,
		Sessions: conversation.NewStore(settings.Session.TTL),
	}
	svc.Metrics, err = observability.NewMetrics(svc.Sessions.Len)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to create metrics: %w", err)).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}

	svc.predictor = cfg.predictor
	if svc.predictor == nil {
		svc.Runner = classifier.Load(settings.Classifier)
		svc.Runner.SetObserver(svc.Metrics.Classifier)
		strategy := svc.Runner.Strategy()
		if strategy == "" {
			strategy = "none"
		}
		svc.Metrics.Classifier.SetModelLoaded(strategy, svc.Runner.Ready())
		if err := svc.Runner.CheckLabels(labels); err != nil {
			log.Warn("model outputs and labels differ, predictions past the label set resolve to class_<index>",
				logger.Error(err),
				logger.Int("labels", labels.Len()))
		}
		svc.predictor = svc.Runner
	}

	pipelineOpts := []detection.Option{detection.WithObserver(svc.Metrics.Detection)}
	if !cfg.noHistory {
		svc.History = openHistory(settings.History)
		if svc.History != nil {
			pipelineOpts = append(pipelineOpts, detection.WithRecorder(svc.History))
		}
	}

	if settings.MQTT.Enabled {
		mcfg := mqtt.ConfigFromSettings(settings.MQTT)
		client, err := mqtt.NewClient(mcfg, svc.Metrics.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, err
		}
		svc.MQTT = client
		pipelineOpts = append(pipelineOpts, detection.WithPublisher(mqtt.NewPublisher(client, mcfg.Topic)))
	}

	svc.Pipeline = detection.New(svc.predictor, labels, remedies, translator, pipelineOpts...)
	log.Info("detection service ready",
		logger.Bool("model_ready", svc.ModelReady()),
		logger.Bool("history", svc.History != nil),
		logger.Bool("mqtt", svc.MQTT != nil),
		logger.Int("labels", labels.Len()))
	return svc, nil
}

// missingRemedies lists disease labels without a dedicated remedy entry.
func missingRemedies(labels classifier.Labels, remedies *remedy.Table) []string {
	var missing []string
	for _, label := range labels {
		switch strings.ToLower(label) {
		case diagnosis.LabelOther, diagnosis.LabelNoDisease:
			continue
		}
		if !remedies.Has(label) {
			missing = append(missing, label)
		}
	}
	return missing
}

// openHistory returns nil when no backend is enabled or it cannot be opened.
func openHistory(settings conf.HistorySettings) *history.Store {
	store, err := history.Open(settings)
	switch {
	case errors.Is(err, history.ErrNoBackend):
		GetLogger().Info("history disabled")
		return nil
	case err != nil:
		GetLogger().Error("history unavailable, detections will not be recorded", logger.Error(err))
		return nil
	}
	return store
}

// ModelReady reports whether predictions can be made.
func (s *Service) ModelReady() bool {
	if s.Runner == nil {
		return s.predictor != nil
	}
	return s.Runner.Ready()
}

// ConnectMQTT connects the MQTT client when one is configured.
func (s *Service) ConnectMQTT(ctx context.Context) error {
	if s.MQTT == nil {
		return nil
	}
	return s.MQTT.Connect(ctx)
}

// Close releases the model, the database and the broker connection.
func (s *Service) Close() error {
	var errs []error
	if s.MQTT != nil {
		s.MQTT.Disconnect()
	}
	if s.Runner != nil {
		if err := s.Runner.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.closeStores(); err != nil {
		errs = append(errs, err)
	}
	s.Sessions.Flush()
	return errors.Join(errs...)
}

func (s *Service) closeStores() error {
	if s.History == nil {
		return nil
	}
	err := s.History.Close()
	s.History = nil
	return err
}
