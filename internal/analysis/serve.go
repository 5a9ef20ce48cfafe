package analysis

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/leafscan/internal/api"
	"github.com/tphakala/leafscan/internal/logger"
	"github.com/tphakala/leafscan/internal/observability/metrics"
)

// mqttRetryInterval is the pause between broker connection attempts.
const mqttRetryInterval = 10 * time.Second

// Serve runs the HTTP API until ctx is cancelled, then shuts it down.
// The MQTT connection is retried in the background and never fails Serve.
func Serve(ctx context.Context, svc *Service, version string) error {
	log := GetLogger()
	settings := svc.Settings

	server, err := api.New(api.ConfigFromSettings(&settings.WebServer), svc.Pipeline, svc.Sessions,
		api.WithMetrics(svc.Metrics),
		api.WithModelReady(svc.ModelReady),
		api.WithVersion(version),
		withHistory(svc))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metrics.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if svc.MQTT != nil {
		g.Go(func() error {
			connectMQTT(gctx, svc)
			return nil
		})
	}

	log.Info("leafscan server running",
		logger.String("port", settings.WebServer.Port),
		logger.String("version", version))
	return g.Wait()
}

func withHistory(svc *Service) api.ServerOption {
	if svc.History == nil {
		return func(*api.Server) {}
	}
	return api.WithHistory(svc.History)
}

// connectMQTT retries until the broker accepts the connection or ctx ends.
// paho reconnects on its own after the first success.
func connectMQTT(ctx context.Context, svc *Service) {
	log := GetLogger()
	ticker := time.NewTicker(mqttRetryInterval)
	defer ticker.Stop()
	for {
		err := svc.ConnectMQTT(ctx)
		if err == nil {
			return
		}
		log.Warn("MQTT connection failed, retrying",
			logger.Error(err),
			logger.Duration("retry_in", mqttRetryInterval))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
