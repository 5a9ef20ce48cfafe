package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/detection"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/history"
	"github.com/tphakala/leafscan/internal/logger"
	"github.com/tphakala/leafscan/internal/observability"
	"github.com/tphakala/leafscan/internal/observability/metrics"
)

// HistoryStore is the part of history.Store the API uses.
type HistoryStore interface {
	List(ctx context.Context, user string, limit int) ([]history.Record, error)
	Delete(ctx context.Context, id uint) error
}

// Server is the leafscan HTTP server.
type Server struct {
	echo     *echo.Echo
	config   *Config
	log      logger.Logger
	pipeline *detection.Pipeline
	sessions *conversation.Store
	history  HistoryStore
	metrics  *observability.Metrics
	ready    func() bool

	version   string
	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithHistory enables the history endpoints.
func WithHistory(h HistoryStore) ServerOption {
	return func(s *Server) {
		s.history = h
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithModelReady reports classifier readiness on /health.
func WithModelReady(ready func() bool) ServerOption {
	return func(s *Server) {
		s.ready = ready
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a server. It creates the upload directory.
func New(config *Config, pipeline *detection.Pipeline, sessions *conversation.Store, opts ...ServerOption) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.New(fmt.Errorf("invalid server configuration: %w", err)).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := os.MkdirAll(config.UploadDir, 0o755); err != nil {
		return nil, errors.New(fmt.Errorf("failed to create upload directory: %w", err)).
			Component("api").
			Category(errors.CategoryFileIO).
			FileContext(config.UploadDir, 0).
			Build()
	}

	s := &Server{
		config:    config,
		log:       GetLogger(),
		pipeline:  pipeline,
		sessions:  sessions,
		version:   "dev",
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.String("upload_dir", config.UploadDir))
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(newRequestID())
	s.echo.Use(newRequestLogger(s.log))
	if s.metrics != nil {
		s.echo.Use(newMetricsMiddleware(s.metrics.HTTP))
	}
	s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
	if s.config.RateLimit > 0 {
		var m *metrics.HTTPMetrics
		if s.metrics != nil {
			m = s.metrics.HTTP
		}
		s.echo.Use(newRateLimiter(s.config.RateLimit, s.config.Burst, m))
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/detections", s.createDetection)
	v1.GET("/labels", s.listLabels)
	v1.GET("/languages", s.listLanguages)

	sessions := v1.Group("/sessions/:id")
	sessions.POST("/translate", s.translate)
	sessions.POST("/messages", s.postMessage)
	sessions.GET("/messages", s.listMessages)
	sessions.GET("/report", s.getReport)
	sessions.GET("/analysis", s.getAnalysis)
	sessions.DELETE("", s.deleteSession)

	if s.history != nil {
		v1.GET("/history", s.listHistory)
		v1.DELETE("/history/:id", s.deleteHistory)
	}
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.log.Info("starting HTTP server", logger.String("address", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(fmt.Errorf("server error: %w", err)).
			Component("api").
			Category(errors.CategoryHTTP).
			Context("address", addr).
			Build()
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}

func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":          "healthy",
		"version":         s.version,
		"model_ready":     s.ready == nil || s.ready(),
		"active_sessions": s.sessions.Len(),
		"uptime":          uptime.String(),
		"uptime_seconds":  uptime.Seconds(),
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}
