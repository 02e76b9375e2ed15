// Package server exposes feature extraction and classification over HTTP
// using fasthttp.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/baditaflorin/go_pair_features/internal/adapters/telemetry"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

// Routes served by the handler.
const (
	PathPing        = "/ping"
	PathInvocations = "/invocations"
	PathFeatures    = "/features"
	PathMetrics     = "/metrics"
)

// HeaderInferenceID carries the caller's inference id; one is generated when
// it is missing and echoed back either way.
const HeaderInferenceID = "X-Inference-Id"

// Default configuration
const (
	DefaultReadTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 << 20
)

// Config holds server settings.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int
	// Concurrency caps simultaneous connections; 0 uses the fasthttp default.
	Concurrency int
	// DefaultAccept is the /invocations response type when none is requested.
	DefaultAccept string
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		RequestTimeout: DefaultRequestTimeout,
		MaxRequestSize: DefaultMaxRequestSize,
		DefaultAccept:  contentTypeCSV,
	}
}

// Extractor computes features and names the slots of the vector.
type Extractor interface {
	ports.FeatureExtractor
	MetricNames() []string
}

// MetricsProvider is the Prometheus side of telemetry.
type MetricsProvider interface {
	ports.Telemetry
	Handler() http.Handler
}

// Deps are the collaborators of the server. Only Extractor and Logger are
// required.
type Deps struct {
	Extractor  Extractor
	Classifier ports.Classifier
	Capture    ports.CaptureStore
	Telemetry  ports.Telemetry
	Logger     ports.Logger
	// NewID generates inference ids; defaults to random UUIDs.
	NewID func() string
}

// Server routes requests to the feature pipeline and the classifier.
type Server struct {
	cfg        Config
	extractor  Extractor
	classifier ports.Classifier
	capture    ports.CaptureStore
	telemetry  ports.Telemetry
	logger     ports.Logger
	newID      func() string
	metrics    fasthttp.RequestHandler
	http       *fasthttp.Server
}

// New creates a server.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Extractor == nil {
		return nil, errors.New("server: extractor is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("server: logger is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = DefaultMaxRequestSize
	}
	if cfg.DefaultAccept == "" {
		cfg.DefaultAccept = contentTypeCSV
	}

	s := &Server{
		cfg:        cfg,
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		capture:    deps.Capture,
		telemetry:  deps.Telemetry,
		logger:     deps.Logger,
		newID:      deps.NewID,
	}
	if s.telemetry == nil {
		s.telemetry = telemetry.Nop{}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if mp, ok := deps.Telemetry.(MetricsProvider); ok {
		s.metrics = fasthttpadaptor.NewFastHTTPHandler(mp.Handler())
	}

	s.http = &fasthttp.Server{
		Handler:               s.Handler,
		Name:                  "pairfeat",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		MaxRequestBodySize:    cfg.MaxRequestSize,
		Concurrency:           cfg.Concurrency,
		TCPKeepalive:          true,
		TCPKeepalivePeriod:    3 * time.Minute,
		MaxIdleWorkerDuration: 10 * time.Second,
		NoDefaultContentType:  true,
	}
	return s, nil
}

// ListenAndServe serves on the configured address until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Server listening", "address", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- s.http.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		if err := s.http.Shutdown(); err != nil {
			s.logger.Error("Error during server shutdown", "error", err)
			return err
		}
		<-errc
		s.logger.Info("Server stopped")
		return nil
	}
}

// Handler is the fasthttp request handler.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	ctx.Response.Header.Set("Server", "pairfeat")

	path := string(ctx.Path())
	switch path {
	case PathPing:
		s.handlePing(ctx)
	case PathInvocations:
		s.handleInvocations(ctx)
	case PathFeatures:
		s.handleFeatures(ctx)
	case PathMetrics:
		s.handleMetrics(ctx)
	default:
		path = "other"
		writeError(ctx, fasthttp.StatusNotFound, "not found")
	}

	duration := time.Since(startTime)
	status := ctx.Response.StatusCode()
	s.telemetry.ObserveRequest(path, fmt.Sprint(status), duration)
	s.logger.Info("Request processed",
		"method", string(ctx.Method()),
		"path", string(ctx.Path()),
		"status", status,
		"ip", ctx.RemoteIP().String(),
		"duration", duration,
	)
}
