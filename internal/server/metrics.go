package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teemow/zoombulk/internal/instrumentation"
	"github.com/teemow/zoombulk/internal/logging"
)

const (
	// DefaultMetricsAddr is the default address for the metrics server.
	DefaultMetricsAddr = ":9090"

	// DefaultMetricsReadTimeout is the default read timeout for the metrics server.
	DefaultMetricsReadTimeout = 10 * time.Second

	// DefaultMetricsWriteTimeout is the default write timeout for the metrics server.
	DefaultMetricsWriteTimeout = 10 * time.Second

	// DefaultMetricsIdleTimeout is the default idle timeout for the metrics server.
	DefaultMetricsIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

// MetricsServerConfig holds configuration for the metrics server.
type MetricsServerConfig struct {
	// Addr is the address to bind the metrics server to (e.g., ":9090").
	Addr string

	// InstrumentationProvider must be enabled with the prometheus exporter.
	InstrumentationProvider *instrumentation.Provider

	Logger *slog.Logger
}

// MetricsServer serves Prometheus metrics and health probes on a dedicated
// port.
type MetricsServer struct {
	health *HealthChecker
	logger *slog.Logger

	mu         sync.Mutex
	addr       string
	listener   net.Listener
	httpServer *http.Server
}

// NewMetricsServer creates a new metrics server with the given configuration.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if config.Addr == "" {
		config.Addr = DefaultMetricsAddr
	}

	if config.InstrumentationProvider == nil {
		return nil, fmt.Errorf("instrumentation provider is required for metrics server")
	}

	if !config.InstrumentationProvider.Enabled() {
		return nil, fmt.Errorf("instrumentation provider is not enabled")
	}

	if !config.InstrumentationProvider.HasPrometheusExporter() {
		return nil, fmt.Errorf("metrics server requires the prometheus metrics exporter")
	}

	return &MetricsServer{
		addr:   config.Addr,
		health: NewHealthChecker(),
		logger: logging.WithOperation(config.Logger, "metrics_server"),
	}, nil
}

// Listen binds the server's address. After Listen, Addr reports the bound
// address, which differs from the configured one for port 0.
func (s *MetricsServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.addr = ln.Addr().String()
	return nil
}

// Start serves until Shutdown is called. It binds the address first unless
// Listen was already called. Call this in a goroutine if you need
// non-blocking operation. A clean shutdown returns nil.
func (s *MetricsServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.health.RegisterHealthEndpoints(mux)

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: DefaultMetricsReadTimeout,
		WriteTimeout:      DefaultMetricsWriteTimeout,
		IdleTimeout:       DefaultMetricsIdleTimeout,
	}
	srv, ln := s.httpServer, s.listener
	s.mu.Unlock()

	s.logger.Info("starting metrics server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown marks the server as not ready and gracefully shuts it down.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()

	s.mu.Lock()
	srv, ln := s.httpServer, s.listener
	s.mu.Unlock()

	if srv != nil {
		s.logger.Info("shutting down metrics server")
		return srv.Shutdown(ctx)
	}
	if ln != nil {
		return ln.Close()
	}
	return nil
}

// Addr returns the server's address.
func (s *MetricsServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Health returns the server's health checker.
func (s *MetricsServer) Health() *HealthChecker {
	return s.health
}
