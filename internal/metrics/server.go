package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/organizer/sanctuary/internal/ipfilter"
)

const systemGaugeRefreshInterval = 15 * time.Second

// Server serves Prometheus metrics over HTTP
type Server struct {
	httpServer *http.Server
	metrics    *Metrics
	addr       string
	path       string
	logger     *slog.Logger
	ipFilter   *ipfilter.Allowlist
}

// NewServer creates a new metrics HTTP server
func NewServer(m *Metrics, addr, path string, logger *slog.Logger) *Server {
	return NewServerWithAllowedIPs(m, addr, path, "", logger)
}

// NewServerWithAllowedIPs creates a new metrics HTTP server restricted to
// allowedIPsCSV, a comma-separated list of IPs/CIDRs taken verbatim from
// METRICS_ALLOWED_IPS. A blank value allows all scrapers, as /metrics
// listeners typically sit behind a private network anyway.
func NewServerWithAllowedIPs(m *Metrics, addr, path, allowedIPsCSV string, logger *slog.Logger) *Server {
	if addr == "" {
		addr = ":9090"
	}
	if path == "" {
		path = "/metrics"
	}

	f := ipfilter.New(allowedIPsCSV, logger)
	if f.Enabled() {
		logger.Info("metrics IP filtering enabled", "allowed_networks", f.Count())
	}

	return &Server{
		metrics:  m,
		addr:     addr,
		path:     path,
		logger:   logger,
		ipFilter: f,
	}
}

// ListenAndServe starts the metrics HTTP server
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()

	// Prometheus metrics endpoint with IP filtering
	handler := promhttp.HandlerFor(
		s.metrics.Registry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
	mux.Handle(s.path, s.ipFilter.HTTPMiddleware(handler))

	// Health check endpoint (no IP filtering - useful for load balancers)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go s.refreshSystemGaugesLoop()

	s.logger.Info("starting metrics server", "addr", s.addr, "path", s.path)
	return s.httpServer.ListenAndServe()
}

// refreshSystemGaugesLoop periodically updates the uptime and goroutine
// gauges for the life of the process; Shutdown does not stop it.
func (s *Server) refreshSystemGaugesLoop() {
	ticker := time.NewTicker(systemGaugeRefreshInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.metrics.RefreshSystemGauges()
	}
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}
