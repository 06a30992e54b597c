package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waftester/vulnprobe/pkg/duration"
	"github.com/waftester/vulnprobe/pkg/report"
)

var _ Hook = (*PrometheusHook)(nil)

// PrometheusHook exposes scan metrics for Prometheus scraping. Metrics
// live in a private registry; Handler serves them, and Addr optionally
// starts a dedicated metrics server.
type PrometheusHook struct {
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry
	opts     PrometheusOptions
	logger   *slog.Logger

	scansTotal    *prometheus.CounterVec
	findingsTotal *prometheus.CounterVec
	probeErrors   *prometheus.CounterVec
	severityScore *prometheus.GaugeVec
	scanDuration  *prometheus.HistogramVec

	mu     sync.Mutex
	closed bool
}

// PrometheusOptions configures the Prometheus hook.
type PrometheusOptions struct {
	// Addr starts a standalone metrics server when set (e.g. ":9090").
	// Leave empty to mount Handler on an existing mux.
	Addr string

	// Path for the metrics endpoint (default: "/metrics").
	Path string

	Logger *slog.Logger
}

// NewPrometheusHook creates the hook and, when opts.Addr is set, starts
// serving metrics until Close is called.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Path == "" {
		opts.Path = "/metrics"
	}

	h := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		opts:     opts,
		logger:   orDefault(opts.Logger),
	}
	if err := h.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	if opts.Addr != "" {
		if err := h.startServer(); err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
	}
	return h, nil
}

func (h *PrometheusHook) initMetrics() error {
	h.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnprobe_scans_total",
			Help: "Total number of completed scans",
		},
		[]string{"target", "scan_type", "risk_level"},
	)

	h.findingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnprobe_findings_total",
			Help: "Total number of findings reported",
		},
		[]string{"kind", "severity"},
	)

	h.probeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnprobe_probe_errors_total",
			Help: "Total number of probes that failed",
		},
		[]string{"probe"},
	)

	h.severityScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vulnprobe_severity_score",
			Help: "Severity score of the most recent scan per target",
		},
		[]string{"target"},
	)

	h.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vulnprobe_scan_duration_seconds",
			Help:    "Scan duration distribution in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"scan_type"},
	)

	for _, c := range []prometheus.Collector{
		h.scansTotal,
		h.findingsTotal,
		h.probeErrors,
		h.severityScore,
		h.scanDuration,
	} {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the hook's registry.
func (h *PrometheusHook) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the private registry, mainly for tests.
func (h *PrometheusHook) Registry() *prometheus.Registry { return h.registry }

func (h *PrometheusHook) startServer() error {
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return err
	}
	h.listener = ln

	mux := http.NewServeMux()
	mux.Handle(h.opts.Path, h.Handler())
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: duration.ReadHeader,
		IdleTimeout:       duration.ServerIdle,
	}

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("prometheus: metrics server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// OnReport updates the metrics from one report.
func (h *PrometheusHook) OnReport(_ context.Context, r *report.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	target := extractHost(r.Target)
	h.scansTotal.WithLabelValues(target, r.ScanType, string(r.Summary.RiskLevel)).Inc()
	for _, f := range r.Findings {
		h.findingsTotal.WithLabelValues(string(f.Kind), string(f.Severity)).Inc()
	}
	for _, pe := range r.ProbeErrors {
		h.probeErrors.WithLabelValues(pe.Probe).Inc()
	}
	h.severityScore.WithLabelValues(target).Set(float64(r.Summary.SeverityScore))
	if r.DurationMs > 0 {
		h.scanDuration.WithLabelValues(r.ScanType).Observe(float64(r.DurationMs) / 1000.0)
	}
	return nil
}

// Close shuts down the metrics server if one was started.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), duration.HookShutdown)
		defer cancel()
		return h.server.Shutdown(ctx)
	}
	return nil
}

// MetricsAddr returns the URL metrics are served at, or "" when no
// standalone server is running.
func (h *PrometheusHook) MetricsAddr() string {
	if h.listener == nil {
		return ""
	}
	return "http://" + h.listener.Addr().String() + h.opts.Path
}

// extractHost returns the host of rawURL for use as a metric label, or
// "unknown" when there is none.
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
