// Package scanner orchestrates one scan of one target: it fans the probe
// battery out through the runner, runs IDOR against discovered endpoints,
// and assembles the Report.
//
// A Scanner owns its HTTP connection pool. Create one per target and Close
// it when the scan is done; scanners never share clients or rate limiters.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/waftester/vulnprobe/pkg/attackconfig"
	"github.com/waftester/vulnprobe/pkg/authbypass"
	"github.com/waftester/vulnprobe/pkg/crawler"
	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/headers"
	"github.com/waftester/vulnprobe/pkg/httpclient"
	"github.com/waftester/vulnprobe/pkg/idor"
	"github.com/waftester/vulnprobe/pkg/jwt"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/runner"
)

const tracerName = "github.com/waftester/vulnprobe/pkg/scanner"

// ScanType selects which probes run.
type ScanType string

const (
	// ScanFull runs every probe, crawls, then tests crawled endpoints for IDOR.
	ScanFull ScanType = "full"
	// ScanQuick skips the crawl and IDOR.
	ScanQuick ScanType = "quick"
	// ScanAPIOnly skips the crawl and tests the target itself for IDOR.
	ScanAPIOnly ScanType = "api-only"
)

// ParseScanType validates a scan type name. Empty means full.
func ParseScanType(s string) (ScanType, error) {
	switch ScanType(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScanFull:
		return ScanFull, nil
	case ScanQuick:
		return ScanQuick, nil
	case ScanAPIOnly:
		return ScanAPIOnly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScanType, s)
}

// Options configures a Scanner.
type Options struct {
	Target   string
	ScanType ScanType
	MaxDepth int

	// AuthToken is sent as a Bearer token on every probe request except
	// the missing-auth probe.
	AuthToken string

	// Headers are added to every probe request.
	Headers map[string]string

	// Timeout bounds each request. There is no overall scan deadline beyond
	// the caller's context.
	Timeout time.Duration

	// RateLimit caps requests per second for this scanner (0 = unlimited).
	RateLimit float64

	Policy    headers.Policy
	CrawlMode crawler.Mode

	// Crawler overrides the crawler built from CrawlMode.
	Crawler crawler.Crawler

	// Client overrides the scanner-owned client. Close leaves it open.
	Client *httpclient.Client

	Logger    *slog.Logger
	OnFinding func(finding.Finding)
}

// Scanner runs the probe battery against one target.
type Scanner struct {
	opts       Options
	client     *httpclient.Client
	ownsClient bool
	crawler    crawler.Crawler
	logger     *slog.Logger
	tracer     trace.Tracer
}

// New validates opts and acquires the scanner's HTTP client.
func New(opts Options) (*Scanner, error) {
	if err := ValidateTarget(opts.Target); err != nil {
		return nil, err
	}
	if opts.ScanType == "" {
		opts.ScanType = ScanFull
	}
	if _, err := ParseScanType(string(opts.ScanType)); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = httpclient.TimeoutScanning
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaults.DepthMedium
	}
	if opts.Policy.Len() == 0 {
		opts.Policy = headers.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Scanner{
		opts:   opts,
		logger: opts.Logger.With(slog.String("target", opts.Target)),
		tracer: otel.Tracer(tracerName),
	}

	s.client = opts.Client
	if s.client == nil {
		cfg := httpclient.DefaultConfig()
		cfg.Timeout = opts.Timeout
		cfg.RateLimit = opts.RateLimit
		cfg.AuthHeaders = authHeaders(opts)
		s.client = httpclient.NewClient(cfg)
		s.ownsClient = true
	}

	s.crawler = opts.Crawler
	if s.crawler == nil {
		s.crawler = crawler.New(crawler.Config{
			Mode:     opts.CrawlMode,
			MaxDepth: opts.MaxDepth,
			Client:   s.client,
			Logger:   opts.Logger,
		})
	}
	return s, nil
}

func authHeaders(opts Options) http.Header {
	h := make(http.Header)
	for k, v := range opts.Headers {
		h.Set(k, v)
	}
	if opts.AuthToken != "" {
		h.Set("Authorization", "Bearer "+opts.AuthToken)
	}
	if len(h) == 0 {
		return nil
	}
	return h
}

// ValidateTarget checks that target is an absolute http(s) URL.
func ValidateTarget(target string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTarget)
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidTarget, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidTarget)
	}
	return nil
}

// Close releases pooled connections held by the scanner-owned client.
func (s *Scanner) Close() {
	if s.ownsClient {
		s.client.Close()
	}
}

func (s *Scanner) base() attackconfig.Base {
	return attackconfig.Base{
		Timeout:   s.opts.Timeout,
		Client:    s.client,
		Logger:    s.logger,
		OnFinding: s.opts.OnFinding,
	}
}

// traced wraps fn in a span named after the probe.
func (s *Scanner) traced(name string, fn runner.ProbeFunc) runner.ProbeFunc {
	return func(ctx context.Context) ([]finding.Finding, error) {
		ctx, span := s.tracer.Start(ctx, "probe."+name,
			trace.WithAttributes(attribute.String("probe", name)))
		defer span.End()

		found, err := fn(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		span.SetAttributes(attribute.Int("findings", len(found)))
		return found, nil
	}
}

// Scan runs the probe battery and returns the frozen report. It always
// returns a report; probe failures are recorded inside it.
func (s *Scanner) Scan(ctx context.Context) (*report.Report, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "vulnprobe.scan", trace.WithAttributes(
		attribute.String("target", s.opts.Target),
		attribute.String("scan_type", string(s.opts.ScanType)),
	))
	defer span.End()

	target := s.opts.Target
	var (
		headerResult headers.Result
		endpoints    []string
	)

	d := NewDispatcher()
	d.Register("headers", func(ctx context.Context) ([]finding.Finding, error) {
		headerResult = headers.NewDetector(s.client, s.opts.Policy, s.logger).Run(ctx, target)
		for _, f := range headerResult.Findings {
			if s.opts.OnFinding != nil {
				s.opts.OnFinding(f)
			}
		}
		return headerResult.Findings, nil
	})
	d.Register("auth-bypass", func(ctx context.Context) ([]finding.Finding, error) {
		return authbypass.NewDetector(authbypass.Config{Base: s.base()}).Run(ctx, target), nil
	})
	d.Register("jwt", func(ctx context.Context) ([]finding.Finding, error) {
		return jwt.NewDetector(jwt.Config{Base: s.base()}).Run(ctx, target)
	})
	if s.opts.ScanType == ScanFull {
		d.Register("crawl", func(ctx context.Context) ([]finding.Finding, error) {
			urls, err := s.crawler.Crawl(ctx, target)
			if err != nil {
				return nil, err
			}
			endpoints = urls
			return nil, nil
		})
	}

	r := runner.New(s.logger)
	outcomes := r.Run(ctx, d.Probes(s.traced))

	switch s.opts.ScanType {
	case ScanFull:
	case ScanAPIOnly:
		endpoints = []string{target}
	default:
		endpoints = nil
	}
	if s.opts.ScanType != ScanQuick && len(endpoints) > 0 {
		eps := endpoints
		idorProbe := runner.Probe{Name: "idor", Run: s.traced("idor", func(ctx context.Context) ([]finding.Finding, error) {
			return idor.NewDetector(idor.Config{Base: s.base()}).ScanEndpoints(ctx, eps), nil
		})}
		outcomes = append(outcomes, r.Run(ctx, []runner.Probe{idorProbe})...)
	}

	rep := report.Build(report.Input{
		Target:    target,
		ScanType:  string(s.opts.ScanType),
		Outcomes:  outcomes,
		Headers:   &headerResult,
		Endpoints: endpoints,
		Started:   started,
	})

	span.SetAttributes(
		attribute.String("scan_id", rep.ScanID),
		attribute.Int("findings", rep.Summary.Total),
		attribute.Int("severity_score", rep.Summary.SeverityScore),
		attribute.String("risk_level", string(rep.Summary.RiskLevel)),
	)
	s.logger.Info("scan complete",
		slog.String("scan_id", rep.ScanID),
		slog.Int("findings", rep.Summary.Total),
		slog.String("risk_level", string(rep.Summary.RiskLevel)),
		slog.Duration("duration", time.Since(started)))
	return rep, nil
}

// ScanRaw replays a user-supplied request for IDOR only. The request's own
// URL is the report target.
func (s *Scanner) ScanRaw(ctx context.Context, req idor.RawRequest) (*report.Report, error) {
	if err := ValidateTarget(req.URL); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "vulnprobe.scan_raw",
		trace.WithAttributes(attribute.String("target", req.URL)))
	defer span.End()

	started := time.Now()
	det := idor.NewDetector(idor.Config{Base: s.base()})
	outcomes := runner.New(s.logger).Run(ctx, []runner.Probe{{
		Name: "idor-raw",
		Run: s.traced("idor-raw", func(ctx context.Context) ([]finding.Finding, error) {
			return det.ScanRaw(ctx, req)
		}),
	}})
	return report.Build(report.Input{
		Target:   req.URL,
		ScanType: "raw",
		Outcomes: outcomes,
		Started:  started,
	}), nil
}
