// Package engine ties a scan to everything that happens after it: the
// enrichment pass, report persistence and hooks. The CLI, the HTTP API and
// the MCP server all drive scans through an Engine.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/waftester/vulnprobe/pkg/config"
	"github.com/waftester/vulnprobe/pkg/crawler"
	"github.com/waftester/vulnprobe/pkg/enrich"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/headers"
	"github.com/waftester/vulnprobe/pkg/idor"
	"github.com/waftester/vulnprobe/pkg/output/hooks"
	"github.com/waftester/vulnprobe/pkg/output/writers"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/scanner"
	"github.com/waftester/vulnprobe/pkg/store"
)

// Config wires an Engine. Only Scan is consulted for defaults; every other
// field is optional.
type Config struct {
	Scan   config.Scan
	Policy headers.Policy

	// Enricher produces the narrative assessment. Nil means rule-based.
	Enricher enrich.Enricher

	// Store persists JSON and PDF renderings. Nil disables persistence.
	Store store.Store

	Hooks *hooks.Multi

	// Crawler overrides the crawler built from Scan.CrawlMode.
	Crawler crawler.Crawler

	Logger    *slog.Logger
	OnFinding func(finding.Finding)
}

// ScanRequest describes one URL scan. Zero fields take the engine defaults.
type ScanRequest struct {
	Target    string            `json:"target"`
	ScanType  string            `json:"scan_type,omitempty"`
	MaxDepth  int               `json:"max_depth,omitempty"`
	AuthToken string            `json:"auth_token,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// Engine runs scans and their post-processing.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Hooks == nil {
		cfg.Hooks = hooks.NewMulti()
	}
	if cfg.Policy.Len() == 0 {
		cfg.Policy = headers.DefaultPolicy()
	}
	return &Engine{cfg: cfg, logger: cfg.Logger}
}

// AddHook registers h to receive every finished report.
func (e *Engine) AddHook(h hooks.Hook) { e.cfg.Hooks.Add(h) }

// HasStore reports whether reports are persisted.
func (e *Engine) HasStore() bool { return e.cfg.Store != nil }

func (e *Engine) options(req ScanRequest) (scanner.Options, error) {
	typeName := req.ScanType
	if typeName == "" {
		typeName = e.cfg.Scan.ScanType
	}
	st, err := scanner.ParseScanType(typeName)
	if err != nil {
		return scanner.Options{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	depth := req.MaxDepth
	if depth <= 0 {
		depth = e.cfg.Scan.MaxDepth
	}
	hdrs := maps.Clone(e.cfg.Scan.Headers)
	if hdrs == nil {
		hdrs = make(map[string]string, len(req.Headers))
	}
	maps.Copy(hdrs, req.Headers)

	return scanner.Options{
		Target:    req.Target,
		ScanType:  st,
		MaxDepth:  depth,
		AuthToken: req.AuthToken,
		Headers:   hdrs,
		Timeout:   e.cfg.Scan.Timeout,
		RateLimit: e.cfg.Scan.RateLimit,
		Policy:    e.cfg.Policy,
		CrawlMode: crawler.Mode(e.cfg.Scan.CrawlMode),
		Crawler:   e.cfg.Crawler,
		Logger:    e.logger,
		OnFinding: e.cfg.OnFinding,
	}, nil
}

// ScanURL scans req.Target and returns the enriched report. Errors are
// limited to invalid requests: a scan of an unreachable target still
// returns a report.
func (e *Engine) ScanURL(ctx context.Context, req ScanRequest) (*report.Report, error) {
	opts, err := e.options(req)
	if err != nil {
		return nil, err
	}
	s, err := scanner.New(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	defer s.Close()

	r, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, r), nil
}

// ScanRaw runs the raw-request IDOR probe.
func (e *Engine) ScanRaw(ctx context.Context, req idor.RawRequest) (*report.Report, error) {
	opts, err := e.options(ScanRequest{Target: req.URL, ScanType: string(scanner.ScanQuick)})
	if err != nil {
		return nil, err
	}
	s, err := scanner.New(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	defer s.Close()

	r, err := s.ScanRaw(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, r), nil
}

// finish enriches, persists and publishes r. Persistence and hook failures
// are logged and never fail the scan.
func (e *Engine) finish(ctx context.Context, r *report.Report) *report.Report {
	r = enrich.Apply(ctx, e.cfg.Enricher, r, e.logger)
	if e.HasStore() {
		if err := e.Persist(ctx, r); err != nil {
			e.logger.Warn("persisting report failed",
				slog.String("scan_id", r.ScanID),
				slog.String("error", err.Error()))
		}
	}
	if err := e.cfg.Hooks.OnReport(ctx, r); err != nil {
		e.logger.Warn("report hook failed",
			slog.String("scan_id", r.ScanID),
			slog.String("error", err.Error()))
	}
	return r
}

// persisted lists the renderings saved for every report.
var persisted = []writers.Format{writers.FormatJSON, writers.FormatPDF}

// Persist renders r as JSON and PDF and saves both under r.ScanID.
func (e *Engine) Persist(ctx context.Context, r *report.Report) error {
	if e.cfg.Store == nil {
		return ErrNoStore
	}
	for _, f := range persisted {
		var buf bytes.Buffer
		if err := writers.Render(&buf, f, r); err != nil {
			return fmt.Errorf("rendering %s: %w", f, err)
		}
		if err := e.cfg.Store.Save(ctx, r.ScanID, f, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// Load returns a stored rendering.
func (e *Engine) Load(ctx context.Context, id string, f writers.Format) ([]byte, error) {
	if e.cfg.Store == nil {
		return nil, ErrNoStore
	}
	return e.cfg.Store.Load(ctx, id, f)
}

// Close releases the store and hooks.
func (e *Engine) Close() error {
	var errs []error
	if e.cfg.Store != nil {
		if err := e.cfg.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.cfg.Hooks.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
