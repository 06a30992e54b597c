package hooks

import (
	"context"
	"log/slog"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/report"
)

var _ Hook = (*LoggerHook)(nil)

// LoggerHook writes one structured record per report, plus one Debug
// record per finding.
type LoggerHook struct {
	logger *slog.Logger
}

// NewLoggerHook creates a logging hook. A nil logger means slog.Default().
func NewLoggerHook(logger *slog.Logger) *LoggerHook {
	return &LoggerHook{logger: orDefault(logger)}
}

// OnReport logs the report summary. Reports rated HIGH or CRITICAL log at
// Warn so they stand out in production logs.
func (h *LoggerHook) OnReport(ctx context.Context, r *report.Report) error {
	level := slog.LevelInfo
	if r.Summary.RiskLevel.AtLeast(finding.High) {
		level = slog.LevelWarn
	}
	h.logger.LogAttrs(ctx, level, "scan report",
		slog.String("scan_id", r.ScanID),
		slog.String("target", r.Target),
		slog.String("scan_type", r.ScanType),
		slog.Int("findings", r.Summary.Total),
		slog.Int("severity_score", r.Summary.SeverityScore),
		slog.String("risk_level", string(r.Summary.RiskLevel)),
		slog.Int("probe_errors", len(r.ProbeErrors)),
		slog.Int64("duration_ms", r.DurationMs),
	)
	for _, f := range r.Findings {
		h.logger.LogAttrs(ctx, slog.LevelDebug, "finding",
			slog.String("scan_id", r.ScanID),
			slog.String("kind", string(f.Kind)),
			slog.String("severity", string(f.Severity)),
			slog.String("endpoint", f.Endpoint),
		)
	}
	return nil
}

// Close is a no-op.
func (h *LoggerHook) Close() error { return nil }

// orDefault returns l if non-nil, otherwise slog.Default().
func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
