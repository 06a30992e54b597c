// Package enrich adds a narrative risk assessment to a finished report.
//
// Enrichment is best effort. Apply always returns a valid report: when the
// language-model call fails, a fixed rule-based narrative is merged instead.
package enrich

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/report"
)

// Source values recorded in report.Enrichment.Source.
const (
	SourceAI        = "ai"
	SourceRuleBased = "rule-based"
)

const fallbackExplanation = "Automated scan completed. Review findings for security issues."

var fallbackFixes = []string{"Review all HIGH/CRITICAL findings", "Implement fixes", "Rescan"}

// Enricher produces a narrative assessment of r.
type Enricher interface {
	Enrich(ctx context.Context, r *report.Report) (report.Enrichment, error)
}

// RuleBased is the deterministic fallback enricher. It never fails.
type RuleBased struct{}

// Enrich returns the summary risk level with a fixed explanation.
func (RuleBased) Enrich(_ context.Context, r *report.Report) (report.Enrichment, error) {
	return report.Enrichment{
		RiskAssessment:   r.Summary.RiskLevel,
		Explanation:      fallbackExplanation,
		PrioritizedFixes: slices.Clone(fallbackFixes),
		AISeverity:       Weight(r.Summary.RiskLevel),
		Source:           SourceRuleBased,
	}, nil
}

// Weight maps a risk assessment onto the 1-10 scale reported as
// ai_severity. Unrecognized values weigh 1.
func Weight(s finding.Severity) int {
	switch finding.Severity(strings.ToUpper(string(s))) {
	case finding.Critical:
		return 10
	case finding.High:
		return 7
	case finding.Medium:
		return 4
	case finding.Low:
		return 2
	default:
		return 1
	}
}

// Apply enriches r with e, falling back to RuleBased on any error or when e
// is nil. The input report is never modified.
func Apply(ctx context.Context, e Enricher, r *report.Report, logger *slog.Logger) *report.Report {
	if logger == nil {
		logger = slog.Default()
	}
	if e != nil {
		got, err := e.Enrich(ctx, r)
		if err == nil {
			return r.WithEnrichment(got)
		}
		logger.Warn("enrichment failed, using rule-based fallback",
			slog.String("scan_id", r.ScanID),
			slog.String("error", err.Error()))
	}
	got, _ := RuleBased{}.Enrich(ctx, r)
	return r.WithEnrichment(got)
}
