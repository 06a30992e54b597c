package report

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/headers"
	"github.com/waftester/vulnprobe/pkg/runner"
	"github.com/waftester/vulnprobe/pkg/scoring"
)

// ProbeError records a probe that failed. The same failure also appears in
// Findings as an INFO finding.
type ProbeError struct {
	Probe string `json:"probe"`
	Error string `json:"error"`
}

// Enrichment is the optional narrative risk assessment merged into a report.
type Enrichment struct {
	RiskAssessment   finding.Severity `json:"risk_assessment"`
	Explanation      string           `json:"explanation"`
	PrioritizedFixes []string         `json:"prioritized_fixes,omitempty"`
	AttackScenario   string           `json:"attack_scenario,omitempty"`
	BusinessImpact   string           `json:"business_impact,omitempty"`
	AISeverity       int              `json:"ai_severity,omitzero"`
	Source           string           `json:"source"`
}

// Report is the aggregate result for one target. Build it with Build and
// treat it as read-only afterwards.
type Report struct {
	ScanID          string            `json:"scan_id"`
	Target          string            `json:"target"`
	ScanType        string            `json:"scan_type,omitempty"`
	ScanTimestamp   time.Time         `json:"scan_timestamp"`
	DurationMs      int64             `json:"duration_ms,omitzero"`
	Findings        []finding.Finding `json:"findings"`
	Summary         scoring.Summary   `json:"summary"`
	SecurityHeaders *headers.Result   `json:"security_headers,omitempty"`
	Endpoints       []string          `json:"endpoints,omitempty"`
	ProbeErrors     []ProbeError      `json:"probe_errors,omitempty"`
	Enrichment      *Enrichment       `json:"enrichment,omitempty"`
}

// Input is everything Build needs.
type Input struct {
	Target    string
	ScanType  string
	Outcomes  []runner.Outcome
	Headers   *headers.Result
	Endpoints []string
	Started   time.Time
	Now       func() time.Time
}

// Build merges outcomes in completion order and computes the summary from
// the merged list.
func Build(in Input) *Report {
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}
	ts := now().UTC()

	var fs []finding.Finding
	var errs []ProbeError
	for _, o := range in.Outcomes {
		if o.Failed() {
			errs = append(errs, ProbeError{Probe: o.Probe, Error: o.Err.Error()})
		}
		for _, f := range o.AsFindings() {
			fs = append(fs, f.Clone())
		}
	}
	if fs == nil {
		fs = []finding.Finding{}
	}

	r := &Report{
		ScanID:        uuid.NewString(),
		Target:        in.Target,
		ScanType:      in.ScanType,
		ScanTimestamp: ts,
		Findings:      fs,
		Summary:       scoring.Summarize(fs),
		Endpoints:     slices.Clone(in.Endpoints),
		ProbeErrors:   errs,
	}
	if !in.Started.IsZero() {
		r.DurationMs = ts.Sub(in.Started.UTC()).Milliseconds()
	}
	if in.Headers != nil {
		h := *in.Headers
		h.Findings = nil
		r.SecurityHeaders = &h
	}
	return r
}

// WithEnrichment returns a copy of r carrying e. The receiver is unchanged.
func (r *Report) WithEnrichment(e Enrichment) *Report {
	cp := *r
	e.PrioritizedFixes = slices.Clone(e.PrioritizedFixes)
	cp.Enrichment = &e
	return &cp
}

// SortedFindings returns the findings ordered from most to least severe.
func (r *Report) SortedFindings() []finding.Finding {
	return finding.SortBySeverity(r.Findings)
}

// Failed reports whether every finding is an INFO-level failure marker, i.e.
// the target was never meaningfully probed.
func (r *Report) Failed() bool {
	if len(r.Findings) == 0 {
		return false
	}
	for _, f := range r.Findings {
		if f.Kind != finding.KindNetworkError && f.Kind != finding.KindProbeError {
			return false
		}
	}
	return true
}
