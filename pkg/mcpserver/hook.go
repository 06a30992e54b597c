package mcpserver

import (
	"context"
	"sync"
	"time"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/report"
)

const defaultRecentReports = 20

// RecentScan is the one-line record kept for each finished report.
type RecentScan struct {
	ScanID    string           `json:"scan_id"`
	Target    string           `json:"target"`
	ScanType  string           `json:"scan_type"`
	Timestamp time.Time        `json:"timestamp"`
	Findings  int              `json:"findings"`
	Score     int              `json:"severity_score"`
	RiskLevel finding.Severity `json:"risk_level"`
}

// RecentReports is a report hook that remembers the last N scans, newest
// first.
type RecentReports struct {
	mu    sync.Mutex
	max   int
	scans []RecentScan
}

// NewRecentReports keeps up to n scans. n <= 0 uses 20.
func NewRecentReports(n int) *RecentReports {
	if n <= 0 {
		n = defaultRecentReports
	}
	return &RecentReports{max: n}
}

// OnReport implements hooks.Hook.
func (rr *RecentReports) OnReport(_ context.Context, r *report.Report) error {
	rec := RecentScan{
		ScanID:    r.ScanID,
		Target:    r.Target,
		ScanType:  r.ScanType,
		Timestamp: r.ScanTimestamp,
		Findings:  r.Summary.Total,
		Score:     r.Summary.SeverityScore,
		RiskLevel: r.Summary.RiskLevel,
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.scans = append([]RecentScan{rec}, rr.scans...)
	if len(rr.scans) > rr.max {
		rr.scans = rr.scans[:rr.max]
	}
	return nil
}

// Close implements hooks.Hook.
func (rr *RecentReports) Close() error { return nil }

// List returns a copy of the remembered scans.
func (rr *RecentReports) List() []RecentScan {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	out := make([]RecentScan, len(rr.scans))
	copy(out, rr.scans)
	return out
}
