package policy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/runner"
)

func intPtr(n int) *int { return &n }

func testReport(fs ...finding.Finding) *report.Report {
	return report.Build(report.Input{
		Target:   "https://example.com",
		Outcomes: []runner.Outcome{{Probe: "test", Findings: fs}},
		Now:      func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
}

func f(kind finding.Kind, sev finding.Severity, endpoint string) finding.Finding {
	return finding.MustNew(kind, sev, string(kind), finding.WithEndpoint(endpoint))
}

func TestLoadPolicy(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantErr  error
		validate func(t *testing.T, p *Policy)
	}{
		{
			name: "valid full policy",
			content: `
version: "1.0"
name: "production-gate"
fail_on:
  findings:
    total: 5
    critical: 0
    high: 3
  kinds:
    - jwt_none_alg
  risk_level: high
  severity_score_above: 12
  probe_errors: true
ignore:
  kinds:
    - missing_security_header
  endpoints:
    - https://example.com/health
`,
			validate: func(t *testing.T, p *Policy) {
				if p.Name != "production-gate" {
					t.Errorf("got name %q", p.Name)
				}
				if p.FailOn.Findings.Total == nil || *p.FailOn.Findings.Total != 5 {
					t.Errorf("got total threshold %v, want 5", p.FailOn.Findings.Total)
				}
				if p.FailOn.Findings.Critical == nil || *p.FailOn.Findings.Critical != 0 {
					t.Errorf("got critical threshold %v, want 0", p.FailOn.Findings.Critical)
				}
				if len(p.FailOn.Kinds) != 1 || p.FailOn.Kinds[0] != finding.KindJWTNoneAlg {
					t.Errorf("kinds not normalized: %v", p.FailOn.Kinds)
				}
				if p.FailOn.RiskLevel != finding.High {
					t.Errorf("risk level = %q, want HIGH", p.FailOn.RiskLevel)
				}
				if p.Ignore.Kinds[0] != finding.KindMissingHeader {
					t.Errorf("ignore kinds not normalized: %v", p.Ignore.Kinds)
				}
				if !p.FailOn.ProbeErrors {
					t.Error("probe_errors not parsed")
				}
			},
		},
		{
			name:    "default version",
			content: "name: minimal\n",
			validate: func(t *testing.T, p *Policy) {
				if p.Version != "1.0" {
					t.Errorf("got version %q, want 1.0", p.Version)
				}
			},
		},
		{
			name:    "malformed yaml",
			content: "fail_on: [unclosed",
			wantErr: ErrInvalidPolicy,
		},
		{
			name:    "unknown risk level",
			content: "fail_on:\n  risk_level: apocalyptic\n",
			wantErr: ErrInvalidPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			p, err := LoadPolicy(path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got error %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.validate(t, p)
		})
	}
}

func TestLoadPolicy_NotFound(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrPolicyNotFound) {
		t.Fatalf("got %v, want ErrPolicyNotFound", err)
	}
}

func TestEvaluate(t *testing.T) {
	critical := f(finding.KindJWTNoneAlg, finding.Critical, "https://example.com")
	high := f(finding.KindIDOR, finding.High, "https://example.com/p?id=1")
	medium := f(finding.KindMissingHeader, finding.Medium, "https://example.com")
	health := f(finding.KindExposedDebug, finding.Medium, "https://example.com/health")

	tests := []struct {
		name         string
		policy       Policy
		report       *report.Report
		wantPass     bool
		wantContains string
	}{
		{
			name:     "empty policy passes",
			report:   testReport(critical, high),
			wantPass: true,
		},
		{
			name:         "critical threshold zero",
			policy:       Policy{FailOn: FailOn{Findings: FindingThresholds{Critical: intPtr(0)}}},
			report:       testReport(critical),
			wantContains: "critical findings (1) exceeds threshold (0)",
		},
		{
			name:     "total under threshold",
			policy:   Policy{FailOn: FailOn{Findings: FindingThresholds{Total: intPtr(2)}}},
			report:   testReport(high, medium),
			wantPass: true,
		},
		{
			name:         "kind rule",
			policy:       Policy{FailOn: FailOn{Kinds: []finding.Kind{finding.KindIDOR}}},
			report:       testReport(high),
			wantContains: "1 IDOR finding(s) detected",
		},
		{
			name:         "risk level at threshold",
			policy:       Policy{FailOn: FailOn{RiskLevel: finding.High}},
			report:       testReport(critical, medium), // score 6 -> HIGH
			wantContains: "risk level HIGH meets threshold HIGH",
		},
		{
			name:     "risk level below threshold",
			policy:   Policy{FailOn: FailOn{RiskLevel: finding.Critical}},
			report:   testReport(critical, medium),
			wantPass: true,
		},
		{
			name:         "severity score",
			policy:       Policy{FailOn: FailOn{SeverityScoreAbove: intPtr(5)}},
			report:       testReport(critical, medium),
			wantContains: "severity score 6 exceeds threshold 5",
		},
		{
			name: "ignored kinds and endpoints are dropped first",
			policy: Policy{
				FailOn: FailOn{Findings: FindingThresholds{Medium: intPtr(0)}},
				Ignore: IgnoreSpec{
					Kinds:     []finding.Kind{finding.KindMissingHeader},
					Endpoints: []string{"https://example.com/health"},
				},
			},
			report:   testReport(medium, health),
			wantPass: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.policy.Evaluate(tt.report)
			if res.Pass != tt.wantPass {
				t.Fatalf("Pass = %v, want %v (failures: %v)", res.Pass, tt.wantPass, res.Failures)
			}
			if tt.wantPass && res.ExitCode != 0 {
				t.Errorf("ExitCode = %d on pass", res.ExitCode)
			}
			if !tt.wantPass && res.ExitCode != 1 {
				t.Errorf("ExitCode = %d on failure, want 1", res.ExitCode)
			}
			if tt.wantContains != "" && !strings.Contains(strings.Join(res.Failures, "\n"), tt.wantContains) {
				t.Errorf("failures %v do not contain %q", res.Failures, tt.wantContains)
			}
		})
	}
}

func TestEvaluate_ProbeErrors(t *testing.T) {
	r := testReport()
	r.ProbeErrors = []report.ProbeError{{Probe: "crawl", Error: "no browser"}, {Probe: "jwt", Error: "refused"}}

	p := Policy{FailOn: FailOn{ProbeErrors: true}}
	res := p.Evaluate(r)
	if res.Pass {
		t.Fatal("expected failure on probe errors")
	}
	if !strings.Contains(res.Failures[0], "crawl, jwt") {
		t.Errorf("unexpected failure message %q", res.Failures[0])
	}
}

func TestEvaluate_Concurrent(t *testing.T) {
	p := &Policy{FailOn: FailOn{Findings: FindingThresholds{High: intPtr(0)}}}
	r := testReport(f(finding.KindIDOR, finding.High, "x"))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := p.Evaluate(r); res.Pass {
				t.Error("expected failure")
			}
		}()
	}
	wg.Wait()
}
