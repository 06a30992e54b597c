package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/headers"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/runner"
)

func init() {
	SetNoColor(true)
}

func sampleReport() *report.Report {
	fs := []finding.Finding{
		finding.MustNew(finding.KindMissingHeader, finding.Medium, "Missing Content-Security-Policy header",
			finding.WithFix("Add a Content-Security-Policy header")),
		finding.MustNew(finding.KindBrokenAuth, finding.Critical, "Admin panel reachable without credentials",
			finding.WithEndpoint("https://example.com/admin")),
	}
	r := report.Build(report.Input{
		Target:   "https://example.com",
		ScanType: "quick",
		Outcomes: []runner.Outcome{{Probe: "test", Findings: fs}},
		Headers: &headers.Result{
			OverallScore: 0.5,
			Status: map[string]headers.Status{
				"X-Frame-Options":         {Present: true, Value: "DENY"},
				"Content-Security-Policy": {},
			},
		},
		Started: time.Now().Add(-2 * time.Second),
	})
	return r.WithEnrichment(report.Enrichment{
		RiskAssessment:   finding.High,
		Explanation:      "Admin panel exposed.",
		PrioritizedFixes: []string{"Protect /admin"},
		Source:           "rule-based",
	})
}

func TestFormatFinding(t *testing.T) {
	f := finding.MustNew(finding.KindIDOR, finding.High, "Object reference is not authorized",
		finding.WithEndpoint("https://example.com/profile?id=2"))
	line := FormatFinding(f)
	assert.Contains(t, line, " high ")
	assert.Contains(t, line, " IDOR ")
	assert.Contains(t, line, "Object reference is not authorized")
	assert.True(t, strings.HasSuffix(line, "[https://example.com/profile?id=2]"), line)

	noEndpoint := FormatFinding(finding.MustNew(finding.KindJWTNoneAlg, finding.Critical, "none alg"))
	assert.NotContains(t, noEndpoint, "[]")
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport(), SummaryOptions{ShowFixes: true})
	out := buf.String()

	for _, want := range []string{
		"Scan Summary", "https://example.com", "quick",
		"Risk Level", "HIGH",
		"Security Headers (50%)", "X-Frame-Options", "Content-Security-Policy",
		"BROKEN_AUTH", "fix: Add a Content-Security-Policy header",
		"Assessment (rule-based)", "1. Protect /admin",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Probe Errors")
	// critical is listed before medium
	assert.Less(t, strings.Index(out, "BROKEN_AUTH"), strings.Index(out, "MISSING_SECURITY_HEADER"))
}

func TestPrintReport_CapsFindings(t *testing.T) {
	var fs []finding.Finding
	for range 5 {
		fs = append(fs, finding.MustNew(finding.KindIDOR, finding.High, "idor"))
	}
	r := report.Build(report.Input{Target: "https://example.com", Outcomes: []runner.Outcome{{Probe: "test", Findings: fs}}})

	var buf bytes.Buffer
	PrintReport(&buf, r, SummaryOptions{MaxFindings: 2})
	assert.Equal(t, 2, strings.Count(buf.String(), "IDOR"))
	assert.Contains(t, buf.String(), "3 more findings omitted")
}

func TestSilentMode(t *testing.T) {
	SetSilent(true)
	defer SetSilent(false)

	var buf bytes.Buffer
	PrintBanner(&buf)
	PrintLiveFinding(&buf, finding.MustNew(finding.KindIDOR, finding.High, "x"))
	PrintOption(&buf, "Target", "x")
	assert.Empty(t, buf.String())
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "v1.2.0")
}

func TestSeverityStyle_AllLevels(t *testing.T) {
	for _, s := range finding.Severities {
		assert.NotEmpty(t, SeverityStyle(s).Render(s.String()))
		assert.NotEqual(t, Muted, SeverityColor(s))
	}
	assert.Equal(t, Muted, SeverityColor(finding.Severity("BOGUS")))
}

func TestStripWide(t *testing.T) {
	assert.Equal(t, "ok  done", stripWide("ok ✅ done"))
	assert.Equal(t, "café", stripWide("café"))
}

func TestActivity_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	a := StartActivity(&buf, "scanning")
	a.Printf("line %d\n", 1)
	a.Stop()
	a.Stop()
	require.Equal(t, "scanning\nline 1\n", buf.String())
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestConfigureColor_NonTerminal(t *testing.T) {
	ConfigureColor(&bytes.Buffer{}, false)
	assert.True(t, IsNoColor())
}
