package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waftester/vulnprobe/pkg/finding"
)

func mk(sevs ...finding.Severity) []finding.Finding {
	out := make([]finding.Finding, len(sevs))
	for i, s := range sevs {
		out[i] = finding.MustNew(finding.KindProbeError, s, "x")
	}
	return out
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		sevs []finding.Severity
		want int
	}{
		{"empty", nil, 0},
		{"info only", []finding.Severity{finding.Info, finding.Info}, 0},
		{"one of each", finding.Severities, 4 + 3 + 2 + 1 + 0},
		{"five medium", []finding.Severity{finding.Medium, finding.Medium, finding.Medium, finding.Medium, finding.Medium}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(mk(tt.sevs...)))
		})
	}
}

func TestRiskLevel_Thresholds(t *testing.T) {
	tests := []struct {
		score int
		want  finding.Severity
	}{
		{0, finding.Low},
		{2, finding.Low},
		{3, finding.Medium},
		{5, finding.Medium},
		{6, finding.High},
		{9, finding.High},
		{10, finding.Critical},
		{100, finding.Critical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskLevel(tt.score), "score %d", tt.score)
	}
}

func TestRiskLevel_Monotonic(t *testing.T) {
	prev := RiskLevel(0)
	for score := 1; score <= 50; score++ {
		cur := RiskLevel(score)
		if cur.Rank() < prev.Rank() {
			t.Fatalf("RiskLevel(%d) = %s is lower than RiskLevel(%d) = %s", score, cur, score-1, prev)
		}
		prev = cur
	}
}

func TestCountBySeverity_ExcludesInfo(t *testing.T) {
	got := CountBySeverity(mk(finding.Critical, finding.High, finding.High, finding.Info))
	assert.Equal(t, map[finding.Severity]int{
		finding.Critical: 1,
		finding.High:     2,
		finding.Medium:   0,
		finding.Low:      0,
	}, got)
}

func TestSummarize(t *testing.T) {
	s := Summarize(mk(finding.Critical, finding.High, finding.Medium, finding.Info))
	assert.Equal(t, 4, s.Total, "INFO findings still count toward the total")
	assert.Equal(t, 9, s.SeverityScore)
	assert.Equal(t, finding.High, s.RiskLevel)
	assert.Len(t, s.CountBySeverity, 4)
}

func TestSummarize_TotalNetworkFailureIsLow(t *testing.T) {
	s := Summarize(mk(finding.Info, finding.Info, finding.Info))
	assert.Equal(t, finding.Low, s.RiskLevel)
	assert.Equal(t, 0, s.SeverityScore)
}

func TestSummary_Equal(t *testing.T) {
	a := Summarize(mk(finding.High))
	b := Summarize(mk(finding.High))
	c := Summarize(mk(finding.Low))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
