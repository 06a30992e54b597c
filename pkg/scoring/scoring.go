// Package scoring aggregates findings into a severity score and risk tier.
// Every function here is pure: the same findings in any order produce the
// same Summary.
package scoring

import (
	"github.com/waftester/vulnprobe/pkg/finding"
)

// Risk tier lower bounds (inclusive).
const (
	CriticalThreshold = 10
	HighThreshold     = 6
	MediumThreshold   = 3
)

// countedSeverities are the tiers shown in CountBySeverity. INFO carries no
// weight and is left out of the breakdown.
var countedSeverities = []finding.Severity{finding.Critical, finding.High, finding.Medium, finding.Low}

// Summary contains the aggregate score and metadata for one report.
type Summary struct {
	Total           int                      `json:"total"`
	SeverityScore   int                      `json:"severity_score"`
	RiskLevel       finding.Severity         `json:"risk_level"`
	CountBySeverity map[finding.Severity]int `json:"count_by_severity"`
}

// Score returns the sum of severity weights over findings.
func Score(findings []finding.Finding) int {
	total := 0
	for _, f := range findings {
		total += f.Severity.Weight()
	}
	return total
}

// RiskLevel maps a severity score onto a tier. It never returns INFO.
func RiskLevel(score int) finding.Severity {
	switch {
	case score >= CriticalThreshold:
		return finding.Critical
	case score >= HighThreshold:
		return finding.High
	case score >= MediumThreshold:
		return finding.Medium
	default:
		return finding.Low
	}
}

// CountBySeverity counts findings per tier. The map always has the four
// keys CRITICAL, HIGH, MEDIUM and LOW.
func CountBySeverity(findings []finding.Finding) map[finding.Severity]int {
	counts := make(map[finding.Severity]int, len(countedSeverities))
	for _, s := range countedSeverities {
		counts[s] = 0
	}
	for _, f := range findings {
		if _, ok := counts[f.Severity]; ok {
			counts[f.Severity]++
		}
	}
	return counts
}

// Summarize computes the full Summary for findings.
func Summarize(findings []finding.Finding) Summary {
	score := Score(findings)
	return Summary{
		Total:           len(findings),
		SeverityScore:   score,
		RiskLevel:       RiskLevel(score),
		CountBySeverity: CountBySeverity(findings),
	}
}

// Equal reports whether two summaries are identical.
func (s Summary) Equal(o Summary) bool {
	if s.Total != o.Total || s.SeverityScore != o.SeverityScore || s.RiskLevel != o.RiskLevel {
		return false
	}
	if len(s.CountBySeverity) != len(o.CountBySeverity) {
		return false
	}
	for k, v := range s.CountBySeverity {
		if ov, ok := o.CountBySeverity[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
