package policy

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/scoring"
)

// ErrPolicyNotFound is returned when a policy file does not exist.
var ErrPolicyNotFound = errors.New("policy: file not found")

// ErrInvalidPolicy is returned when a policy file is malformed.
var ErrInvalidPolicy = errors.New("policy: invalid policy file")

// Policy represents a parsed policy configuration. It is read-only after
// parsing.
type Policy struct {
	Version string     `yaml:"version"`
	Name    string     `yaml:"name"`
	FailOn  FailOn     `yaml:"fail_on"`
	Ignore  IgnoreSpec `yaml:"ignore"`
}

// FailOn defines conditions that cause a scan to fail.
type FailOn struct {
	Findings           FindingThresholds `yaml:"findings"`
	Kinds              []finding.Kind    `yaml:"kinds"`
	RiskLevel          finding.Severity  `yaml:"risk_level"`
	SeverityScoreAbove *int              `yaml:"severity_score_above"`
	ProbeErrors        bool              `yaml:"probe_errors"`
}

// FindingThresholds defines the maximum allowed findings by severity.
// A nil threshold is unlimited; N means fail if the count is above N.
type FindingThresholds struct {
	Total    *int `yaml:"total"`
	Critical *int `yaml:"critical"`
	High     *int `yaml:"high"`
	Medium   *int `yaml:"medium"`
	Low      *int `yaml:"low"`
}

// IgnoreSpec removes findings before evaluation.
type IgnoreSpec struct {
	Kinds     []finding.Kind `yaml:"kinds"`
	Endpoints []string       `yaml:"endpoints"`
}

// Result is the outcome of a policy evaluation.
type Result struct {
	// Pass is true if no rule failed.
	Pass bool `json:"pass"`

	// Failures contains human-readable failure messages.
	Failures []string `json:"failures,omitempty"`

	// ExitCode is 0 on pass and 1 on failure.
	ExitCode int `json:"exit_code"`

	PolicyName string `json:"policy_name,omitempty"`
}

// LoadPolicy loads and parses a policy file from path.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, path)
		}
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses policy YAML. Kind and severity names are accepted in
// any case.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if p.Version == "" {
		p.Version = "1.0"
	}

	for i, k := range p.FailOn.Kinds {
		p.FailOn.Kinds[i] = finding.Kind(strings.ToUpper(string(k)))
	}
	for i, k := range p.Ignore.Kinds {
		p.Ignore.Kinds[i] = finding.Kind(strings.ToUpper(string(k)))
	}
	if p.FailOn.RiskLevel != "" {
		sev, err := finding.ParseSeverity(string(p.FailOn.RiskLevel))
		if err != nil {
			return nil, fmt.Errorf("%w: risk_level: %v", ErrInvalidPolicy, err)
		}
		p.FailOn.RiskLevel = sev
	}
	return &p, nil
}

// Evaluate checks r against the policy. Ignored findings are removed and
// the summary recomputed before any threshold is applied.
func (p *Policy) Evaluate(r *report.Report) Result {
	result := Result{Pass: true, PolicyName: p.Name}

	kept := make([]finding.Finding, 0, len(r.Findings))
	for _, f := range r.Findings {
		if slices.Contains(p.Ignore.Kinds, f.Kind) {
			continue
		}
		if f.Endpoint != "" && slices.Contains(p.Ignore.Endpoints, f.Endpoint) {
			continue
		}
		kept = append(kept, f)
	}
	summary := scoring.Summarize(kept)

	p.checkThresholds(&result, summary)
	p.checkKinds(&result, kept)

	if p.FailOn.RiskLevel != "" && summary.RiskLevel.AtLeast(p.FailOn.RiskLevel) {
		result.Failures = append(result.Failures,
			fmt.Sprintf("risk level %s meets threshold %s", summary.RiskLevel, p.FailOn.RiskLevel))
	}
	if limit := p.FailOn.SeverityScoreAbove; limit != nil && summary.SeverityScore > *limit {
		result.Failures = append(result.Failures,
			fmt.Sprintf("severity score %d exceeds threshold %d", summary.SeverityScore, *limit))
	}
	if p.FailOn.ProbeErrors && len(r.ProbeErrors) > 0 {
		names := make([]string, len(r.ProbeErrors))
		for i, pe := range r.ProbeErrors {
			names[i] = pe.Probe
		}
		result.Failures = append(result.Failures,
			fmt.Sprintf("%d probe(s) failed: %s", len(names), strings.Join(names, ", ")))
	}

	if len(result.Failures) > 0 {
		result.Pass = false
		result.ExitCode = 1
	}
	return result
}

func (p *Policy) checkThresholds(result *Result, s scoring.Summary) {
	t := p.FailOn.Findings
	if t.Total != nil && s.Total > *t.Total {
		result.Failures = append(result.Failures,
			fmt.Sprintf("total findings (%d) exceeds threshold (%d)", s.Total, *t.Total))
	}

	for _, c := range []struct {
		sev   finding.Severity
		limit *int
	}{
		{finding.Critical, t.Critical},
		{finding.High, t.High},
		{finding.Medium, t.Medium},
		{finding.Low, t.Low},
	} {
		if c.limit == nil {
			continue
		}
		if n := s.CountBySeverity[c.sev]; n > *c.limit {
			result.Failures = append(result.Failures,
				fmt.Sprintf("%s findings (%d) exceeds threshold (%d)", strings.ToLower(string(c.sev)), n, *c.limit))
		}
	}
}

func (p *Policy) checkKinds(result *Result, fs []finding.Finding) {
	for _, k := range p.FailOn.Kinds {
		n := 0
		for _, f := range fs {
			if f.Kind == k {
				n++
			}
		}
		if n > 0 {
			result.Failures = append(result.Failures, fmt.Sprintf("%d %s finding(s) detected", n, k))
		}
	}
}
