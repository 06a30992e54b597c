// Package headers checks HTTP responses against a security header policy.
package headers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/httpclient"
)

// Status records whether one policy header was observed.
type Status struct {
	Present bool   `json:"present"`
	Value   string `json:"value,omitempty"`
}

// Result is the header analysis for one response.
type Result struct {
	OverallScore   float64           `json:"overall_score"`
	HeadersPresent int               `json:"headers_present"`
	Status         map[string]Status `json:"status"`
	Findings       []finding.Finding `json:"-"`
}

// lookup finds name in h ignoring case, for maps not built by net/http.
func lookup(h http.Header, name string) (string, bool) {
	if vs, ok := h[http.CanonicalHeaderKey(name)]; ok && len(vs) > 0 {
		return strings.Join(vs, ", "), true
	}
	for k, vs := range h {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return strings.Join(vs, ", "), true
		}
	}
	return "", false
}

// Analyze checks h against p. It is a pure function.
func Analyze(h http.Header, p Policy) Result {
	res := Result{Status: make(map[string]Status, p.Len())}

	for _, rule := range p.rules {
		value, present := lookup(h, rule.Name)
		res.Status[rule.Name] = Status{Present: present, Value: value}

		if !present {
			if rule.Required {
				res.Findings = append(res.Findings, finding.MustNew(
					finding.KindMissingHeader, finding.Medium,
					"Missing required security header: "+rule.Name,
					finding.WithEvidence(finding.Evidence{Header: rule.Name}),
					finding.WithFix(fmt.Sprintf("Add %s header with appropriate value", rule.Name)),
				))
			}
			continue
		}

		res.HeadersPresent++

		if rule.ExpectedValue != "" && !strings.Contains(value, rule.ExpectedValue) {
			res.Findings = append(res.Findings, finding.MustNew(
				finding.KindIncorrectHeader, finding.Low,
				fmt.Sprintf("Security header %s has incorrect value", rule.Name),
				finding.WithEvidence(finding.Evidence{Header: rule.Name, Expected: rule.ExpectedValue, Actual: value}),
				finding.WithFix(fmt.Sprintf("Set %s: %s", rule.Name, rule.ExpectedValue)),
			))
		}

		if rule.MinAge > 0 {
			if age, ok := maxAge(value); !ok || age < rule.MinAge {
				res.Findings = append(res.Findings, finding.MustNew(
					finding.KindIncorrectHeader, finding.Low,
					fmt.Sprintf("Security header %s has insufficient max-age", rule.Name),
					finding.WithEvidence(finding.Evidence{
						Header:   rule.Name,
						Expected: fmt.Sprintf("max-age>=%d", rule.MinAge),
						Actual:   value,
					}),
					finding.WithFix(fmt.Sprintf("Set %s: max-age=%d; includeSubDomains", rule.Name, rule.MinAge)),
				))
			}
		}
	}

	if p.Len() > 0 {
		res.OverallScore = float64(res.HeadersPresent) / float64(p.Len())
	}
	return res
}

// maxAge extracts the max-age directive from an HSTS-style value.
func maxAge(value string) (int, bool) {
	for _, directive := range strings.Split(value, ";") {
		k, v, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(k), "max-age") {
			continue
		}
		n, err := strconv.Atoi(strings.Trim(strings.TrimSpace(v), `"`))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Detector fetches a target and analyzes its response headers.
type Detector struct {
	client *httpclient.Client
	policy Policy
	logger *slog.Logger
}

// NewDetector creates a header detector. A zero policy means DefaultPolicy.
func NewDetector(client *httpclient.Client, policy Policy, logger *slog.Logger) *Detector {
	if policy.Len() == 0 {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{client: client, policy: policy, logger: logger}
}

// Policy returns the detector's policy.
func (d *Detector) Policy() Policy { return d.policy }

// Run fetches target and analyzes the headers. When the target cannot be
// reached the result carries a single NETWORK_ERROR finding instead.
func (d *Detector) Run(ctx context.Context, target string) Result {
	resp, err := d.client.Get(ctx, target)
	if err != nil {
		d.logger.Warn("header probe could not reach target",
			slog.String("target", target), slog.String("error", err.Error()))
		return Result{
			Status: map[string]Status{},
			Findings: []finding.Finding{finding.MustNew(
				finding.KindNetworkError, finding.Info,
				"Could not reach target: "+err.Error(),
				finding.WithEndpoint(target),
			)},
		}
	}
	return Analyze(resp.Header, d.policy)
}
