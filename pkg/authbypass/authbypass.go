// Package authbypass probes a target for broken authentication: open admin
// paths, parameter-based authorization bypass, vertical privilege escalation
// and exposed debug endpoints.
//
// The checks are content heuristics. A 200 response or a body containing a
// keyword such as "admin" is the whole signal; false positives are expected.
package authbypass

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/waftester/vulnprobe/pkg/attackconfig"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/httpclient"
)

// Param is one query parameter name/value pair.
type Param struct {
	Name  string
	Value string
}

func (p Param) String() string { return p.Name + "=" + p.Value }

// Config configures the auth-bypass probes.
type Config struct {
	attackconfig.Base

	// AdminPaths are requested without credentials.
	AdminPaths []string

	// PollutionCases are privilege claims appended one case at a time.
	PollutionCases [][]Param

	// PollutionKeyword must appear in a 200 body to flag pollution.
	PollutionKeyword string

	// EscalationParams are appended one at a time for the role probe.
	EscalationParams []Param

	// EscalationKeywords flag a 200 body in the role probe.
	EscalationKeywords []string

	// DebugPaths are known debug and ops endpoints.
	DebugPaths []string

	// DebugTimeout bounds each debug path request.
	DebugTimeout time.Duration
}

// DefaultConfig returns the standard probe lists.
func DefaultConfig() Config {
	return Config{
		Base:       attackconfig.DefaultBase(),
		AdminPaths: []string{"/admin", "/administrator", "/dashboard", "/api/admin", "/debug"},
		PollutionCases: [][]Param{
			{{"admin", "true"}},
			{{"role", "admin"}},
			{{"user_type", "administrator"}},
			{{"debug", "1"}},
		},
		PollutionKeyword: "admin",
		EscalationParams: []Param{
			{"role", "admin"},
			{"permission", "full"},
			{"access_level", "1"},
		},
		EscalationKeywords: []string{"admin", "success", "granted"},
		DebugPaths: []string{
			"/debug", "/debug/console", "/_debug", "/debug.html",
			"/phpinfo.php", "/info.php", "/server-status",
			"/actuator", "/actuator/health", "/metrics",
		},
		DebugTimeout: httpclient.TimeoutProbing,
	}
}

// Detector runs the four auth-bypass sub-probes.
type Detector struct {
	config Config
}

// NewDetector creates a detector, filling unset lists from DefaultConfig.
func NewDetector(config Config) *Detector {
	config.Validate()
	def := DefaultConfig()
	if config.AdminPaths == nil {
		config.AdminPaths = def.AdminPaths
	}
	if config.PollutionCases == nil {
		config.PollutionCases = def.PollutionCases
	}
	if config.PollutionKeyword == "" {
		config.PollutionKeyword = def.PollutionKeyword
	}
	if config.EscalationParams == nil {
		config.EscalationParams = def.EscalationParams
	}
	if config.EscalationKeywords == nil {
		config.EscalationKeywords = def.EscalationKeywords
	}
	if config.DebugPaths == nil {
		config.DebugPaths = def.DebugPaths
	}
	if config.DebugTimeout <= 0 {
		config.DebugTimeout = def.DebugTimeout
	}
	return &Detector{config: config}
}

type subProbe struct {
	name string
	run  func(context.Context, string) ([]finding.Finding, error)
}

// Run executes every sub-probe in order. A sub-probe that fails contributes
// no findings and does not stop the others.
func (d *Detector) Run(ctx context.Context, target string) []finding.Finding {
	probes := []subProbe{
		{"missing-auth", d.MissingAuth},
		{"parameter-pollution", d.ParameterPollution},
		{"role-bypass", d.RoleBypass},
		{"debug-endpoints", d.DebugEndpoints},
	}

	var out []finding.Finding
	for _, p := range probes {
		found, err := p.run(ctx, target)
		if err != nil {
			d.config.Logger.Debug("auth sub-probe failed",
				slog.String("probe", p.name),
				slog.String("target", target),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, found...)
	}
	return out
}

func joinPath(target, path string) string {
	return strings.TrimRight(target, "/") + path
}

func (d *Detector) record(out []finding.Finding, f finding.Finding) []finding.Finding {
	d.config.NotifyFinding(f)
	return append(out, f)
}

// MissingAuth requests each admin path without credentials. A 200 is the
// vulnerability signal.
func (d *Detector) MissingAuth(ctx context.Context, target string) ([]finding.Finding, error) {
	var out []finding.Finding
	for _, path := range d.config.AdminPaths {
		u := joinPath(target, path)
		resp, err := d.config.Client.Do(ctx, httpclient.Request{
			Method:      http.MethodGet,
			URL:         u,
			WithoutAuth: true,
			Timeout:     d.config.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("missing-auth %s: %w", path, err)
		}
		if resp.StatusCode == http.StatusOK {
			out = d.record(out, finding.MustNew(finding.KindBrokenAuth, finding.High,
				"Admin endpoint accessible without authentication: "+path,
				finding.WithEndpoint(u),
				finding.WithFix("Implement proper authentication checks on admin endpoints"),
			))
		}
	}
	return out, nil
}

func queryOf(params []Param) map[string][]string {
	q := make(map[string][]string, len(params))
	for _, p := range params {
		q[p.Name] = append(q[p.Name], p.Value)
	}
	return q
}

// ParameterPollution appends privilege-claim parameters and flags a 200 body
// containing the pollution keyword.
func (d *Detector) ParameterPollution(ctx context.Context, target string) ([]finding.Finding, error) {
	var out []finding.Finding
	for _, params := range d.config.PollutionCases {
		resp, err := d.config.Client.Do(ctx, httpclient.Request{
			Method:  http.MethodGet,
			URL:     target,
			Query:   queryOf(params),
			Timeout: d.config.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("parameter-pollution: %w", err)
		}
		if resp.StatusCode == http.StatusOK &&
			strings.Contains(strings.ToLower(resp.Text()), d.config.PollutionKeyword) {
			evidence := make(map[string]string, len(params))
			for _, p := range params {
				evidence[p.Name] = p.Value
			}
			out = d.record(out, finding.MustNew(finding.KindAuthBypass, finding.Medium,
				"Authorization bypass via parameter pollution",
				finding.WithEndpoint(target),
				finding.WithEvidence(finding.Evidence{Parameters: evidence}),
				finding.WithFix("Properly validate all authorization parameters server-side"),
			))
		}
	}
	return out, nil
}

// RoleBypass appends escalation parameters and flags a 200 body containing
// any escalation keyword.
func (d *Detector) RoleBypass(ctx context.Context, target string) ([]finding.Finding, error) {
	var out []finding.Finding
	for _, p := range d.config.EscalationParams {
		resp, err := d.config.Client.Do(ctx, httpclient.Request{
			Method:  http.MethodGet,
			URL:     target,
			Query:   queryOf([]Param{p}),
			Timeout: d.config.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("role-bypass %s: %w", p, err)
		}
		if resp.StatusCode != http.StatusOK {
			continue
		}
		body := strings.ToLower(resp.Text())
		for _, kw := range d.config.EscalationKeywords {
			if strings.Contains(body, kw) {
				out = d.record(out, finding.MustNew(finding.KindPrivilegeEscalation, finding.High,
					"Vertical privilege escalation via "+p.String(),
					finding.WithEndpoint(target),
					finding.WithEvidence(finding.Evidence{Parameters: map[string]string{p.Name: p.Value}}),
					finding.WithFix("Implement role-based access control (RBAC) with server-side validation"),
				))
				break
			}
		}
	}
	return out, nil
}

// DebugEndpoints requests known debug paths with a short timeout. Each path
// is independent; a failed request skips only that path.
func (d *Detector) DebugEndpoints(ctx context.Context, target string) ([]finding.Finding, error) {
	var out []finding.Finding
	for _, path := range d.config.DebugPaths {
		u := joinPath(target, path)
		resp, err := d.config.Client.Do(ctx, httpclient.Request{
			Method:  http.MethodGet,
			URL:     u,
			Timeout: d.config.DebugTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, nil
			}
			continue
		}
		if resp.StatusCode == http.StatusOK {
			out = d.record(out, finding.MustNew(finding.KindExposedDebug, finding.High,
				"Debug endpoint exposed: "+path,
				finding.WithEndpoint(u),
				finding.WithFix("Remove or properly secure debug endpoints in production"),
			))
		}
	}
	return out, nil
}
