package enrich

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/duration"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/httpclient"
	"github.com/waftester/vulnprobe/pkg/jsonutil"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/strutil"
)

// OpenAIConfig configures the OpenAI-compatible enricher.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
	Client      *httpclient.Client
}

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	cfg OpenAIConfig
}

// NewOpenAI creates an enricher. Missing fields take package defaults.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = defaults.EnrichModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.OpenAIBaseURL
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.EnrichTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = duration.HTTPAPI
	}
	if cfg.Client == nil {
		hc := httpclient.WithTimeout(cfg.Timeout)
		hc.InsecureSkipVerify = false
		cfg.Client = httpclient.NewClient(hc)
	}
	return &OpenAI{cfg: cfg}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type analysis struct {
	RiskAssessment   string   `json:"risk_assessment"`
	Explanation      string   `json:"explanation"`
	PrioritizedFixes []string `json:"prioritized_fixes"`
	AttackScenario   string   `json:"attack_scenario"`
	BusinessImpact   string   `json:"business_impact"`
}

// Enrich sends the report summary to the model and parses its JSON answer.
func (o *OpenAI) Enrich(ctx context.Context, r *report.Report) (report.Enrichment, error) {
	if strings.TrimSpace(o.cfg.APIKey) == "" {
		return report.Enrichment{}, ErrNoAPIKey
	}
	prompt, err := BuildPrompt(r)
	if err != nil {
		return report.Enrichment{}, err
	}
	body, err := jsonutil.Marshal(chatRequest{
		Model:       o.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return report.Enrichment{}, fmt.Errorf("marshal ai request: %w", err)
	}
	endpoint, err := url.JoinPath(o.cfg.BaseURL, "chat/completions")
	if err != nil {
		return report.Enrichment{}, fmt.Errorf("ai base URL: %w", err)
	}

	resp, err := o.cfg.Client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Header: http.Header{
			"Content-Type":  {defaults.ContentTypeJSON},
			"Accept":        {defaults.ContentTypeJSON},
			"Authorization": {"Bearer " + o.cfg.APIKey},
		},
		Body:    string(body),
		Timeout: o.cfg.Timeout,
	})
	if err != nil {
		return report.Enrichment{}, fmt.Errorf("execute ai request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := strutil.Truncate(strings.TrimSpace(resp.Text()), 200)
		return report.Enrichment{}, fmt.Errorf("%w: HTTP %d: %s", ErrProvider, resp.StatusCode, reason)
	}

	var parsed chatResponse
	if err := jsonutil.Unmarshal(resp.Body, &parsed); err != nil {
		return report.Enrichment{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return report.Enrichment{}, fmt.Errorf("%w: %s", ErrProvider, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return report.Enrichment{}, fmt.Errorf("%w: no choices", ErrBadResponse)
	}
	obj, err := extractJSONObject(messageContent(parsed.Choices[0].Message.Content))
	if err != nil {
		return report.Enrichment{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	var a analysis
	if err := jsonutil.Unmarshal([]byte(obj), &a); err != nil {
		return report.Enrichment{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	risk := finding.Severity(strings.ToUpper(strings.TrimSpace(a.RiskAssessment)))
	return report.Enrichment{
		RiskAssessment:   risk,
		Explanation:      a.Explanation,
		PrioritizedFixes: a.PrioritizedFixes,
		AttackScenario:   a.AttackScenario,
		BusinessImpact:   a.BusinessImpact,
		AISeverity:       Weight(risk),
		Source:           SourceAI,
	}, nil
}

func messageContent(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		var b strings.Builder
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if txt, ok := obj["text"].(string); ok {
				b.WriteString(txt)
			}
		}
		return strings.TrimSpace(b.String())
	default:
		return ""
	}
}

// extractJSONObject strips markdown fences and returns the outermost object.
func extractJSONObject(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
			raw = raw[idx+1:]
		}
		raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "```"))
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", ErrNoJSONObject
	}
	return raw[start : end+1], nil
}

// BuildPrompt renders the analysis prompt for r.
func BuildPrompt(r *report.Report) (string, error) {
	summary, err := jsonutil.MarshalIndent(r.Summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	var top bytes.Buffer
	for i, f := range r.Findings {
		if i == defaults.EnrichMaxFindings {
			break
		}
		fmt.Fprintf(&top, "- %s: %s...\n", f.Kind, strutil.Prefix(f.Description, 100))
	}
	headerScore := 0.0
	if r.SecurityHeaders != nil {
		headerScore = r.SecurityHeaders.OverallScore
	}

	return fmt.Sprintf(`
You are a senior security engineer analyzing automated scan results.

Scan Results:
Target: %s
Vulnerabilities found: %d
Summary: %s

Top vulnerabilities:
%s
Security Headers Score: %.2f

Provide JSON analysis with:
{
  "risk_assessment": "CRITICAL|HIGH|MEDIUM|LOW",
  "explanation": "2-3 sentences explaining overall risk",
  "prioritized_fixes": ["Fix 1", "Fix 2", "Fix 3"],
  "attack_scenario": "Real-world attack path description",
  "business_impact": "What could happen if exploited"
}

Focus on:
1. Real exploitability (not just theoretical)
2. Business impact
3. Prioritized remediation steps
4. Attack narrative for non-technical stakeholders
`, r.Target, len(r.Findings), summary, top.String(), headerScore), nil
}
