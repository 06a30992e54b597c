package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/waftester/vulnprobe/pkg/engine"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/idor"
	"github.com/waftester/vulnprobe/pkg/jsonutil"
	"github.com/waftester/vulnprobe/pkg/output/writers"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/scoring"
	"github.com/waftester/vulnprobe/pkg/store"
)

func (s *Server) registerTools() {
	s.addScanURLTool()
	s.addScanRawTool()
	s.addGetReportTool()
}

// scanSummary is the tool-facing view of a report: the summary plus the
// findings, without evidence blobs.
type scanSummary struct {
	ScanID      string              `json:"scan_id"`
	Target      string              `json:"target"`
	ScanType    string              `json:"scan_type,omitempty"`
	DurationMs  int64               `json:"duration_ms"`
	Summary     scoring.Summary     `json:"summary"`
	AISeverity  int                 `json:"ai_severity,omitzero"`
	Assessment  string              `json:"assessment,omitempty"`
	Findings    []findingLine       `json:"findings"`
	ProbeErrors []report.ProbeError `json:"probe_errors,omitempty"`
	Endpoints   int                 `json:"endpoints_tested"`
	Stored      bool                `json:"stored"`
	NextSteps   []string            `json:"next_steps,omitempty"`
}

type findingLine struct {
	Kind        finding.Kind     `json:"kind"`
	Severity    finding.Severity `json:"severity"`
	Description string           `json:"description"`
	Endpoint    string           `json:"endpoint,omitempty"`
	Fix         string           `json:"fix,omitempty"`
}

func summarize(r *report.Report, stored bool) scanSummary {
	out := scanSummary{
		ScanID:      r.ScanID,
		Target:      r.Target,
		ScanType:    r.ScanType,
		DurationMs:  r.DurationMs,
		Summary:     r.Summary,
		Findings:    make([]findingLine, 0, len(r.Findings)),
		ProbeErrors: r.ProbeErrors,
		Endpoints:   len(r.Endpoints),
		Stored:      stored,
	}
	if e := r.Enrichment; e != nil {
		out.AISeverity = e.AISeverity
		out.Assessment = e.Explanation
	}
	for _, f := range r.SortedFindings() {
		out.Findings = append(out.Findings, findingLine{
			Kind:        f.Kind,
			Severity:    f.Severity,
			Description: f.Description,
			Endpoint:    f.Endpoint,
			Fix:         f.Fix,
		})
	}
	if stored {
		out.NextSteps = append(out.NextSteps,
			fmt.Sprintf(`Call get_report with {"scan_id": "%s", "format": "markdown"} for a full write-up.`, r.ScanID))
	}
	if r.Summary.RiskLevel.AtLeast(finding.High) {
		out.NextSteps = append(out.NextSteps, "Prioritize the CRITICAL and HIGH findings; each carries a fix.")
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// scan_url
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addScanURLTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "scan_url",
			Title: "Scan URL",
			Description: `Scan a web application for common vulnerabilities: missing security headers, broken authentication, exposed debug endpoints, privilege escalation parameters, IDOR and weak JWT algorithms.

USE THIS TOOL WHEN:
• The user asks to scan, test or audit a URL they are authorized to test

SCAN TYPES:
• full (default): all probes, crawl the site, then IDOR on discovered endpoints
• quick: headers, auth and JWT only, no crawl
• api-only: no crawl, IDOR on the target URL itself

Over HTTP this returns a task_id; poll get_task_status. Over stdio it blocks and returns the summary.

EXAMPLES:
• {"target": "https://staging.example.com"}
• {"target": "https://api.example.com/v1/users?id=12", "scan_type": "api-only", "auth_token": "eyJ…"}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"target": map[string]any{
						"type":        "string",
						"description": "Absolute http(s) URL to scan.",
					},
					"scan_type": map[string]any{
						"type":    "string",
						"enum":    []string{"full", "quick", "api-only"},
						"default": "full",
					},
					"max_depth": map[string]any{
						"type":        "integer",
						"description": "Crawl depth for full scans.",
						"minimum":     1,
						"maximum":     10,
						"default":     3,
					},
					"auth_token": map[string]any{
						"type":        "string",
						"description": "Bearer token sent on every probe except the unauthenticated admin check.",
					},
					"headers": map[string]any{
						"type":                 "object",
						"description":          "Extra request headers.",
						"additionalProperties": map[string]any{"type": "string"},
					},
				},
				"required": []string{"target"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:  false,
				OpenWorldHint: boolPtr(true),
				Title:         "Scan URL",
			},
		},
		s.handleScanURL,
	)
}

func (s *Server) handleScanURL(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args engine.ScanRequest
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'target' (string) and optional 'scan_type', 'max_depth', 'auth_token', 'headers'.", err)), nil
	}
	if err := validateTargetURL(args.Target); err != nil {
		return errorResult(err.Error()), nil
	}

	logToSession(ctx, req, logInfo, fmt.Sprintf("scanning %s", args.Target))
	return s.launchAsync(ctx, "scan_url", func(ctx context.Context, task *Task) (any, error) {
		task.SetMessage("scanning " + args.Target)
		r, err := s.config.Engine.ScanURL(ctx, args)
		if err != nil {
			return nil, err
		}
		if n := len(r.ProbeErrors); n > 0 {
			logToSession(ctx, req, logWarning, fmt.Sprintf("%d probes failed; see probe_errors", n))
		}
		s.logger.Info("mcp scan complete",
			slog.String("scan_id", r.ScanID),
			slog.String("risk_level", r.Summary.RiskLevel.String()))
		return summarize(r, s.config.Engine.HasStore()), nil
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// scan_raw
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addScanRawTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "scan_raw",
			Title: "Analyze Raw Request",
			Description: `Test one explicit HTTP request for IDOR: the first numeric id= parameter in the URL is incremented and the two responses are compared.

EXAMPLE: {"method": "GET", "url": "https://app.example.com/invoices?id=1042", "headers": {"Cookie": "session=…"}}

Returns the analysis and fix recommendations.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"method": map[string]any{"type": "string", "default": "GET"},
					"url":    map[string]any{"type": "string", "description": "Request URL containing a numeric id= parameter."},
					"headers": map[string]any{
						"type":                 "object",
						"additionalProperties": map[string]any{"type": "string"},
					},
					"body": map[string]any{"type": "string"},
				},
				"required": []string{"url"},
			},
			Annotations: &mcp.ToolAnnotations{
				OpenWorldHint: boolPtr(true),
				Title:         "Analyze Raw Request",
			},
		},
		s.handleScanRaw,
	)
}

type rawResult struct {
	Target          string      `json:"target"`
	Analysis        scanSummary `json:"analysis"`
	Recommendations []string    `json:"recommendations"`
}

func (s *Server) handleScanRaw(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args idor.RawRequest
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if err := validateTargetURL(args.URL); err != nil {
		return errorResult(err.Error()), nil
	}
	if args.Method == "" {
		args.Method = http.MethodGet
	}
	args.Method = strings.ToUpper(args.Method)

	r, err := s.config.Engine.ScanRaw(ctx, args)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	recs := []string{}
	for _, f := range r.Findings {
		recs = append(recs, f.FixRecommendations...)
	}
	return jsonResult(rawResult{
		Target:          args.URL,
		Analysis:        summarize(r, s.config.Engine.HasStore()),
		Recommendations: recs,
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// get_report
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addGetReportTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_report",
			Title: "Get Report",
			Description: `Fetch a stored scan report by scan_id.

FORMATS: json (default, full report with evidence), markdown (readable write-up), text (short summary).

EXAMPLE: {"scan_id": "3f0c…", "format": "markdown"}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"scan_id": map[string]any{"type": "string"},
					"format": map[string]any{
						"type":    "string",
						"enum":    []string{"json", "markdown", "text"},
						"default": "json",
					},
				},
				"required": []string{"scan_id"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Get Report",
			},
		},
		s.handleGetReport,
	)
}

func (s *Server) handleGetReport(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		ScanID string `json:"scan_id"`
		Format string `json:"format"`
	}
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Format == "" {
		args.Format = string(writers.FormatJSON)
	}
	f, err := writers.ParseFormat(args.Format)
	if err != nil || f == writers.FormatPDF {
		return errorResult(fmt.Sprintf("unsupported format %q: use json, markdown or text", args.Format)), nil
	}

	data, err := s.config.Engine.Load(ctx, args.ScanID, writers.FormatJSON)
	switch {
	case errors.Is(err, engine.ErrNoStore):
		return errorResult("report storage is disabled on this server"), nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidID):
		return enrichedError(fmt.Sprintf("no report for scan_id %q", args.ScanID), []string{
			"Use the scan_id returned by scan_url.",
			"Reports expire; re-run scan_url if needed.",
		}), nil
	case err != nil:
		return errorResult(err.Error()), nil
	}
	if f == writers.FormatJSON {
		return textResult(string(data)), nil
	}

	var r report.Report
	if err := jsonutil.Unmarshal(data, &r); err != nil {
		return errorResult("stored report is corrupt: " + err.Error()), nil
	}
	var buf bytes.Buffer
	if err := writers.Render(&buf, f, &r); err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(buf.String()), nil
}
