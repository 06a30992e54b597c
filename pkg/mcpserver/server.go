package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/engine"
	"github.com/waftester/vulnprobe/pkg/jsonutil"
)

const (
	logInfo    mcp.LoggingLevel = "info"
	logWarning mcp.LoggingLevel = "warning"
)

// Config holds MCP server configuration.
type Config struct {
	Engine *engine.Engine

	// Recent backs the vulnprobe://scans/recent resource. Register it as
	// an engine hook so it sees every report.
	Recent *RecentReports

	Logger *slog.Logger
}

// Server wraps the MCP server with vulnprobe functionality.
type Server struct {
	mcp      *mcp.Server
	config   *Config
	logger   *slog.Logger
	tasks    *TaskManager
	ready    atomic.Bool
	syncMode atomic.Bool
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// Tasks returns the task manager.
func (s *Server) Tasks() *TaskManager { return s.tasks }

// SetSyncMode makes long-running tools block until done instead of
// returning a task_id.
func (s *Server) SetSyncMode(sync bool) { s.syncMode.Store(sync) }

// IsSyncMode returns true if tools run synchronously.
func (s *Server) IsSyncMode() bool { return s.syncMode.Load() }

// Stop cancels running tasks and waits briefly for them to exit.
func (s *Server) Stop() {
	s.tasks.Stop()
}

// MarkReady flips /health from 503 to 200.
func (s *Server) MarkReady() { s.ready.Store(true) }

// IsReady returns true after MarkReady.
func (s *Server) IsReady() bool { return s.ready.Load() }

// New creates a server with all tools, resources and prompts registered.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Engine == nil {
		cfg.Engine = engine.New(engine.Config{Logger: cfg.Logger})
	}
	if cfg.Recent == nil {
		cfg.Recent = NewRecentReports(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		logger: logger,
		tasks:  NewTaskManager(logger),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    defaults.ToolName,
			Title:   "vulnprobe web vulnerability scanner",
			Version: defaults.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	s.registerAsyncTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// RunStdio serves over stdin/stdout. Tools run synchronously: task state
// would not survive between process invocations.
func (s *Server) RunStdio(ctx context.Context) error {
	s.syncMode.Store(true)
	s.logger.Info("mcp stdio transport: sync mode enabled")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns the streamable HTTP transport plus /health.
//
//   - /health → readiness probe (GET only)
//   - /mcp    → streamable HTTP transport
//   - /       → streamable HTTP transport
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		&mcp.StreamableHTTPOptions{Stateless: false},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/mcp", streamable)
	mux.Handle("/", streamable)

	return corsMiddleware(s.recoveryMiddleware(securityHeaders(mux)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	if !s.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting","service":"vulnprobe-mcp"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"vulnprobe-mcp"}`))
}

// corsMiddleware adds CORS headers for browser-based MCP clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		w.Header().Add("Vary", "Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			strings.Join([]string{
				"Content-Type",
				"Authorization",
				"Mcp-Session-Id",
				"MCP-Protocol-Version",
				"Last-Event-ID",
				"Accept",
			}, ", "))
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id, MCP-Protocol-Version")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic in HTTP handler",
					slog.Any("panic", err),
					slog.String("stack", string(debug.Stack())))
				w.Header().Set("Content-Type", defaults.ContentTypeJSON)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Result helpers
// ---------------------------------------------------------------------------

// logToSession sends a log notification to the client when a session exists.
func logToSession(ctx context.Context, req *mcp.CallToolRequest, level mcp.LoggingLevel, data any) {
	if req.Session == nil {
		return
	}
	_ = req.Session.Log(ctx, &mcp.LoggingMessageParams{
		Level:  level,
		Logger: defaults.ToolName,
		Data:   data,
	})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// jsonResult marshals v to indented JSON and wraps it in a CallToolResult.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult returns an IsError result so the model can self-correct.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// enrichedError is an error result carrying recovery steps.
func enrichedError(msg string, recoverySteps []string) *mcp.CallToolResult {
	type errResponse struct {
		Error         string   `json:"error"`
		RecoverySteps []string `json:"recovery_steps"`
	}
	data, _ := jsonutil.MarshalIndent(errResponse{Error: msg, RecoverySteps: recoverySteps}, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
		IsError: true,
	}
}

func boolPtr(b bool) *bool { return &b }

// parseArgs unmarshals the tool call arguments into dst.
func parseArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := jsonutil.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("parsing tool arguments: %w", err)
	}
	return nil
}

// validateTargetURL checks that target is an absolute http(s) URL.
func validateTargetURL(target string) error {
	if target == "" {
		return fmt.Errorf("target URL is required (e.g. https://example.com)")
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target URL must start with http:// or https:// (got %q)", target)
	}
	if u.Host == "" {
		return fmt.Errorf("target URL is missing a host (got %q)", target)
	}
	return nil
}

const serverInstructions = `You are operating vulnprobe, a web application vulnerability scanner.

## SAFETY

1. Only scan targets the user is authorized to test.
2. Scans send real requests: admin paths, debug paths, privilege parameters and mutated object IDs.

## TOOLS

| Intent | Tool |
|---|---|
| "Scan this site" | scan_url |
| "Is this request vulnerable to IDOR?" | scan_raw |
| "Show me the report for scan X" | get_report |
| Poll an async scan | get_task_status |

## WORKFLOW

1. Call scan_url with the target. Over HTTP it returns a task_id.
2. Call get_task_status with {"task_id": "...", "wait_seconds": 30} until status is "completed".
3. Summarize risk_level, severity_score and the most severe findings.
4. Use get_report with format "markdown" for a shareable write-up.

Scan types: full (crawl + IDOR on discovered endpoints), quick (headers, auth, JWT), api-only (IDOR on the target itself).`
