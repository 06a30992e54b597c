package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/waftester/vulnprobe/pkg/duration"
	"github.com/waftester/vulnprobe/pkg/engine"
	"github.com/waftester/vulnprobe/pkg/mcpserver"
)

// EnvMCPHTTPAddr selects the HTTP transport when -http is unset.
const EnvMCPHTTPAddr = "VULNPROBE_MCP_HTTP_ADDR"

// runMCP starts the MCP server. Stdio is the default transport; -http
// serves the streamable HTTP transport with async scans instead.
func (a *app) runMCP(ctx context.Context, args []string) int {
	var httpAddr string
	var recentN int
	cfg, _, _, err := a.loadConfig("mcp", args, true, func(fs *flag.FlagSet) {
		fs.StringVar(&httpAddr, "http", "", "HTTP listen address (e.g. :8080); stdio when empty (env "+EnvMCPHTTPAddr+")")
		fs.IntVar(&recentN, "recent", 20, "Scans kept for the vulnprobe://scans/recent resource")
	})
	if err != nil {
		return exitFor(err)
	}
	if httpAddr == "" {
		httpAddr, _ = a.lookupEnv(EnvMCPHTTPAddr)
	}

	// stdout belongs to the protocol in stdio mode.
	logger := newLogger(cfg.Log, a.stderr)
	recent := mcpserver.NewRecentReports(recentN)
	eng, _, err := engine.FromConfig(ctx, cfg, logger, engine.WithHook(recent))
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	defer eng.Close()

	srv := mcpserver.New(&mcpserver.Config{Engine: eng, Recent: recent, Logger: logger})
	srv.MarkReady()
	defer srv.Stop()

	if httpAddr == "" {
		if err := srv.RunStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(a.stderr, "error: %v\n", err)
			return exitFailed
		}
		return exitOK
	}

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           srv.HTTPHandler(),
		ReadHeaderTimeout: duration.ReadHeader,
		// No WriteTimeout: SSE streams are long-lived.
		IdleTimeout:    duration.ServerIdle,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), duration.Shutdown)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("mcp server listening", slog.String("addr", httpAddr), slog.String("transport", "http"))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	return exitOK
}
