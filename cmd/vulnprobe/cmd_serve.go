package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/waftester/vulnprobe/pkg/api"
	"github.com/waftester/vulnprobe/pkg/engine"
	"github.com/waftester/vulnprobe/pkg/ui"
)

// runServe starts the HTTP API and blocks until ctx is cancelled.
func (a *app) runServe(ctx context.Context, args []string) int {
	var addr string
	var metrics bool
	cfg, cf, _, err := a.loadConfig("serve", args, true, func(fs *flag.FlagSet) {
		// === SERVER ===
		fs.StringVar(&addr, "addr", "", "Listen address (default from config, :8000)")
		fs.BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics at /metrics")
	})
	if err != nil {
		return exitFor(err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if metrics {
		cfg.Server.Metrics = true
	}

	logger := newLogger(cfg.Log, a.stderr)
	eng, comps, err := engine.FromConfig(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	defer eng.Close()

	var metricsHandler http.Handler
	if comps.Prometheus != nil {
		metricsHandler = comps.Prometheus.Handler()
	}

	if !cf.quiet {
		ui.PrintBanner(a.stderr)
		ui.PrintOption(a.stderr, "Listen", cfg.Server.Addr)
		ui.PrintOption(a.stderr, "Store", cfg.Store.Backend)
		ui.PrintOption(a.stderr, "Metrics", fmt.Sprint(metricsHandler != nil))
		fmt.Fprintln(a.stderr)
	}

	srv := api.New(api.Config{Engine: eng, Metrics: metricsHandler, Logger: logger})
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	return exitOK
}
