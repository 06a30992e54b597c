package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/waftester/vulnprobe/pkg/engine"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/idor"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/ui"
)

type scanFlags struct {
	target      string
	token       string
	showFixes   bool
	maxFindings int
	out         outputFlags
}

func (s *scanFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&s.target, "u", "", "Target URL (or pass it as the first argument)")
	fs.StringVar(&s.token, "token", "", "Bearer token sent with every probe except the unauthenticated admin check")
	fs.BoolVar(&s.showFixes, "fixes", false, "Print the fix under each finding")
	fs.IntVar(&s.maxFindings, "max-findings", 0, "Findings listed in the console summary (0 = default)")
	s.out.bind(fs)
}

func (a *app) runScan(ctx context.Context, args []string) int {
	var sf scanFlags
	cfg, cf, fs, err := a.loadConfig("scan", args, true, sf.bind)
	if err != nil {
		return exitFor(err)
	}
	if sf.target == "" && fs.NArg() > 0 {
		sf.target = fs.Arg(0)
	}
	if sf.target == "" {
		fmt.Fprintln(a.stderr, "error: target URL is required (vulnprobe scan https://example.com)")
		return exitUsage
	}

	logger := newLogger(cfg.Log, a.stderr)
	if !cf.quiet {
		ui.PrintBanner(a.stderr)
		ui.PrintOption(a.stderr, "Target", sf.target)
		ui.PrintOption(a.stderr, "Scan type", cfg.Scan.ScanType)
		if cfg.Scan.ScanType == "full" {
			ui.PrintOption(a.stderr, "Crawl", fmt.Sprintf("%s, depth %d", cfg.Scan.CrawlMode, cfg.Scan.MaxDepth))
		}
		ui.PrintOption(a.stderr, "Timeout", cfg.Scan.Timeout.String())
		if cfg.Scan.RateLimit > 0 {
			ui.PrintOption(a.stderr, "Rate limit", strconv.FormatFloat(cfg.Scan.RateLimit, 'f', -1, 64)+" req/s")
		}
		fmt.Fprintln(a.stderr)
	}

	activity := ui.StartActivity(a.stderr, "Scanning "+sf.target)
	defer activity.Stop()

	eng, _, err := engine.FromConfig(ctx, cfg, logger, engine.WithOnFinding(func(f finding.Finding) {
		if !cf.quiet {
			activity.Printf("%s\n", ui.FormatFinding(f))
		}
	}))
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	defer eng.Close()

	r, err := eng.ScanURL(ctx, engine.ScanRequest{Target: sf.target, AuthToken: sf.token})
	activity.Stop()
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	return a.finishScan(r, &sf, cfg.FailOnPolicy)
}

// finishScan prints or writes r and applies the fail-on policy.
func (a *app) finishScan(r *report.Report, sf *scanFlags, policyPath string) int {
	toStdout, err := a.write(&sf.out, r)
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	if !toStdout {
		ui.PrintReport(a.stdout, r, ui.SummaryOptions{MaxFindings: sf.maxFindings, ShowFixes: sf.showFixes})
	}
	return a.gate(policyPath, r)
}

type rawFlags struct {
	scanFlags
	method  string
	body    string
	headers headerList
}

// headerList collects repeated -H "Name: value" flags for the raw
// request itself.
type headerList map[string]string

func (h headerList) String() string { return fmt.Sprint(map[string]string(h)) }

func (h headerList) Set(s string) error {
	name, value, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header must be \"Name: value\", got %q", s)
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(value)
	return nil
}

func (a *app) runRaw(ctx context.Context, args []string) int {
	rf := rawFlags{headers: headerList{}}
	var policyPath string
	cfg, cf, fs, err := a.loadConfig("raw", args, false, func(fs *flag.FlagSet) {
		rf.scanFlags.bind(fs)
		fs.StringVar(&rf.method, "X", http.MethodGet, "HTTP method")
		fs.StringVar(&rf.body, "d", "", "Request body")
		fs.Var(rf.headers, "H", "Request header \"Name: value\" (repeatable)")
		fs.StringVar(&policyPath, "policy", "", "Fail-on policy file")
	})
	if err != nil {
		return exitFor(err)
	}
	if policyPath != "" {
		cfg.FailOnPolicy = policyPath
	}
	if rf.target == "" && fs.NArg() > 0 {
		rf.target = fs.Arg(0)
	}
	if rf.target == "" {
		fmt.Fprintln(a.stderr, "error: request URL is required (vulnprobe raw 'https://app.example.com/item?id=1')")
		return exitUsage
	}

	logger := newLogger(cfg.Log, a.stderr)
	if !cf.quiet {
		ui.PrintBanner(a.stderr)
		ui.PrintOption(a.stderr, "Request", strings.ToUpper(rf.method)+" "+rf.target)
		fmt.Fprintln(a.stderr)
	}

	eng, _, err := engine.FromConfig(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	defer eng.Close()

	if rf.token != "" {
		rf.headers["Authorization"] = "Bearer " + rf.token
	}
	r, err := eng.ScanRaw(ctx, idor.RawRequest{
		Method:  strings.ToUpper(rf.method),
		URL:     rf.target,
		Headers: rf.headers,
		Body:    rf.body,
	})
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	return a.finishScan(r, &rf.scanFlags, cfg.FailOnPolicy)
}
