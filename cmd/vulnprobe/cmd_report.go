package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/waftester/vulnprobe/pkg/engine"
	"github.com/waftester/vulnprobe/pkg/jsonutil"
	"github.com/waftester/vulnprobe/pkg/output/writers"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/store"
	"github.com/waftester/vulnprobe/pkg/ui"
)

// runReport re-renders a report, either from the configured store by scan
// ID or from a JSON report file (-in).
func (a *app) runReport(ctx context.Context, args []string) int {
	var out outputFlags
	var in, policyPath string
	cfg, cf, fs, err := a.loadConfig("report", args, false, func(fs *flag.FlagSet) {
		fs.StringVar(&in, "in", "", "Read a JSON report file instead of the store")
		fs.StringVar(&policyPath, "policy", "", "Fail-on policy file")
		out.bind(fs)
	})
	if err != nil {
		return exitFor(err)
	}
	if policyPath == "" {
		policyPath = cfg.FailOnPolicy
	}

	var data []byte
	switch {
	case in != "":
		data, err = os.ReadFile(in)
	case fs.NArg() == 1:
		var eng *engine.Engine
		eng, _, err = engine.FromConfig(ctx, cfg, newLogger(cfg.Log, a.stderr))
		if err != nil {
			break
		}
		defer eng.Close()
		data, err = eng.Load(ctx, fs.Arg(0), writers.FormatJSON)
		if errors.Is(err, store.ErrNotFound) {
			err = fmt.Errorf("no stored report for scan %s", fs.Arg(0))
		}
	default:
		fmt.Fprintln(a.stderr, "usage: vulnprobe report [-format f] [-o file] <scan-id> | -in report.json")
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}

	var r report.Report
	if err := jsonutil.Unmarshal(data, &r); err != nil {
		fmt.Fprintf(a.stderr, "error: decoding report: %v\n", err)
		return exitFailed
	}

	toStdout, err := a.write(&out, &r)
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	if !toStdout && out.path == "" {
		ui.PrintReport(a.stdout, &r, ui.SummaryOptions{ShowFixes: !cf.quiet})
	}
	return a.gate(policyPath, &r)
}
