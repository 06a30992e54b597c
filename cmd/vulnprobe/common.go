package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/waftester/vulnprobe/pkg/config"
	"github.com/waftester/vulnprobe/pkg/output/policy"
	"github.com/waftester/vulnprobe/pkg/output/writers"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/ui"
)

// errUsage marks flag errors; the FlagSet has already printed them.
var errUsage = errors.New("usage")

// commonFlags are accepted by every command that builds an engine.
type commonFlags struct {
	configPath string
	noColor    bool
	quiet      bool
}

// configPathFromArgs finds -config before flag parsing so the file can
// supply flag defaults.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// loadConfig reads the config file, then the environment, then registers
// flags that override both. bind adds command-specific flags.
func (a *app) loadConfig(name string, args []string, scanFlags bool, bind func(*flag.FlagSet)) (*config.Config, *commonFlags, *flag.FlagSet, error) {
	cf := &commonFlags{configPath: configPathFromArgs(args)}
	if cf.configPath == "" {
		cf.configPath, _ = a.lookupEnv(config.EnvConfigFile)
	}

	cfg := config.Default()
	if cf.configPath != "" {
		loaded, err := config.Load(cf.configPath)
		if err != nil {
			fmt.Fprintf(a.stderr, "error: %v\n", err)
			return nil, nil, nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(a.lookupEnv)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	// === CONFIG ===
	fs.StringVar(&cf.configPath, "config", cf.configPath, "YAML config file (env "+config.EnvConfigFile+")")
	fs.BoolVar(&cf.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&cf.quiet, "q", false, "Quiet: no banner or progress")
	if scanFlags {
		cfg.BindScanFlags(fs)
	}
	cfg.BindLogFlags(fs)
	if bind != nil {
		bind(fs)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, nil, flag.ErrHelp
		}
		return nil, nil, nil, errUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return nil, nil, nil, err
	}

	_, noColorEnv := a.lookupEnv("NO_COLOR")
	ui.ConfigureColor(a.stderr, cf.noColor || noColorEnv)
	ui.SetSilent(cf.quiet)
	return cfg, cf, fs, nil
}

// exitFor maps a loadConfig error to an exit code.
func exitFor(err error) int {
	switch {
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	default:
		return exitFailed
	}
}

func newLogger(c config.Log, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// outputFlags select a file rendering of the report.
type outputFlags struct {
	path   string
	format string
}

func (o *outputFlags) bind(fs *flag.FlagSet) {
	// === OUTPUT ===
	fs.StringVar(&o.path, "o", "", "Write the report to this file")
	fs.StringVar(&o.format, "format", "", "Report format: json, pdf, markdown, text (default from -o extension)")
}

// resolve returns the format to render, inferring it from the output
// extension when -format is unset. ok is false when nothing was requested.
func (o *outputFlags) resolve() (f writers.Format, ok bool, err error) {
	name := o.format
	if name == "" && o.path != "" {
		switch strings.ToLower(filepath.Ext(o.path)) {
		case ".pdf":
			name = "pdf"
		case ".md", ".markdown":
			name = "markdown"
		case ".txt":
			name = "text"
		default:
			name = "json"
		}
	}
	if name == "" {
		return "", false, nil
	}
	f, err = writers.ParseFormat(name)
	return f, err == nil, err
}

// write renders r to the -o file, or to stdout when only -format is set.
func (a *app) write(o *outputFlags, r *report.Report) (bool, error) {
	f, ok, err := o.resolve()
	if err != nil || !ok {
		return false, err
	}
	if o.path == "" {
		if f == writers.FormatPDF {
			return false, fmt.Errorf("pdf output needs -o")
		}
		return true, writers.Render(a.stdout, f, r)
	}

	file, err := os.Create(o.path)
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", o.path, err)
	}
	if err := writers.Render(file, f, r); err != nil {
		_ = file.Close()
		return false, err
	}
	if err := file.Close(); err != nil {
		return false, err
	}
	fmt.Fprintf(a.stderr, "%s report written to %s\n", f, o.path)
	return false, nil
}

// gate evaluates the fail-on policy. It returns exitFailed when a rule
// fails and exitOK when there is no policy.
func (a *app) gate(path string, r *report.Report) int {
	if path == "" {
		return exitOK
	}
	p, err := policy.LoadPolicy(path)
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitFailed
	}
	res := p.Evaluate(r)
	if res.Pass {
		fmt.Fprintf(a.stderr, "%s policy passed\n", ui.Icon("✓", "+"))
		return exitOK
	}
	fmt.Fprintf(a.stderr, "%s policy %s failed:\n", ui.Icon("✗", "x"), res.PolicyName)
	for _, msg := range res.Failures {
		fmt.Fprintf(a.stderr, "  - %s\n", msg)
	}
	return res.ExitCode
}
