// Command vulnprobe scans web applications for common vulnerabilities and
// serves scans over HTTP and MCP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/ui"
)

const (
	exitOK     = defaults.ExitSuccess
	exitFailed = defaults.ExitPolicyFailed
	exitUsage  = defaults.ExitUserError
)

// app carries the process streams and environment so commands can run
// under test.
type app struct {
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{stdout: os.Stdout, stderr: os.Stderr, lookupEnv: os.LookupEnv}
	code := a.run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.printUsage()
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "scan":
		return a.runScan(ctx, rest)
	case "raw":
		return a.runRaw(ctx, rest)
	case "serve", "server", "api":
		return a.runServe(ctx, rest)
	case "mcp":
		return a.runMCP(ctx, rest)
	case "report":
		return a.runReport(ctx, rest)
	case "version", "-v", "--version":
		fmt.Fprintf(a.stdout, "%s %s\n", defaults.ToolName, defaults.Version)
		return exitOK
	case "help", "-h", "--help":
		a.printUsage()
		return exitOK
	default:
		fmt.Fprintf(a.stderr, "unknown command %q\n\n", cmd)
		a.printUsage()
		return exitUsage
	}
}

func (a *app) printUsage() {
	w := a.stderr
	ui.PrintBanner(w)
	fmt.Fprintln(w, ui.SectionStyle.Render("COMMANDS"))
	fmt.Fprintln(w)
	for _, c := range []struct{ name, desc string }{
		{"scan  ", "Scan a URL: headers, auth bypass, JWT, IDOR"},
		{"raw   ", "IDOR analysis of one explicit request"},
		{"serve ", "Run the HTTP API"},
		{"mcp   ", "Run the MCP server (stdio or HTTP)"},
		{"report", "Render a stored report by scan ID"},
		{"version", "Print the version"},
	} {
		fmt.Fprintf(w, "  %s  %s\n", ui.ValueStyle.Render(c.name), c.desc)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.SectionStyle.Render("EXAMPLES"))
	fmt.Fprintln(w)
	for _, ex := range []string{
		"vulnprobe scan https://staging.example.com",
		"vulnprobe scan -type quick -o report.pdf https://example.com",
		"vulnprobe scan -type api-only -token $TOKEN -policy ci-policy.yaml https://api.example.com/users?id=4",
		"vulnprobe raw -X GET -H 'Cookie: s=1' 'https://app.example.com/invoice?id=1042'",
		"vulnprobe serve -addr :8000 -metrics",
		"vulnprobe mcp -http :8080",
	} {
		fmt.Fprintf(w, "  %s\n", ui.HintStyle.Render(ex))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run %s for command flags.\n", ui.ValueStyle.Render("vulnprobe <command> -h"))
}
