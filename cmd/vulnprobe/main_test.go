package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/vulnprobe/pkg/config"
	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/jsonutil"
	"github.com/waftester/vulnprobe/pkg/output/writers"
)

type testApp struct {
	*app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	env := map[string]string{
		config.EnvReportsDir: t.TempDir(),
		"NO_COLOR":           "1",
	}
	var stdout, stderr bytes.Buffer
	return &testApp{
		app: &app{
			stdout: &stdout,
			stderr: &stderr,
			lookupEnv: func(k string) (string, bool) {
				v, ok := env[k]
				return v, ok
			},
		},
		stdout: &stdout,
		stderr: &stderr,
	}
}

func vulnerableServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte("home"))
		case "/admin":
			_, _ = w.Write([]byte("admin console"))
		case "/invoice":
			_, _ = w.Write([]byte("invoice " + r.URL.Query().Get("id")))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type jsonReport struct {
	ScanID   string `json:"scan_id"`
	ScanType string `json:"scan_type"`
	Summary  struct {
		RiskLevel finding.Severity `json:"risk_level"`
	} `json:"summary"`
}

func TestRun_Dispatch(t *testing.T) {
	a := newTestApp(t)
	assert.Equal(t, exitOK, a.run(context.Background(), []string{"version"}))
	assert.Equal(t, defaults.ToolName+" "+defaults.Version+"\n", a.stdout.String())

	assert.Equal(t, exitUsage, a.run(context.Background(), nil))
	assert.Equal(t, exitOK, a.run(context.Background(), []string{"help"}))
	assert.Contains(t, a.stderr.String(), "COMMANDS")

	a.stderr.Reset()
	assert.Equal(t, exitUsage, a.run(context.Background(), []string{"explode"}))
	assert.Contains(t, a.stderr.String(), `unknown command "explode"`)
}

func TestScan_JSONToStdout(t *testing.T) {
	srv := vulnerableServer(t)
	a := newTestApp(t)

	code := a.run(context.Background(), []string{"scan", "-q", "-type", "quick", "-format", "json", srv.URL})
	require.Equal(t, exitOK, code, a.stderr.String())

	var r jsonReport
	require.NoError(t, jsonutil.Unmarshal(a.stdout.Bytes(), &r))
	assert.NotEmpty(t, r.ScanID)
	assert.Equal(t, "quick", r.ScanType)
	assert.Equal(t, finding.Critical, r.Summary.RiskLevel)

	// The stored copy renders through the report command.
	b := newTestApp(t)
	b.lookupEnv = a.lookupEnv
	code = b.run(context.Background(), []string{"report", "-q", "-format", "text", r.ScanID})
	require.Equal(t, exitOK, code, b.stderr.String())
	assert.Contains(t, b.stdout.String(), r.ScanID)
}

func TestScan_ConsoleSummaryAndFileOutput(t *testing.T) {
	srv := vulnerableServer(t)
	a := newTestApp(t)
	out := filepath.Join(t.TempDir(), "report.md")

	code := a.run(context.Background(), []string{"scan", "-type=quick", "-o", out, "-u", srv.URL})
	require.Equal(t, exitOK, code, a.stderr.String())

	assert.Contains(t, a.stdout.String(), "CRITICAL")
	assert.Contains(t, a.stderr.String(), "report written to "+out)
	assert.Contains(t, a.stderr.String(), "Scanning "+srv.URL)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), srv.URL)
}

func TestScan_PolicyGate(t *testing.T) {
	srv := vulnerableServer(t)
	dir := t.TempDir()
	strict := filepath.Join(dir, "strict.yaml")
	require.NoError(t, os.WriteFile(strict, []byte("name: strict\nfail_on:\n  risk_level: high\n"), 0o600))
	lenient := filepath.Join(dir, "lenient.yaml")
	require.NoError(t, os.WriteFile(lenient, []byte("name: lenient\nignore:\n  kinds: [missing_security_header, broken_auth]\nfail_on:\n  risk_level: high\n"), 0o600))

	a := newTestApp(t)
	code := a.run(context.Background(), []string{"scan", "-q", "-type", "quick", "-policy", strict, srv.URL})
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, a.stderr.String(), "policy strict failed")

	a = newTestApp(t)
	code = a.run(context.Background(), []string{"scan", "-q", "-type", "quick", "-policy", lenient, srv.URL})
	assert.Equal(t, exitOK, code, a.stderr.String())
	assert.Contains(t, a.stderr.String(), "policy passed")
}

func TestScan_UsageErrors(t *testing.T) {
	a := newTestApp(t)
	assert.Equal(t, exitUsage, a.run(context.Background(), []string{"scan", "-q"}))
	assert.Contains(t, a.stderr.String(), "target URL is required")

	assert.Equal(t, exitUsage, a.run(context.Background(), []string{"scan", "-bogus"}))
	assert.Equal(t, exitOK, a.run(context.Background(), []string{"scan", "-h"}))
	assert.Equal(t, exitFailed, a.run(context.Background(), []string{"scan", "-q", "-type", "deep", "https://example.com"}))
	assert.Equal(t, exitFailed, a.run(context.Background(), []string{"scan", "-q", "-config", "/does/not/exist.yaml", "https://example.com"}))
}

func TestScan_ConfigFile(t *testing.T) {
	srv := vulnerableServer(t)
	cfgPath := filepath.Join(t.TempDir(), "vulnprobe.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("scan:\n  scan_type: quick\n  timeout: 3s\n"), 0o600))

	a := newTestApp(t)
	code := a.run(context.Background(), []string{"scan", "-q", "-config=" + cfgPath, "-format", "json", srv.URL})
	require.Equal(t, exitOK, code, a.stderr.String())

	var r jsonReport
	require.NoError(t, jsonutil.Unmarshal(a.stdout.Bytes(), &r))
	assert.Equal(t, "quick", r.ScanType)
}

func TestRaw(t *testing.T) {
	srv := vulnerableServer(t)
	a := newTestApp(t)

	code := a.run(context.Background(), []string{"raw", "-q", "-X", "get", "-H", "Cookie: s=1", "-format", "json", srv.URL + "/invoice?id=7"})
	require.Equal(t, exitOK, code, a.stderr.String())

	var r jsonReport
	require.NoError(t, jsonutil.Unmarshal(a.stdout.Bytes(), &r))
	assert.Equal(t, "raw", r.ScanType)

	a = newTestApp(t)
	assert.Equal(t, exitUsage, a.run(context.Background(), []string{"raw", "-q"}))
	assert.Equal(t, exitUsage, a.run(context.Background(), []string{"raw", "-q", "-H", "no-colon", "https://example.com"}))
}

func TestReport_FromFile(t *testing.T) {
	srv := vulnerableServer(t)
	a := newTestApp(t)
	jsonPath := filepath.Join(t.TempDir(), "scan.json")
	require.Equal(t, exitOK, a.run(context.Background(), []string{"scan", "-q", "-type", "quick", "-o", jsonPath, srv.URL}))

	b := newTestApp(t)
	code := b.run(context.Background(), []string{"report", "-q", "-in", jsonPath})
	require.Equal(t, exitOK, code, b.stderr.String())
	assert.Contains(t, b.stdout.String(), "CRITICAL")

	pdfPath := filepath.Join(t.TempDir(), "scan.pdf")
	b = newTestApp(t)
	require.Equal(t, exitOK, b.run(context.Background(), []string{"report", "-q", "-in", jsonPath, "-o", pdfPath}))
	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	b = newTestApp(t)
	assert.Equal(t, exitUsage, b.run(context.Background(), []string{"report", "-q"}))
	assert.Equal(t, exitFailed, b.run(context.Background(), []string{"report", "-q", "no-such-scan"}))
}

func TestConfigPathFromArgs(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"-config", "a.yaml"}, "a.yaml"},
		{[]string{"--config=b.yaml", "https://x"}, "b.yaml"},
		{[]string{"-type", "quick", "-config"}, ""},
		{[]string{"config", "c.yaml"}, ""},
	} {
		assert.Equal(t, tc.want, configPathFromArgs(tc.args), "%v", tc.args)
	}
}

func TestOutputFlagsResolve(t *testing.T) {
	for _, tc := range []struct {
		o    outputFlags
		want writers.Format
		ok   bool
	}{
		{outputFlags{}, "", false},
		{outputFlags{path: "r.pdf"}, writers.FormatPDF, true},
		{outputFlags{path: "r.MD"}, writers.FormatMarkdown, true},
		{outputFlags{path: "r.txt"}, writers.FormatText, true},
		{outputFlags{path: "r.out"}, writers.FormatJSON, true},
		{outputFlags{path: "r.pdf", format: "json"}, writers.FormatJSON, true},
		{outputFlags{format: "markdown"}, writers.FormatMarkdown, true},
	} {
		got, ok, err := tc.o.resolve()
		require.NoError(t, err)
		assert.Equal(t, tc.ok, ok)
		assert.Equal(t, tc.want, got)
	}
	_, _, err := (&outputFlags{format: "html"}).resolve()
	assert.ErrorIs(t, err, writers.ErrUnknownFormat)
}
