package scanner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/idor"
)

// noneToken is {"alg":"none","typ":"JWT"}.{"sub":"1"}.
const noneToken = "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiIxIn0."

func setHardenedHeaders(w http.ResponseWriter) {
	w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")
}

func hardenedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setHardenedHeaders(w)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("welcome"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type staticCrawler struct {
	urls []string
	err  error
}

func (c staticCrawler) Crawl(context.Context, string) ([]string, error) {
	return c.urls, c.err
}

func TestValidateTarget(t *testing.T) {
	t.Parallel()
	for _, target := range []string{"", "   ", "ftp://example.com", "example.com", "http://", "://bad"} {
		err := ValidateTarget(target)
		assert.ErrorIs(t, err, ErrInvalidTarget, "target %q", target)
	}
	assert.NoError(t, ValidateTarget("https://example.com/app"))
}

func TestNew_RejectsInvalidTarget(t *testing.T) {
	t.Parallel()
	_, err := New(Options{Target: "not a url"})
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestParseScanType(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]ScanType{"": ScanFull, "FULL": ScanFull, "quick": ScanQuick, " api-only ": ScanAPIOnly} {
		got, err := ParseScanType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", in)
	}
	_, err := ParseScanType("deep")
	assert.ErrorIs(t, err, ErrInvalidScanType)
}

func TestScan_VulnerableTargetIsCritical(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<html><script>var token = "` + noneToken + `";</script></html>`))
		case "/admin":
			_, _ = w.Write([]byte("admin console"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s, err := New(Options{Target: srv.URL, ScanType: ScanQuick})
	require.NoError(t, err)
	defer s.Close()

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, finding.Critical, rep.Summary.RiskLevel)
	assert.Equal(t, "quick", rep.ScanType)
	assert.NotEmpty(t, rep.ScanID)
	assert.Empty(t, rep.ProbeErrors)

	kinds := map[finding.Kind]int{}
	for _, f := range rep.Findings {
		kinds[f.Kind]++
	}
	assert.Equal(t, 5, kinds[finding.KindMissingHeader])
	assert.Equal(t, 1, kinds[finding.KindBrokenAuth])
	assert.Equal(t, 1, kinds[finding.KindJWTNoneAlg])

	require.NotNil(t, rep.SecurityHeaders)
	assert.Zero(t, rep.SecurityHeaders.OverallScore)
}

func TestScan_HardenedTargetIsClean(t *testing.T) {
	t.Parallel()
	srv := hardenedServer(t)

	s, err := New(Options{Target: srv.URL, ScanType: ScanQuick})
	require.NoError(t, err)
	defer s.Close()

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Findings)
	assert.Equal(t, 0, rep.Summary.SeverityScore)
	assert.Equal(t, finding.Low, rep.Summary.RiskLevel)
	assert.InDelta(t, 1.0, rep.SecurityHeaders.OverallScore, 1e-9)
}

func TestScan_AuthTokenStrippedForMissingAuthProbe(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	seen := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path] = r.Header.Get("Authorization")
		mu.Unlock()
		setHardenedHeaders(w)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s, err := New(Options{Target: srv.URL, ScanType: ScanQuick, AuthToken: "secret"})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Scan(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer secret", seen["/"])
	assert.Empty(t, seen["/admin"])
}

func TestScan_UnreachableTargetIsFailSoft(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	s, err := New(Options{Target: target, ScanType: ScanQuick})
	require.NoError(t, err)
	defer s.Close()

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rep.Findings)
	for _, f := range rep.Findings {
		assert.Equal(t, finding.Info, f.Severity)
	}
	assert.Equal(t, finding.Low, rep.Summary.RiskLevel)
}

func TestScan_FullCrawlFailureIsIsolated(t *testing.T) {
	t.Parallel()
	srv := hardenedServer(t)

	s, err := New(Options{
		Target:  srv.URL,
		Crawler: staticCrawler{err: errors.New("browser exploded")},
	})
	require.NoError(t, err)
	defer s.Close()

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.ProbeErrors, 1)
	assert.Equal(t, "crawl", rep.ProbeErrors[0].Probe)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, finding.KindProbeError, rep.Findings[0].Kind)
	assert.InDelta(t, 1.0, rep.SecurityHeaders.OverallScore, 1e-9)
}

func idorServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		setHardenedHeaders(w)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<a href="/profile?id=1">me</a>`))
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		setHardenedHeaders(w)
		_, _ = w.Write([]byte("private profile record for user number " + r.URL.Query().Get("id") + "\n" + strings.Repeat("lorem ipsum ", 12)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestScan_FullRunsIDOROnCrawledEndpoints(t *testing.T) {
	t.Parallel()
	srv := idorServer(t)

	s, err := New(Options{
		Target:  srv.URL,
		Crawler: staticCrawler{urls: []string{srv.URL + "/"}},
	})
	require.NoError(t, err)
	defer s.Close()

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/"}, rep.Endpoints)

	var idorFindings int
	for _, f := range rep.Findings {
		if f.Kind == finding.KindIDOR {
			idorFindings++
		}
	}
	assert.Equal(t, 1, idorFindings)
}

func TestScan_QuickSkipsIDOR(t *testing.T) {
	t.Parallel()
	srv := idorServer(t)

	s, err := New(Options{Target: srv.URL, ScanType: ScanQuick, Crawler: staticCrawler{urls: []string{srv.URL + "/"}}})
	require.NoError(t, err)
	defer s.Close()

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Endpoints)
	for _, f := range rep.Findings {
		assert.NotEqual(t, finding.KindIDOR, f.Kind)
	}
}

func TestScan_APIOnlyTestsTargetItself(t *testing.T) {
	t.Parallel()
	srv := idorServer(t)

	s, err := New(Options{Target: srv.URL + "/", ScanType: ScanAPIOnly})
	require.NoError(t, err)
	defer s.Close()

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/"}, rep.Endpoints)

	var found bool
	for _, f := range rep.Findings {
		found = found || f.Kind == finding.KindIDOR
	}
	assert.True(t, found, "expected IDOR finding on the target page")
}

func TestScan_OnFindingCallback(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var streamed int
	s, err := New(Options{Target: srv.URL, ScanType: ScanQuick, OnFinding: func(finding.Finding) {
		mu.Lock()
		streamed++
		mu.Unlock()
	}})
	require.NoError(t, err)
	defer s.Close()

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, len(rep.Findings), streamed)
}

func TestScanRaw(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("invoice " + r.URL.Query().Get("id")))
	}))
	defer srv.Close()

	s, err := New(Options{Target: srv.URL})
	require.NoError(t, err)
	defer s.Close()

	rep, err := s.ScanRaw(context.Background(), idor.RawRequest{Method: http.MethodGet, URL: srv.URL + "/invoice?id=7"})
	require.NoError(t, err)
	assert.Equal(t, "raw", rep.ScanType)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, finding.KindIDOR, rep.Findings[0].Kind)

	_, err = s.ScanRaw(context.Background(), idor.RawRequest{URL: "nope"})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}
