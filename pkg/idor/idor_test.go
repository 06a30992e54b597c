package idor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/httpclient"
)

func newDetector(srv *httptest.Server) *Detector {
	cfg := DefaultConfig()
	cfg.Client = httpclient.Wrap(srv.Client())
	return NewDetector(cfg)
}

// profileServer serves an index linking to profiles and a profile page per id.
// render controls each profile body.
func profileServer(t *testing.T, render func(id string) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			io.WriteString(w, `<html><body>
				<a href="/profile?id=42">me</a>
				<a href="/about">about</a>
			</body></html>`)
		case "/profile":
			status, body := render(r.URL.Query().Get("id"))
			w.WriteHeader(status)
			io.WriteString(w, body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func longBody(id string) string {
	return fmt.Sprintf("<html>profile of user %s %s</html>", id, strings.Repeat("x", 120))
}

func TestScanEndpoint_DifferentBodiesReported(t *testing.T) {
	srv := profileServer(t, func(id string) (int, string) { return http.StatusOK, longBody(id) })

	got, err := newDetector(srv).ScanEndpoint(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, got, 1)

	f := got[0]
	assert.Equal(t, finding.KindIDOR, f.Kind)
	assert.Equal(t, finding.High, f.Severity)
	assert.Equal(t, endpointDescription, f.Description)
	assert.Equal(t, srv.URL+"/profile?id=42", f.Evidence.OriginalURL)
	assert.Equal(t, srv.URL+"/profile?id=43", f.Evidence.ModifiedURL)
	assert.Equal(t, 200, f.Evidence.OriginalStatus)
	assert.Equal(t, 200, f.Evidence.ModifiedStatus)
	assert.NotEqual(t, f.Evidence.OriginalHash, f.Evidence.ModifiedHash)
	assert.True(t, strings.HasPrefix(f.Evidence.OriginalHash, "mmh3:"))
	assert.Equal(t, Recommendations, f.FixRecommendations)
}

func TestScanEndpoint_IdenticalBodiesNotReported(t *testing.T) {
	srv := profileServer(t, func(string) (int, string) { return http.StatusOK, longBody("same") })

	got, err := newDetector(srv).ScanEndpoint(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanEndpoint_ShortBodiesNotReported(t *testing.T) {
	srv := profileServer(t, func(id string) (int, string) { return http.StatusOK, "user " + id })

	got, err := newDetector(srv).ScanEndpoint(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanEndpoint_ModifiedForbiddenNotReported(t *testing.T) {
	srv := profileServer(t, func(id string) (int, string) {
		if id == "43" {
			return http.StatusForbidden, longBody("denied")
		}
		return http.StatusOK, longBody(id)
	})

	got, err := newDetector(srv).ScanEndpoint(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanEndpoint_RedirectNotFollowed(t *testing.T) {
	srv := profileServer(t, func(id string) (int, string) {
		if id == "43" {
			return http.StatusFound, ""
		}
		return http.StatusOK, longBody(id)
	})

	got, err := newDetector(srv).ScanEndpoint(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanEndpoint_AtMostThreeLinks(t *testing.T) {
	var profileHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			for i := 1; i <= 6; i++ {
				fmt.Fprintf(w, `<a href="/item?id=%d">i</a>`, i*10)
			}
			return
		}
		profileHits.Add(1)
		io.WriteString(w, longBody(r.URL.Query().Get("id")))
	}))
	defer srv.Close()

	got, err := newDetector(srv).ScanEndpoint(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, int32(6), profileHits.Load(), "3 links x (original + modified)")
}

func TestScanEndpoint_UnreachableReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	u := srv.URL
	srv.Close()

	_, err := NewDetector(DefaultConfig()).ScanEndpoint(context.Background(), u)
	require.Error(t, err)
	assert.True(t, httpclient.IsNetworkError(err))
}

func TestScanEndpoints_SkipsFailures(t *testing.T) {
	srv := profileServer(t, func(id string) (int, string) { return http.StatusOK, longBody(id) })

	got := newDetector(srv).ScanEndpoints(context.Background(), []string{"http://127.0.0.1:1/", srv.URL + "/"})
	assert.Len(t, got, 1)
}

func TestScanRaw(t *testing.T) {
	var lastBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		lastBody.Store(string(b))
		if r.URL.Query().Get("user_id") == "8" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()
	d := newDetector(srv)

	t.Run("both 200", func(t *testing.T) {
		got, err := d.ScanRaw(context.Background(), RawRequest{
			Method: "POST", URL: srv.URL + "/api/orders?id=5", Body: `{"x":1}`,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, rawDescription, got[0].Description)
		assert.Equal(t, rawFix, got[0].Fix)
		assert.Equal(t, srv.URL+"/api/orders?id=6", got[0].Evidence.ModifiedURL)
		assert.Equal(t, `{"x":1}`, lastBody.Load())
	})

	t.Run("GET drops body", func(t *testing.T) {
		_, err := d.ScanRaw(context.Background(), RawRequest{
			Method: "get", URL: srv.URL + "/x?id=1", Body: "ignored",
		})
		require.NoError(t, err)
		assert.Equal(t, "", lastBody.Load())
	})

	t.Run("modified denied", func(t *testing.T) {
		got, err := d.ScanRaw(context.Background(), RawRequest{URL: srv.URL + "/x?user_id=7"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no numeric id", func(t *testing.T) {
		got, err := d.ScanRaw(context.Background(), RawRequest{URL: srv.URL + "/x?id=abc"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty url", func(t *testing.T) {
		_, err := d.ScanRaw(context.Background(), RawRequest{})
		assert.ErrorIs(t, err, ErrEmptyURL)
	})
}
