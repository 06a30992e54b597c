package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/waftester/vulnprobe/pkg/httpclient"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func siteServer(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/":        `<a href="/a">a</a><a href="https://elsewhere.test/x">ext</a><script src="/app.js"></script><a href="mailto:x@y">m</a>`,
		"/a":       `<a href="/a/b#top">b</a><form action="/login" method="post"></form>`,
		"/a/b":     `<a href="/a/b/c">c</a>`,
		"/a/b/c":   `<a href="/a/b/c/d">d</a>`,
		"/app.js":  `fetch("/api/users?id=1")`,
		"/login":   `ok`,
		"/a/b/c/d": `deep`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/app.js" {
			w.Header().Set("Content-Type", "application/javascript")
		} else {
			w.Header().Set("Content-Type", "text/html")
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func staticFor(srv *httptest.Server, depth int) *Static {
	return NewStatic(Config{
		MaxDepth: depth,
		Client:   httpclient.Wrap(srv.Client()),
		Logger:   quiet,
	})
}

func TestStatic_CrawlRespectsDepthAndHost(t *testing.T) {
	srv := siteServer(t)

	got, err := staticFor(srv, 2).Crawl(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	want := []string{
		srv.URL + "/",
		srv.URL + "/a",
		srv.URL + "/a/b",
		srv.URL + "/app.js",
		srv.URL + "/login",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Crawl =\n%v\nwant\n%v", got, want)
	}
}

func TestStatic_MaxPages(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		for i := 0; i < 10; i++ {
			fmt.Fprintf(w, `<a href="/p%d-%d">x</a>`, n, i)
		}
	}))
	defer srv.Close()

	c := NewStatic(Config{MaxDepth: 5, MaxPages: 3, Client: httpclient.Wrap(srv.Client()), Logger: quiet})
	if _, err := c.Crawl(context.Background(), srv.URL); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("fetched %d pages, want 3", n)
	}
}

func TestStatic_InvalidAndUnreachable(t *testing.T) {
	c := NewStatic(Config{Logger: quiet})
	if _, err := c.Crawl(context.Background(), "not a url"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("err = %v, want ErrInvalidURL", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	u := srv.URL
	srv.Close()
	if _, err := c.Crawl(context.Background(), u); err == nil {
		t.Error("expected error for unreachable start page")
	}
}

func TestExtractLinks(t *testing.T) {
	base, _ := url.Parse("https://app.test/dir/page")
	body := []byte(`<a href="rel">r</a><a href="#frag">f</a><a href="javascript:void(0)">j</a>
		<iframe src="/frame"></iframe><link rel="stylesheet" href="/s.css"><img src="/i.png">`)
	got := ExtractLinks(base, body)
	want := []string{"https://app.test/dir/rel", "https://app.test/frame", "https://app.test/s.css"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractLinks = %v, want %v", got, want)
	}
}

func TestRecorder_SameHostDedup(t *testing.T) {
	r := newRecorder("app.test:8443")
	for _, u := range []string{
		"https://app.test:8443/api/a#x",
		"https://app.test:8443/api/a",
		"https://cdn.test/lib.js",
		"data:image/png;base64,AAAA",
		"https://app.test:8443/api/b",
	} {
		r.add(u)
	}
	want := []string{"https://app.test:8443/api/a", "https://app.test:8443/api/b"}
	if got := r.urls(); !reflect.DeepEqual(got, want) {
		t.Errorf("urls = %v, want %v", got, want)
	}
}

func TestHeadless_MissingBrowser(t *testing.T) {
	h := NewHeadless(Config{ChromePath: "/nonexistent/chrome-binary", Logger: quiet})
	_, err := h.Crawl(context.Background(), "http://127.0.0.1:1/")
	if !errors.Is(err, ErrBrowser) {
		t.Errorf("err = %v, want ErrBrowser", err)
	}
}

type stubCrawler struct {
	urls []string
	err  error
}

func (s stubCrawler) Crawl(context.Context, string) ([]string, error) { return s.urls, s.err }

func TestFallback(t *testing.T) {
	f := &fallback{
		primary:   stubCrawler{err: ErrBrowser},
		secondary: stubCrawler{urls: []string{"https://app.test/"}},
		logger:    quiet,
	}
	got, err := f.Crawl(context.Background(), "https://app.test/")
	if err != nil || len(got) != 1 {
		t.Errorf("fallback = %v, %v", got, err)
	}

	f.primary = stubCrawler{urls: []string{"https://app.test/api"}}
	got, _ = f.Crawl(context.Background(), "https://app.test/")
	if got[0] != "https://app.test/api" {
		t.Errorf("primary result not used: %v", got)
	}
}

func TestNew_Modes(t *testing.T) {
	if _, ok := New(Config{Mode: ModeStatic}).(*Static); !ok {
		t.Error("static mode should build *Static")
	}
	if _, ok := New(Config{Mode: ModeHeadless}).(*Headless); !ok {
		t.Error("headless mode should build *Headless")
	}
	if _, ok := New(Config{}).(*fallback); !ok {
		t.Error("default mode should build the fallback crawler")
	}
}
