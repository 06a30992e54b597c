package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/waftester/vulnprobe/pkg/httpclient"
)

// linkAttrs maps the elements followed by the static crawl to the attribute
// holding their URL.
var linkAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"script": "src",
	"form":   "action",
	"iframe": "src",
}

// Static crawls by fetching pages and following HTML links breadth first.
type Static struct {
	cfg Config
}

// NewStatic creates a static crawler.
func NewStatic(cfg Config) *Static {
	cfg.applyDefaults()
	return &Static{cfg: cfg}
}

type queued struct {
	url   string
	depth int
}

// Crawl visits startURL and same-host links up to MaxDepth, returning every
// same-host URL seen, including those not fetched.
func (s *Static) Crawl(ctx context.Context, startURL string) ([]string, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, startURL)
	}
	start.Fragment = ""

	seen := map[string]bool{start.String(): true}
	queue := []queued{{url: start.String(), depth: 0}}
	fetched := 0
	var fetchErr error

	for len(queue) > 0 && fetched < s.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			break
		}
		item := queue[0]
		queue = queue[1:]

		resp, err := s.cfg.Client.Do(ctx, httpclient.Request{
			Method: http.MethodGet,
			URL:    item.url,
			Header: http.Header{"User-Agent": {s.cfg.UserAgent}},
		})
		fetched++
		if err != nil {
			if item.depth == 0 {
				fetchErr = err
			}
			s.cfg.Logger.Debug("crawl fetch failed",
				slog.String("url", item.url),
				slog.String("error", err.Error()))
			continue
		}
		if item.depth >= s.cfg.MaxDepth || !isHTML(resp) {
			continue
		}

		base, _ := url.Parse(resp.URL)
		if base == nil {
			base = start
		}
		for _, link := range ExtractLinks(base, resp.Body) {
			if seen[link] || !sameHost(link, start.Host) {
				continue
			}
			seen[link] = true
			queue = append(queue, queued{url: link, depth: item.depth + 1})
		}
	}

	if fetchErr != nil && len(seen) == 1 {
		return nil, fmt.Errorf("crawling %s: %w", startURL, fetchErr)
	}
	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	return sortedUnique(urls), nil
}

func isHTML(resp *httpclient.Response) bool {
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	return ct == "" || strings.Contains(ct, "html")
}

// ExtractLinks returns the URLs referenced by anchors, links, scripts,
// forms and iframes in body, resolved against base, in document order.
func ExtractLinks(base *url.URL, body []byte) []string {
	var links []string
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return links
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		t := z.Token()
		attr, ok := linkAttrs[t.Data]
		if !ok {
			continue
		}
		for _, a := range t.Attr {
			if a.Key != attr {
				continue
			}
			if resolved := resolveURL(a.Val, base); resolved != "" {
				links = append(links, resolved)
			}
		}
	}
}
