package crawler

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Headless loads the start page in headless Chrome and records the
// same-host requests it issues during the settle window.
type Headless struct {
	cfg Config
}

// NewHeadless creates a browser-backed crawler.
func NewHeadless(cfg Config) *Headless {
	cfg.applyDefaults()
	return &Headless{cfg: cfg}
}

func (h *Headless) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserAgent(h.cfg.UserAgent),
	)
	if h.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(h.cfg.ChromePath))
	}
	return opts
}

// Crawl navigates to startURL and returns the recorded request URLs.
func (h *Headless) Crawl(ctx context.Context, startURL string) ([]string, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, startURL)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, h.allocatorOptions()...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	rec := newRecorder(start.Host)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		if e, ok := ev.(*network.EventRequestWillBeSent); ok && e.Request != nil {
			rec.add(e.Request.URL)
		}
	})

	navCtx, navCancel := context.WithTimeout(browserCtx, h.cfg.PageTimeout+h.cfg.Settle)
	defer navCancel()
	err = chromedp.Run(navCtx,
		network.Enable(),
		chromedp.Navigate(startURL),
		chromedp.Sleep(h.cfg.Settle),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrowser, err)
	}
	return rec.urls(), nil
}

// recorder collects request URLs from browser events, which arrive on
// chromedp's own goroutines.
type recorder struct {
	host string
	mu   sync.Mutex
	seen map[string]bool
}

func newRecorder(host string) *recorder {
	return &recorder{host: host, seen: make(map[string]bool)}
}

func (r *recorder) add(raw string) {
	if !sameHost(raw, r.host) {
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	u.Fragment = ""
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[u.String()] = true
}

func (r *recorder) urls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.seen))
	for u := range r.seen {
		out = append(out, u)
	}
	return sortedUnique(out)
}
