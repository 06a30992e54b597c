// Package crawler discovers same-host endpoints under a target URL.
//
// Two strategies are available: a headless Chrome session that records the
// network requests a page makes, and a static BFS over HTML links. Auto mode
// tries the browser first and falls back to the static crawl.
package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/duration"
	"github.com/waftester/vulnprobe/pkg/httpclient"
)

// Mode selects the crawl strategy.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeHeadless Mode = "headless"
	ModeStatic   Mode = "static"
)

// Crawler returns the endpoints discovered from startURL.
type Crawler interface {
	Crawl(ctx context.Context, startURL string) ([]string, error)
}

// Config holds crawler configuration
type Config struct {
	Mode     Mode `json:"mode" yaml:"mode"`
	MaxDepth int  `json:"max_depth" yaml:"max_depth"`
	MaxPages int  `json:"max_pages" yaml:"max_pages"`

	// Settle is how long the browser keeps recording after navigation.
	Settle time.Duration `json:"-" yaml:"-"`

	// PageTimeout bounds the browser navigation.
	PageTimeout time.Duration `json:"-" yaml:"-"`

	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`

	// ChromePath overrides browser discovery.
	ChromePath string `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`

	Client *httpclient.Client `json:"-" yaml:"-"`
	Logger *slog.Logger       `json:"-" yaml:"-"`
}

// DefaultConfig returns default crawler configuration
func DefaultConfig() Config {
	return Config{
		Mode:        ModeAuto,
		MaxDepth:    defaults.DepthMedium,
		MaxPages:    defaults.CrawlMaxPages,
		Settle:      duration.BrowserSettle,
		PageTimeout: duration.BrowserPage,
		UserAgent:   defaults.UABrowser,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.MaxDepth > defaults.DepthMax {
		c.MaxDepth = defaults.DepthMax
	}
	if c.MaxPages <= 0 {
		c.MaxPages = def.MaxPages
	}
	if c.Settle <= 0 {
		c.Settle = def.Settle
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = def.PageTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.Client == nil {
		c.Client = httpclient.NewClient(httpclient.DefaultConfig())
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New builds the crawler for cfg.Mode.
func New(cfg Config) Crawler {
	cfg.applyDefaults()
	switch cfg.Mode {
	case ModeStatic:
		return NewStatic(cfg)
	case ModeHeadless:
		return NewHeadless(cfg)
	default:
		return &fallback{
			primary:   NewHeadless(cfg),
			secondary: NewStatic(cfg),
			logger:    cfg.Logger,
		}
	}
}

type fallback struct {
	primary   Crawler
	secondary Crawler
	logger    *slog.Logger
}

func (f *fallback) Crawl(ctx context.Context, startURL string) ([]string, error) {
	urls, err := f.primary.Crawl(ctx, startURL)
	if err == nil {
		return urls, nil
	}
	f.logger.Warn("headless crawl failed, falling back to static crawl",
		slog.String("target", startURL),
		slog.String("error", err.Error()))
	return f.secondary.Crawl(ctx, startURL)
}

func resolveURL(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

// sameHost reports whether raw points at host (hostname and port).
func sameHost(raw, host string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// sortedUnique returns the distinct entries of urls in lexical order.
func sortedUnique(urls []string) []string {
	out := slices.Clone(urls)
	slices.Sort(out)
	return slices.Compact(out)
}
