// Package httpclient builds the pooled HTTP client a scanner owns for the
// lifetime of one scan, and the request helpers detectors use on top of it.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/duration"
)

// Timeout presets.
const (
	TimeoutProbing  = duration.HTTPProbing
	TimeoutScanning = duration.HTTPScanning
	TimeoutDefault  = duration.HTTPDefault
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout (default: 30s)
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool

	// Proxy is the HTTP/HTTPS proxy URL (optional)
	Proxy string

	// MaxIdleConns is the idle connection cap (default: 10)
	MaxIdleConns int

	// MaxConnsPerHost is the connection cap per host (default: 50)
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections stay in pool (default: 90s)
	IdleConnTimeout time.Duration

	// DialTimeout is the timeout for establishing connections (default: 10s)
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the timeout for TLS handshake (default: 10s)
	TLSHandshakeTimeout time.Duration

	// FollowRedirects follows up to defaults.MaxRedirects hops unless a
	// request opts out with NoRedirect.
	FollowRedirects bool

	// UserAgent is set on every request when non-empty.
	UserAgent string

	// AuthHeaders are added to every request except those sent WithoutAuth.
	// They are stripped on cross-origin redirects.
	AuthHeaders http.Header

	// RateLimit caps requests per second for this client (0 = unlimited).
	RateLimit float64

	// Burst is the limiter bucket size (default: 1).
	Burst int
}

// DefaultConfig returns the scanner defaults: 30s timeout, redirects
// followed, 10 idle and 50 per-host connections.
func DefaultConfig() Config {
	return Config{
		Timeout:             TimeoutDefault,
		InsecureSkipVerify:  true,
		MaxIdleConns:        defaults.MaxIdleConns,
		MaxConnsPerHost:     defaults.MaxConnsPerHost,
		IdleConnTimeout:     duration.IdleConn,
		DialTimeout:         duration.DialTimeout,
		TLSHandshakeTimeout: duration.TLSHandshake,
		FollowRedirects:     true,
		UserAgent:           defaults.UAMinimal,
	}
}

// WithTimeout returns DefaultConfig with the given timeout.
func WithTimeout(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Timeout == 0 {
		cfg.Timeout = TimeoutDefault
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = defaults.MaxIdleConns
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = defaults.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = duration.IdleConn
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = duration.DialTimeout
	}
	if cfg.TLSHandshakeTimeout == 0 {
		cfg.TLSHandshakeTimeout = duration.TLSHandshake
	}
	if cfg.RateLimit > 0 && cfg.Burst <= 0 {
		cfg.Burst = 1
	}
}

// New creates an *http.Client with the given configuration.
func New(cfg Config) *http.Client {
	cfg.applyDefaults()

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: duration.KeepAlive,
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		DialContext:           dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	if cfg.Proxy != "" {
		if proxyURL, err := url.Parse(cfg.Proxy); err == nil && proxyURL.Host != "" {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		// Malformed proxy URLs are ignored; requests go direct.
	}

	var rt http.RoundTripper = transport
	if needsMiddleware(cfg) {
		mw := &middlewareTransport{
			base:        transport,
			userAgent:   cfg.UserAgent,
			authHeaders: cfg.AuthHeaders.Clone(),
		}
		if cfg.RateLimit > 0 {
			mw.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
		}
		rt = mw
	}

	return &http.Client{
		Transport:     rt,
		Timeout:       cfg.Timeout,
		CheckRedirect: redirectPolicy(cfg.FollowRedirects, cfg.AuthHeaders),
	}
}
