package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/waftester/vulnprobe/pkg/defaults"
)

type ctxKey int

const (
	noRedirectKey ctxKey = iota
	withoutAuthKey
)

// NoRedirect marks ctx so the client returns the first response instead of
// following a redirect.
func NoRedirect(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRedirectKey, true)
}

// WithoutAuth marks ctx so configured auth headers are not sent.
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, withoutAuthKey, true)
}

func flagged(ctx context.Context, key ctxKey) bool {
	v, _ := ctx.Value(key).(bool)
	return v
}

// middlewareTransport wraps a base RoundTripper to add the user agent, auth
// headers and an optional per-client rate limit.
type middlewareTransport struct {
	base        http.RoundTripper
	userAgent   string
	authHeaders http.Header
	limiter     *rate.Limiter
}

// RoundTrip implements http.RoundTripper with middleware.
func (m *middlewareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	// Clone the request to avoid mutating the caller's request.
	r := req.Clone(req.Context())

	if m.userAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", m.userAgent)
	}

	if !flagged(req.Context(), withoutAuthKey) {
		for key, vals := range m.authHeaders {
			if r.Header.Get(key) != "" {
				continue
			}
			for _, v := range vals {
				r.Header.Add(key, v)
			}
		}
	}

	return m.base.RoundTrip(r)
}

// needsMiddleware reports whether the config requires the middleware transport.
func needsMiddleware(cfg Config) bool {
	return cfg.UserAgent != "" ||
		len(cfg.AuthHeaders) > 0 ||
		cfg.RateLimit > 0
}

// redirectPolicy follows redirects when follow is set and the request context
// does not opt out. Auth headers are dropped when a redirect changes host.
func redirectPolicy(follow bool, authHeaders http.Header) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if !follow || flagged(req.Context(), noRedirectKey) {
			return http.ErrUseLastResponse
		}
		if len(via) >= defaults.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", defaults.MaxRedirects)
		}
		if len(via) > 0 && req.URL.Host != via[0].URL.Host {
			for key := range authHeaders {
				req.Header.Del(key)
			}
		}
		return nil
	}
}
