package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/waftester/vulnprobe/pkg/iohelper"
)

// Request describes one probe request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values // merged into URL's existing query
	Body   string

	// NoRedirect returns the first response without following redirects.
	NoRedirect bool

	// WithoutAuth suppresses configured auth headers for this request.
	WithoutAuth bool

	// Timeout overrides the client timeout when shorter.
	Timeout time.Duration
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Client is a scanner-scoped, connection-pooled HTTP client.
// It is safe for concurrent use. Call Close when the scan ends.
type Client struct {
	http    *http.Client
	maxBody int64
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	return &Client{
		http:    New(cfg),
		maxBody: iohelper.DefaultMaxBodySize,
	}
}

// Wrap adapts an existing *http.Client, e.g. one from httptest.
func Wrap(hc *http.Client) *Client {
	if hc == nil {
		hc = New(DefaultConfig())
	}
	return &Client{http: hc, maxBody: iohelper.DefaultMaxBodySize}
}

// HTTP returns the underlying *http.Client.
func (c *Client) HTTP() *http.Client { return c.http }

// Get fetches rawURL with the client defaults.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL})
}

// Post sends body to rawURL.
func (c *Client) Post(ctx context.Context, rawURL string, header http.Header, body string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Header: header, Body: body})
}

// Do sends req and reads the whole body (bounded by 1MB).
// Transport errors are classified with Classify.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target := req.URL
	if len(req.Query) > 0 {
		u, err := url.Parse(req.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	if req.NoRedirect {
		ctx = NoRedirect(ctx)
	}
	if req.WithoutAuth {
		ctx = WithoutAuth(ctx)
	}

	var body *strings.Reader
	if req.Body != "" && method != http.MethodGet {
		body = strings.NewReader(req.Body)
	}
	var httpReq *http.Request
	var err error
	if body != nil {
		httpReq, err = http.NewRequestWithContext(ctx, method, target, body)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, method, target, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, Classify(err)
	}
	data, err := iohelper.ReadAndClose(resp.Body, c.maxBody)
	if err != nil {
		return nil, Classify(fmt.Errorf("reading body: %w", err))
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        resp.Request.URL.String(),
	}, nil
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
