// Package idor detects Insecure Direct Object References by replaying a
// request with its numeric object ID incremented and comparing the replies.
package idor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/waftester/vulnprobe/pkg/attackconfig"
	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/httpclient"
)

const (
	endpointDescription = "Insecure Direct Object Reference - user can access other users' data by modifying ID parameter"
	rawDescription      = "IDOR detected - changing ID parameter returns different user data"
	rawFix              = "Implement proper authorization checks for object access"
)

// Recommendations are attached to every endpoint-scan finding.
var Recommendations = []string{
	"Implement proper object-level authorization checks",
	"Use indirect references (UUIDs, hashes) instead of sequential IDs",
	"Validate user ownership before serving object data",
}

// rawIDPattern gates the raw-request scan.
var rawIDPattern = regexp.MustCompile(`id=\d+|user_id=\d+`)

// Config configures IDOR testing.
type Config struct {
	attackconfig.Base

	// MaxLinks bounds how many id-bearing links are tested per endpoint.
	MaxLinks int

	// MinBodyLength is the exclusive lower bound on both body sizes.
	// Shorter bodies are treated as error or placeholder pages.
	MinBodyLength int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Base:          attackconfig.DefaultBase(),
		MaxLinks:      defaults.IDORMaxLinks,
		MinBodyLength: defaults.IDORMinBodyLength,
	}
}

// RawRequest is an explicit request supplied by the user.
type RawRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Detector performs IDOR testing.
type Detector struct {
	config Config
}

// NewDetector creates a new IDOR detector.
func NewDetector(config Config) *Detector {
	config.Validate()
	if config.MaxLinks <= 0 {
		config.MaxLinks = defaults.IDORMaxLinks
	}
	if config.MinBodyLength <= 0 {
		config.MinBodyLength = defaults.IDORMinBodyLength
	}
	return &Detector{config: config}
}

// ScanEndpoint fetches endpoint, extracts links carrying a numeric id and
// tests up to MaxLinks of them. Per-link failures are skipped; only the
// initial fetch returns an error.
func (d *Detector) ScanEndpoint(ctx context.Context, endpoint string) ([]finding.Finding, error) {
	resp, err := d.config.Client.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     endpoint,
		Timeout: d.config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}

	links := ExtractIDLinks(endpoint, resp.Body)
	if len(links) > d.config.MaxLinks {
		links = links[:d.config.MaxLinks]
	}

	var out []finding.Finding
	for _, link := range links {
		f, ok := d.testLink(ctx, link)
		if !ok {
			continue
		}
		d.config.NotifyFinding(f)
		out = append(out, f)
	}
	return out, nil
}

// ScanEndpoints runs ScanEndpoint over each endpoint, logging and skipping
// the ones that cannot be fetched.
func (d *Detector) ScanEndpoints(ctx context.Context, endpoints []string) []finding.Finding {
	var out []finding.Finding
	for _, ep := range endpoints {
		if ctx.Err() != nil {
			break
		}
		found, err := d.ScanEndpoint(ctx, ep)
		if err != nil {
			d.config.Logger.Debug("idor endpoint skipped",
				slog.String("endpoint", ep),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, found...)
	}
	return out
}

func (d *Detector) get(ctx context.Context, u string) (*httpclient.Response, error) {
	return d.config.Client.Do(ctx, httpclient.Request{
		Method:     http.MethodGet,
		URL:        u,
		NoRedirect: true,
		Timeout:    d.config.Timeout,
	})
}

func (d *Detector) testLink(ctx context.Context, link string) (finding.Finding, bool) {
	orig, err := d.get(ctx, link)
	if err != nil || orig.StatusCode != http.StatusOK {
		return finding.Finding{}, false
	}
	modifiedURL, ok := MutateQueryID(link)
	if !ok {
		return finding.Finding{}, false
	}
	mod, err := d.get(ctx, modifiedURL)
	if err != nil {
		return finding.Finding{}, false
	}
	if !d.differs(orig, mod) {
		return finding.Finding{}, false
	}

	return finding.MustNew(finding.KindIDOR, finding.High, endpointDescription,
		finding.WithEndpoint(link),
		finding.WithEvidence(finding.Evidence{
			OriginalURL:    link,
			ModifiedURL:    modifiedURL,
			OriginalStatus: orig.StatusCode,
			ModifiedStatus: mod.StatusCode,
			OriginalLength: len(orig.Body),
			ModifiedLength: len(mod.Body),
			OriginalHash:   bodyHash(orig.Body),
			ModifiedHash:   bodyHash(mod.Body),
		}),
		finding.WithRecommendations(Recommendations...),
	), true
}

// differs is the endpoint-scan signal: the modified fetch succeeded, the
// bodies differ and both are long enough to be real pages.
func (d *Detector) differs(orig, mod *httpclient.Response) bool {
	if mod.StatusCode != http.StatusOK {
		return false
	}
	if bytes.Equal(orig.Body, mod.Body) {
		return false
	}
	return len(orig.Body) > d.config.MinBodyLength && len(mod.Body) > d.config.MinBodyLength
}

func bodyHash(b []byte) string {
	return fmt.Sprintf("mmh3:%d", int32(murmur3.Sum32(b)))
}

// ScanRaw replays req unmodified and with its first numeric id incremented.
// Two 200 replies are reported; bodies are not compared. A URL without a
// numeric id yields no finding and no error.
func (d *Detector) ScanRaw(ctx context.Context, req RawRequest) ([]finding.Finding, error) {
	if req.URL == "" {
		return nil, ErrEmptyURL
	}
	if !rawIDPattern.MatchString(req.URL) {
		return nil, nil
	}
	modifiedURL, ok := MutateRawID(req.URL)
	if !ok {
		return nil, nil
	}

	orig, err := d.send(ctx, req, req.URL)
	if err != nil {
		return nil, fmt.Errorf("original request: %w", err)
	}
	mod, err := d.send(ctx, req, modifiedURL)
	if err != nil {
		return nil, fmt.Errorf("modified request: %w", err)
	}
	if orig.StatusCode != http.StatusOK || mod.StatusCode != http.StatusOK {
		return nil, nil
	}

	f := finding.MustNew(finding.KindIDOR, finding.High, rawDescription,
		finding.WithEndpoint(req.URL),
		finding.WithEvidence(finding.Evidence{
			OriginalURL:    req.URL,
			ModifiedURL:    modifiedURL,
			OriginalStatus: orig.StatusCode,
			ModifiedStatus: mod.StatusCode,
		}),
		finding.WithFix(rawFix),
	)
	d.config.NotifyFinding(f)
	return []finding.Finding{f}, nil
}

func (d *Detector) send(ctx context.Context, req RawRequest, u string) (*httpclient.Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	header := make(http.Header, len(req.Headers))
	for k, v := range req.Headers {
		header.Set(k, v)
	}
	out := httpclient.Request{
		Method:  method,
		URL:     u,
		Header:  header,
		Timeout: d.config.Timeout,
	}
	if method != http.MethodGet {
		out.Body = req.Body
	}
	return d.config.Client.Do(ctx, out)
}
