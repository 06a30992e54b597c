// Package jwt finds JSON Web Tokens in response bodies and flags weak
// signing algorithms declared in their headers.
//
// Only the header segment is decoded. Signatures, expiry and claims are
// never verified, so no signing key is needed.
package jwt

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/waftester/vulnprobe/pkg/attackconfig"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/httpclient"
	"github.com/waftester/vulnprobe/pkg/jsonutil"
)

// Algorithm represents JWT signing algorithms
type Algorithm string

const (
	AlgNone  Algorithm = "none"
	AlgHS256 Algorithm = "HS256"
	AlgHS384 Algorithm = "HS384"
	AlgHS512 Algorithm = "HS512"
	AlgRS256 Algorithm = "RS256"
	AlgRS384 Algorithm = "RS384"
	AlgRS512 Algorithm = "RS512"
	AlgES256 Algorithm = "ES256"
	AlgES384 Algorithm = "ES384"
	AlgES512 Algorithm = "ES512"
	AlgPS256 Algorithm = "PS256"
	AlgPS384 Algorithm = "PS384"
	AlgPS512 Algorithm = "PS512"
)

// IsNone reports whether a is the unsigned algorithm, in any casing.
func (a Algorithm) IsNone() bool {
	return strings.EqualFold(string(a), string(AlgNone))
}

// IsSymmetric reports whether a is one of the HMAC algorithms.
func (a Algorithm) IsSymmetric() bool {
	switch a {
	case AlgHS256, AlgHS384, AlgHS512:
		return true
	}
	return false
}

// Header represents a JWT header
type Header struct {
	Alg Algorithm `json:"alg"`
	Typ string    `json:"typ,omitempty"`
	Kid string    `json:"kid,omitempty"`
	JKU string    `json:"jku,omitempty"`
}

const (
	noneDescription = "JWT uses 'none' algorithm - completely insecure"
	noneFix         = "Never allow 'none' algorithm. Validate JWT signature"
	weakFix         = "Use asymmetric algorithms (RS256, ES256) with proper key management"
)

var tokenPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+?\.[A-Za-z0-9_-]*?\.[A-Za-z0-9_-]*`)

// FindTokens returns every JWT-shaped substring of body in order.
func FindTokens(body string) []string {
	return tokenPattern.FindAllString(body, -1)
}

// ParseHeader decodes the header segment of token without verification.
func ParseHeader(token string) (Header, error) {
	seg, _, ok := strings.Cut(token, ".")
	if !ok || seg == "" {
		return Header{}, fmt.Errorf("%w: expected dot-separated segments", ErrMalformedToken)
	}
	raw, err := base64URLDecode(seg)
	if err != nil {
		return Header{}, fmt.Errorf("%w: header encoding: %w", ErrMalformedToken, err)
	}
	var h Header
	if err := jsonutil.Unmarshal(raw, &h); err != nil {
		return Header{}, fmt.Errorf("%w: header json: %w", ErrMalformedToken, err)
	}
	return h, nil
}

func base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Classify maps a token's declared algorithm to a finding. It reports false
// for malformed tokens and for algorithms with no structural weakness.
func Classify(token string) (finding.Finding, bool) {
	h, err := ParseHeader(token)
	if err != nil {
		return finding.Finding{}, false
	}
	ev := finding.Evidence{Algorithm: string(h.Alg)}
	switch {
	case h.Alg.IsNone():
		return finding.MustNew(finding.KindJWTNoneAlg, finding.Critical, noneDescription,
			finding.WithEvidence(ev),
			finding.WithFix(noneFix),
		), true
	case h.Alg.IsSymmetric():
		return finding.MustNew(finding.KindJWTWeakAlg, finding.High,
			fmt.Sprintf("JWT uses symmetric algorithm (%s) - vulnerable to secret extraction", h.Alg),
			finding.WithEvidence(ev),
			finding.WithFix(weakFix),
		), true
	}
	return finding.Finding{}, false
}

// Analyze classifies every token found in body.
func Analyze(body string) []finding.Finding {
	var out []finding.Finding
	for _, tok := range FindTokens(body) {
		if f, ok := Classify(tok); ok {
			out = append(out, f)
		}
	}
	return out
}

// Config configures the JWT detector.
type Config struct {
	attackconfig.Base
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Base: attackconfig.DefaultBase()}
}

// Detector fetches a target and analyzes the tokens in its body.
type Detector struct {
	config Config
}

// NewDetector creates a new JWT detector.
func NewDetector(config Config) *Detector {
	config.Validate()
	return &Detector{config: config}
}

// Run fetches target and returns a finding per weak token, each tagged with
// target as its endpoint.
func (d *Detector) Run(ctx context.Context, target string) ([]finding.Finding, error) {
	resp, err := d.config.Client.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     target,
		Timeout: d.config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}

	found := Analyze(resp.Text())
	for i := range found {
		found[i].Endpoint = target
		d.config.NotifyFinding(found[i])
	}
	return found, nil
}
