package finding

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Evidence is structured proof for a finding. Every field is optional.
type Evidence struct {
	OriginalURL    string            `json:"original_url,omitempty"`
	ModifiedURL    string            `json:"modified_url,omitempty"`
	OriginalStatus int               `json:"original_status,omitzero"`
	ModifiedStatus int               `json:"modified_status,omitzero"`
	OriginalLength int               `json:"original_length,omitzero"`
	ModifiedLength int               `json:"modified_length,omitzero"`
	OriginalHash   string            `json:"original_hash,omitempty"`
	ModifiedHash   string            `json:"modified_hash,omitempty"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	Header         string            `json:"header,omitempty"`
	Expected       string            `json:"expected,omitempty"`
	Actual         string            `json:"actual,omitempty"`
	Algorithm      string            `json:"token_alg,omitempty"`
}

// IsZero reports whether no evidence field is set.
func (e Evidence) IsZero() bool {
	return e.OriginalURL == "" && e.ModifiedURL == "" &&
		e.OriginalStatus == 0 && e.ModifiedStatus == 0 &&
		e.OriginalLength == 0 && e.ModifiedLength == 0 &&
		e.OriginalHash == "" && e.ModifiedHash == "" &&
		len(e.Parameters) == 0 && e.Header == "" &&
		e.Expected == "" && e.Actual == "" && e.Algorithm == ""
}

func (e Evidence) clone() Evidence {
	e.Parameters = maps.Clone(e.Parameters)
	return e
}

// Finding is one discrete security observation. Findings are values:
// construct them with New and pass them by copy.
type Finding struct {
	Kind               Kind     `json:"kind"`
	Severity           Severity `json:"severity"`
	Description        string   `json:"description"`
	Endpoint           string   `json:"endpoint,omitempty"`
	Evidence           Evidence `json:"evidence,omitzero"`
	Fix                string   `json:"fix,omitempty"`
	FixRecommendations []string `json:"fix_recommendations,omitempty"`
}

// Option sets an optional Finding field.
type Option func(*Finding)

// WithEndpoint sets the implicated URL or resource.
func WithEndpoint(endpoint string) Option {
	return func(f *Finding) { f.Endpoint = endpoint }
}

// WithEvidence attaches proof-of-concept data.
func WithEvidence(e Evidence) Option {
	return func(f *Finding) { f.Evidence = e.clone() }
}

// WithFix sets the remediation string.
func WithFix(fix string) Option {
	return func(f *Finding) { f.Fix = fix }
}

// WithRecommendations sets an ordered list of remediation steps.
func WithRecommendations(recs ...string) Option {
	return func(f *Finding) { f.FixRecommendations = slices.Clone(recs) }
}

// New validates and builds a Finding.
func New(kind Kind, sev Severity, description string, opts ...Option) (Finding, error) {
	if !kind.IsValid() {
		return Finding{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if !sev.IsValid() {
		return Finding{}, fmt.Errorf("%w: %q", ErrInvalidSeverity, sev)
	}
	if strings.TrimSpace(description) == "" {
		return Finding{}, ErrEmptyDescription
	}
	f := Finding{Kind: kind, Severity: sev, Description: description}
	for _, opt := range opts {
		opt(&f)
	}
	return f, nil
}

// MustNew is New for detector code that only passes package constants.
// An invalid argument is a programming error and panics.
func MustNew(kind Kind, sev Severity, description string, opts ...Option) Finding {
	f, err := New(kind, sev, description, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Clone returns a deep copy of f.
func (f Finding) Clone() Finding {
	f.Evidence = f.Evidence.clone()
	f.FixRecommendations = slices.Clone(f.FixRecommendations)
	return f
}

// SortBySeverity returns a copy of fs ordered from most to least severe.
// Findings of equal severity keep their relative order.
func SortBySeverity(fs []Finding) []Finding {
	out := slices.Clone(fs)
	slices.SortStableFunc(out, func(a, b Finding) int {
		return b.Severity.Rank() - a.Severity.Rank()
	})
	return out
}
