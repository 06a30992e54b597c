package headers

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one header requirement.
type Rule struct {
	Name     string `yaml:"name" json:"name"`
	Required bool   `yaml:"required" json:"required"`

	// MinAge is the minimum max-age directive in seconds (HSTS).
	MinAge int `yaml:"min_age,omitempty" json:"min_age,omitzero"`

	// ExpectedValue must be contained in the header value when set.
	ExpectedValue string `yaml:"expected_value,omitempty" json:"expected_value,omitempty"`
}

// Policy is an ordered, read-only set of header rules.
type Policy struct {
	rules []Rule
}

// NewPolicy validates rules and builds a Policy. Names must be non-empty and
// unique ignoring case.
func NewPolicy(rules ...Rule) (Policy, error) {
	if len(rules) == 0 {
		return Policy{}, ErrEmptyPolicy
	}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		key := strings.ToLower(strings.TrimSpace(r.Name))
		if key == "" {
			return Policy{}, fmt.Errorf("%w: empty header name", ErrInvalidPolicy)
		}
		if seen[key] {
			return Policy{}, fmt.Errorf("%w: duplicate header %q", ErrInvalidPolicy, r.Name)
		}
		if r.MinAge < 0 {
			return Policy{}, fmt.Errorf("%w: negative min_age for %q", ErrInvalidPolicy, r.Name)
		}
		seen[key] = true
	}
	return Policy{rules: slices.Clone(rules)}, nil
}

func mustPolicy(rules ...Rule) Policy {
	p, err := NewPolicy(rules...)
	if err != nil {
		panic(err)
	}
	return p
}

// HSTSMinAge is one year, the HSTS preload minimum.
const HSTSMinAge = 31536000

var requiredRules = []Rule{
	{Name: "Strict-Transport-Security", Required: true, MinAge: HSTSMinAge},
	{Name: "X-Frame-Options", Required: true},
	{Name: "X-Content-Type-Options", Required: true, ExpectedValue: "nosniff"},
	{Name: "Referrer-Policy", Required: true},
	{Name: "Content-Security-Policy", Required: true},
}

var optionalRules = []Rule{
	{Name: "Permissions-Policy"},
	{Name: "X-XSS-Protection"},
}

// DefaultPolicy returns the five required security headers.
func DefaultPolicy() Policy {
	return mustPolicy(requiredRules...)
}

// ExtendedPolicy returns DefaultPolicy plus the optional Permissions-Policy
// and legacy X-XSS-Protection headers. Optional headers count toward
// overall_score but never produce a missing-header finding.
func ExtendedPolicy() Policy {
	return mustPolicy(append(slices.Clone(requiredRules), optionalRules...)...)
}

// Rules returns a copy of the policy rules in order.
func (p Policy) Rules() []Rule {
	return slices.Clone(p.rules)
}

// Len returns the number of policy entries.
func (p Policy) Len() int {
	return len(p.rules)
}

// PolicySpec is the YAML layout accepted by ParsePolicy. It can also be
// embedded in a larger configuration file.
type PolicySpec struct {
	Preset  string `yaml:"preset"`
	Headers []Rule `yaml:"headers"`
}

// ParsePolicy reads a YAML policy. A file may name a preset ("default" or
// "extended"), list headers, or both; listed headers replace preset entries
// of the same name and are appended otherwise.
func ParsePolicy(data []byte) (Policy, error) {
	var spec PolicySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Policy{}, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	return spec.Build()
}

// Build resolves the preset and header list into a Policy. A preset is optional; see
// ParsePolicy for how listed headers combine with it.
func (pf PolicySpec) Build() (Policy, error) {
	var base []Rule
	switch strings.ToLower(pf.Preset) {
	case "":
		if len(pf.Headers) == 0 {
			return Policy{}, ErrEmptyPolicy
		}
	case "default":
		base = slices.Clone(requiredRules)
	case "extended":
		base = append(slices.Clone(requiredRules), optionalRules...)
	default:
		return Policy{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidPolicy, pf.Preset)
	}

	for _, r := range pf.Headers {
		idx := slices.IndexFunc(base, func(b Rule) bool { return strings.EqualFold(b.Name, r.Name) })
		if idx >= 0 {
			base[idx] = r
		} else {
			base = append(base, r)
		}
	}
	return NewPolicy(base...)
}

// LoadPolicy reads a YAML policy from path.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading header policy: %w", err)
	}
	return ParsePolicy(data)
}
