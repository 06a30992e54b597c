package finding

import (
	"fmt"
	"strings"
)

// Severity is the ordinal risk tier of a finding. Values are the uppercase
// names used in reports.
type Severity string

const (
	// Critical is immediate compromise (unsigned tokens accepted).
	Critical Severity = "CRITICAL"

	// High is significant impact requiring prompt fix (IDOR, open admin).
	High Severity = "HIGH"

	// Medium is moderate impact (missing security headers).
	Medium Severity = "MEDIUM"

	// Low is limited impact (weak header values).
	Low Severity = "LOW"

	// Info carries no direct security impact (unreachable target).
	Info Severity = "INFO"
)

// Severities lists every tier from most to least severe.
var Severities = []Severity{Critical, High, Medium, Low, Info}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Weight returns the score contribution of s.
// Critical=4, High=3, Medium=2, Low=1, Info=0.
func (s Severity) Weight() int {
	switch s {
	case Critical:
		return 4
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	default:
		return 0
	}
}

// Rank orders severities for sorting and comparison.
// Critical=5 down to Info=1; unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity converts a case-insensitive name into a Severity.
func ParseSeverity(name string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(name)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, name)
	}
	return s, nil
}
