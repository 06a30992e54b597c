package finding

import "errors"

// Sentinel errors for finding construction.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidSeverity indicates a severity outside the five tiers.
	ErrInvalidSeverity = errors.New("finding: invalid severity")

	// ErrInvalidKind indicates an unknown finding kind.
	ErrInvalidKind = errors.New("finding: invalid kind")

	// ErrEmptyDescription indicates a finding without a description.
	ErrEmptyDescription = errors.New("finding: empty description")
)
