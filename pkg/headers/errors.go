package headers

import "errors"

// Sentinel errors for header policy handling.
var (
	// ErrInvalidPolicy indicates a malformed header policy.
	ErrInvalidPolicy = errors.New("headers: invalid policy")

	// ErrEmptyPolicy indicates a policy without rules.
	ErrEmptyPolicy = errors.New("headers: empty policy")
)
