package runner

import "errors"

// Sentinel errors for runner failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrProbePanic indicates a probe panicked; the runner recovered it.
	ErrProbePanic = errors.New("runner: probe panicked")

	// ErrNilProbe indicates a probe was registered without a function.
	ErrNilProbe = errors.New("runner: probe has no run function")
)
