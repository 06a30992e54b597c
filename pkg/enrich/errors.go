package enrich

import "errors"

var (
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("enrich: missing API key")

	// ErrProvider wraps an error status or message from the provider.
	ErrProvider = errors.New("enrich: provider error")

	// ErrBadResponse is returned when the reply cannot be parsed.
	ErrBadResponse = errors.New("enrich: malformed response")

	// ErrNoJSONObject is returned when the model answer has no JSON object.
	ErrNoJSONObject = errors.New("enrich: no json object in content")
)
