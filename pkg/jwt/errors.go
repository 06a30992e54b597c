package jwt

import "errors"

// ErrMalformedToken is returned when a token header cannot be decoded.
var ErrMalformedToken = errors.New("jwt: malformed token")
