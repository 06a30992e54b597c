package api

import "errors"

var (
	// ErrBadRequest is returned for undecodable or incomplete request bodies.
	ErrBadRequest = errors.New("api: bad request")
)
