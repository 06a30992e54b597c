package idor

import "errors"

// ErrEmptyURL is returned when a raw request has no URL.
var ErrEmptyURL = errors.New("idor: raw request has empty url")
