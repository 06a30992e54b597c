package crawler

import "errors"

var (
	// ErrInvalidURL is returned for a start URL without scheme or host.
	ErrInvalidURL = errors.New("crawler: invalid start url")

	// ErrBrowser wraps failures to launch or drive the headless browser.
	ErrBrowser = errors.New("crawler: browser failed")
)
