package writers

import "errors"

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("writers: unknown format")
