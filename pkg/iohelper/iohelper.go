// Package iohelper reads HTTP response bodies with size limits and releases
// connections back to the pool.
package iohelper

import (
	"io"

	"github.com/waftester/vulnprobe/pkg/defaults"
)

// DefaultMaxBodySize is the response body cap (1MB).
const DefaultMaxBodySize int64 = defaults.BufferHuge

// ReadBody reads at most maxSize bytes from r.
// A nil reader yields an empty slice.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadAndClose reads up to maxSize bytes, then drains and closes rc so the
// connection can be reused.
func ReadAndClose(rc io.ReadCloser, maxSize int64) ([]byte, error) {
	if rc == nil {
		return []byte{}, nil
	}
	defer DrainAndClose(rc)
	return ReadBody(rc, maxSize)
}

// DrainAndClose discards up to 64KB of what remains in r and closes it when it
// is a ReadCloser. It always returns nil so it can be deferred.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, defaults.BufferLarge))
	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
