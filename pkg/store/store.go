// Package store persists rendered reports keyed by scan ID and format.
package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/waftester/vulnprobe/pkg/output/writers"
)

// Store saves and loads rendered report bytes.
type Store interface {
	// Save stores data for id in format f, replacing any previous copy.
	Save(ctx context.Context, id string, f writers.Format, data []byte) error

	// Load returns the stored bytes, or ErrNotFound.
	Load(ctx context.Context, id string, f writers.Format) ([]byte, error)

	// Close releases backend resources.
	Close() error
}

// idPattern admits UUIDs and similar opaque tokens but never path
// separators or dots.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateID rejects scan IDs that could escape a storage namespace.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func validate(id string, f writers.Format) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	for _, known := range writers.Formats {
		if f == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", writers.ErrUnknownFormat, f)
}
