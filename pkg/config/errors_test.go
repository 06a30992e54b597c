package config

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{ErrInvalidConfig, ErrMissingRequired} {
		if !errors.Is(fmt.Errorf("ctx: %w", err), err) {
			t.Errorf("errors.Is failed for %v", err)
		}
	}
}
