package idor

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrEmptyURL(t *testing.T) {
	if !strings.HasPrefix(ErrEmptyURL.Error(), "idor: ") {
		t.Errorf("message %q lacks package prefix", ErrEmptyURL)
	}
	wrapped := fmt.Errorf("scan raw: %w", ErrEmptyURL)
	if !errors.Is(wrapped, ErrEmptyURL) {
		t.Error("wrapped error should match ErrEmptyURL")
	}
}
