// Package hooks delivers finished reports to real-time integrations:
// structured logs, Prometheus metrics and OpenTelemetry traces.
package hooks

import (
	"context"
	"errors"
	"sync"

	"github.com/waftester/vulnprobe/pkg/report"
)

// Hook receives every finished report.
type Hook interface {
	// OnReport is called once per report. Errors are reported but never
	// change the report.
	OnReport(ctx context.Context, r *report.Report) error

	// Close releases any resources held by the hook.
	Close() error
}

// Multi fans a report out to several hooks. It is safe for concurrent use.
type Multi struct {
	mu    sync.RWMutex
	hooks []Hook
}

// NewMulti creates a fan-out over hooks. Nil hooks are skipped.
func NewMulti(hooks ...Hook) *Multi {
	m := &Multi{}
	for _, h := range hooks {
		m.Add(h)
	}
	return m
}

// Add registers a hook.
func (m *Multi) Add(h Hook) {
	if h == nil {
		return
	}
	m.mu.Lock()
	m.hooks = append(m.hooks, h)
	m.mu.Unlock()
}

// Len returns the number of registered hooks.
func (m *Multi) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooks)
}

// OnReport calls every hook in registration order. One failing hook does
// not stop the others; the errors are joined.
func (m *Multi) OnReport(ctx context.Context, r *report.Report) error {
	m.mu.RLock()
	hooks := append([]Hook(nil), m.hooks...)
	m.mu.RUnlock()

	var errs []error
	for _, h := range hooks {
		if err := h.OnReport(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every hook and joins their errors.
func (m *Multi) Close() error {
	m.mu.Lock()
	hooks := m.hooks
	m.hooks = nil
	m.mu.Unlock()

	var errs []error
	for _, h := range hooks {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
