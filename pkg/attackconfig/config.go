package attackconfig

import (
	"log/slog"
	"time"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/httpclient"
)

// Base contains configuration fields shared across all detectors.
type Base struct {
	// Timeout bounds each individual request.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Client is the scanner-scoped HTTP client. Detectors never close it.
	Client *httpclient.Client `json:"-"`

	// Logger receives sub-probe failures at debug level.
	Logger *slog.Logger `json:"-"`

	// OnFinding is called for each finding as it is recorded, enabling
	// live progress output.
	OnFinding func(finding.Finding) `json:"-"`
}

// DefaultBase returns a Base with production defaults.
func DefaultBase() Base {
	return Base{Timeout: httpclient.TimeoutScanning}
}

// Validate fills zero-value fields with defaults.
// Call this in detector constructors.
func (b *Base) Validate() {
	if b.Timeout <= 0 {
		b.Timeout = httpclient.TimeoutScanning
	}
	if b.Logger == nil {
		b.Logger = slog.Default()
	}
	if b.Client == nil {
		b.Client = httpclient.NewClient(httpclient.DefaultConfig())
	}
}

// NotifyFinding calls OnFinding if set.
func (b *Base) NotifyFinding(f finding.Finding) {
	if b.OnFinding != nil {
		b.OnFinding(f)
	}
}
