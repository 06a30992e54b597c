// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.Shutdown)
//	client := httpclient.New(httpclient.WithTimeout(duration.HTTPScanning))
//
// Do not hardcode time.Duration values like `30 * time.Second`; reference the
// appropriate constant from this package.
package duration

import "time"

// ============================================================================
// HTTP CLIENT TIMEOUTS
// ============================================================================

const (
	// HTTPProbing is for quick path checks such as debug endpoints (5s)
	HTTPProbing = 5 * time.Second

	// HTTPScanning is for detector requests (15s)
	HTTPScanning = 15 * time.Second

	// HTTPDefault is the scanner-scoped client timeout (30s)
	HTTPDefault = 30 * time.Second

	// HTTPAPI is for external API calls like enrichment services (60s)
	HTTPAPI = 60 * time.Second
)

// ============================================================================
// CONNECTION POOL
// ============================================================================

const (
	// DialTimeout bounds connection establishment (10s)
	DialTimeout = 10 * time.Second

	// TLSHandshake bounds the TLS handshake (10s)
	TLSHandshake = 10 * time.Second

	// IdleConn is how long idle connections stay pooled (90s)
	IdleConn = 90 * time.Second

	// KeepAlive is the TCP keep-alive period (30s)
	KeepAlive = 30 * time.Second
)

// ============================================================================
// BROWSER/HEADLESS TIMEOUTS
// ============================================================================

const (
	// BrowserPage is the page load timeout (30s)
	BrowserPage = 30 * time.Second

	// BrowserSettle is how long network requests are captured after load (5s)
	BrowserSettle = 5 * time.Second
)

// ============================================================================
// SERVER TIMEOUTS
// ============================================================================

const (
	// ReadHeader bounds request header reads (10s)
	ReadHeader = 10 * time.Second

	// ServerIdle is the keep-alive idle timeout for served connections (30s)
	ServerIdle = 30 * time.Second

	// Shutdown is the graceful shutdown budget (15s)
	Shutdown = 15 * time.Second

	// RedisConnect bounds the initial Redis ping (5s)
	RedisConnect = 5 * time.Second

	// ReportTTL is how long Redis keeps stored reports (7 days)
	ReportTTL = 7 * 24 * time.Hour

	// HookShutdown bounds hook teardown (metrics server, trace flush)
	HookShutdown = 5 * time.Second

	// HookConnect bounds exporter connection setup
	HookConnect = 10 * time.Second
)
