// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for runtime configuration defaults.
//
// Usage:
//
//	cfg.MaxLinks = defaults.IDORMaxLinks
//	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
//
// Do not hardcode these values elsewhere; reference the constant instead.
package defaults

import "fmt"

// Version is the current vulnprobe version
const Version = "1.2.0"

// ToolName is the name used in banners, user agents and MCP registration.
const ToolName = "vulnprobe"

// ============================================================================
// HTTP CLIENT POOL
// ============================================================================

const (
	// MaxIdleConns is the idle connection cap across all hosts (10)
	MaxIdleConns = 10

	// MaxConnsPerHost is the connection cap per host (50)
	MaxConnsPerHost = 50

	// MaxRedirects is the maximum number of redirects followed
	MaxRedirects = 10
)

// ============================================================================
// BUFFER SIZES
// ============================================================================

const (
	// BufferLarge is for drain-before-close reads (64KB)
	BufferLarge = 64 * 1024

	// BufferHuge is the default response body cap (1MB)
	BufferHuge = 1024 * 1024
)

// ============================================================================
// HTTP CONTENT TYPES
// ============================================================================

const (
	// ContentTypeJSON is application/json
	ContentTypeJSON = "application/json"

	// ContentTypePDF is application/pdf
	ContentTypePDF = "application/pdf"

	// ContentTypeMarkdown is text/markdown
	ContentTypeMarkdown = "text/markdown"

	// ContentTypePlain is text/plain
	ContentTypePlain = "text/plain"
)

// ============================================================================
// USER AGENTS
// ============================================================================

const (
	// UABrowser is the desktop browser user agent used by the headless crawler
	UABrowser = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// UAMinimal is the plain tool user agent
	UAMinimal = ToolName + "/" + Version
)

// UserAgent returns the tool user agent with an optional context suffix.
func UserAgent(context string) string {
	if context == "" {
		return UAMinimal
	}
	return fmt.Sprintf("%s/%s (%s)", ToolName, Version, context)
}

// ============================================================================
// CRAWLING
// ============================================================================

const (
	// DepthMedium is the default crawl depth (3)
	DepthMedium = 3

	// DepthMax is the maximum crawl depth (10)
	DepthMax = 10

	// CrawlMaxPages caps the number of pages fetched by the static crawler
	CrawlMaxPages = 200
)

// ============================================================================
// DETECTOR LIMITS
// ============================================================================

const (
	// IDORMaxLinks is the number of id-bearing links tested per endpoint (3)
	IDORMaxLinks = 3

	// IDORMinBodyLength is the exclusive lower bound on body size for an
	// endpoint IDOR finding (100 bytes)
	IDORMinBodyLength = 100

	// ReportMaxDetailedFindings caps the detailed findings rendered in PDFs (20)
	ReportMaxDetailedFindings = 20

	// EnrichMaxFindings caps the findings summarized in an enrichment prompt (10)
	EnrichMaxFindings = 10
)

// ============================================================================
// STORAGE
// ============================================================================

const (
	// ReportsDir is the default filesystem report store
	ReportsDir = "reports_storage"

	// RedisKeyPrefix namespaces report keys in Redis
	RedisKeyPrefix = "vulnprobe:report:"
)

// ============================================================================
// ENRICHMENT
// ============================================================================

const (
	// EnrichModel is the default chat model
	EnrichModel = "gpt-4o-mini"

	// EnrichTemperature keeps model output close to deterministic
	EnrichTemperature = 0.1

	// OpenAIBaseURL is the default OpenAI-compatible endpoint
	OpenAIBaseURL = "https://api.openai.com/v1"
)
