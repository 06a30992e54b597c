// Package config loads vulnprobe settings from a YAML file, the
// environment and command-line flags, in that order of precedence
// (flags win).
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/duration"
	"github.com/waftester/vulnprobe/pkg/headers"
)

// Environment variables read by ApplyEnv.
const (
	EnvOpenAIKey  = "OPENAI_API_KEY"
	EnvRedisURL   = "VULNPROBE_REDIS_URL"
	EnvReportsDir = "VULNPROBE_REPORTS_DIR"
	EnvConfigFile = "VULNPROBE_CONFIG"
)

// Config holds every vulnprobe setting.
type Config struct {
	Scan         Scan               `yaml:"scan"`
	HeaderPolicy headers.PolicySpec `yaml:"header_policy"`
	Enrichment   Enrichment         `yaml:"enrichment"`
	Store        Store              `yaml:"store"`
	Hooks        Hooks              `yaml:"hooks"`
	Server       Server             `yaml:"server"`
	Log          Log                `yaml:"log"`

	// FailOnPolicy is the path of a fail-on policy file for CI gating.
	FailOnPolicy string `yaml:"fail_on_policy"`
}

// Scan holds per-scan defaults.
type Scan struct {
	ScanType  string            `yaml:"scan_type"`
	MaxDepth  int               `yaml:"max_depth"`
	Timeout   time.Duration     `yaml:"timeout"`
	RateLimit float64           `yaml:"rate_limit"`
	CrawlMode string            `yaml:"crawl_mode"`
	Headers   map[string]string `yaml:"headers"`
}

// Enrichment configures report enrichment.
type Enrichment struct {
	// Provider is "openai", "rule-based", or empty for automatic: OpenAI
	// when an API key is set, rule-based otherwise.
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

// Store configures report persistence.
type Store struct {
	Backend  string        `yaml:"backend"` // fs or redis
	Dir      string        `yaml:"dir"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Hooks configures report hooks.
type Hooks struct {
	PrometheusAddr string `yaml:"prometheus_addr"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
}

// Server configures the HTTP API.
type Server struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
}

// Log configures the process logger.
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scan: Scan{
			ScanType:  "full",
			MaxDepth:  defaults.DepthMedium,
			Timeout:   duration.HTTPScanning,
			CrawlMode: "auto",
		},
		Store: Store{
			Backend: "fs",
			Dir:     defaults.ReportsDir,
			TTL:     duration.ReportTTL,
		},
		Server: Server{Addr: ":8000"},
		Log:    Log{Level: "info"},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: config file %s not found", ErrInvalidConfig, path)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.parse(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.parse(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parse(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyEnv overlays environment variables. lookup is os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvOpenAIKey); ok && v != "" {
		c.Enrichment.APIKey = v
	}
	if v, ok := lookup(EnvRedisURL); ok && v != "" {
		c.Store.RedisURL = v
		c.Store.Backend = "redis"
	}
	if v, ok := lookup(EnvReportsDir); ok && v != "" {
		c.Store.Dir = v
	}
}

// Policy resolves the header policy. An empty section means DefaultPolicy.
func (c *Config) Policy() (headers.Policy, error) {
	if c.HeaderPolicy.Preset == "" && len(c.HeaderPolicy.Headers) == 0 {
		return headers.DefaultPolicy(), nil
	}
	return c.HeaderPolicy.Build()
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Scan.ScanType) {
	case "full", "quick", "api-only":
	default:
		return fmt.Errorf("%w: scan.scan_type %q", ErrInvalidConfig, c.Scan.ScanType)
	}
	switch strings.ToLower(c.Scan.CrawlMode) {
	case "", "auto", "headless", "static":
	default:
		return fmt.Errorf("%w: scan.crawl_mode %q", ErrInvalidConfig, c.Scan.CrawlMode)
	}
	if c.Scan.MaxDepth < 0 || c.Scan.MaxDepth > defaults.DepthMax {
		return fmt.Errorf("%w: scan.max_depth must be 0..%d", ErrInvalidConfig, defaults.DepthMax)
	}
	if c.Scan.RateLimit < 0 {
		return fmt.Errorf("%w: scan.rate_limit must not be negative", ErrInvalidConfig)
	}
	switch c.Store.Backend {
	case "fs":
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("%w: store.redis_url (or %s)", ErrMissingRequired, EnvRedisURL)
		}
	default:
		return fmt.Errorf("%w: store.backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	switch c.Enrichment.Provider {
	case "", "rule-based":
	case "openai":
		if c.Enrichment.APIKey == "" {
			return fmt.Errorf("%w: enrichment.api_key (or %s)", ErrMissingRequired, EnvOpenAIKey)
		}
	default:
		return fmt.Errorf("%w: enrichment.provider %q", ErrInvalidConfig, c.Enrichment.Provider)
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("%w: header_policy: %v", ErrInvalidConfig, err)
	}
	return nil
}

// UseOpenAI reports whether enrichment should call the OpenAI provider.
func (c *Config) UseOpenAI() bool {
	switch c.Enrichment.Provider {
	case "openai":
		return true
	case "":
		return c.Enrichment.APIKey != ""
	}
	return false
}

// headerFlag collects repeated -H "Name: value" flags.
type headerFlag map[string]string

func (h headerFlag) String() string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, ", ")
}

func (h headerFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header must be \"Name: value\", got %q", s)
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(value)
	return nil
}

// BindScanFlags registers scan flags on fs with the current values as
// defaults, so flags override file and environment settings.
func (c *Config) BindScanFlags(fs *flag.FlagSet) {
	if c.Scan.Headers == nil {
		c.Scan.Headers = make(map[string]string)
	}

	// === SCAN ===
	fs.StringVar(&c.Scan.ScanType, "type", c.Scan.ScanType, "Scan type: full, quick, api-only")
	fs.IntVar(&c.Scan.MaxDepth, "depth", c.Scan.MaxDepth, "Maximum crawl depth")
	fs.StringVar(&c.Scan.CrawlMode, "crawl", c.Scan.CrawlMode, "Crawl mode: auto, headless, static")
	fs.DurationVar(&c.Scan.Timeout, "timeout", c.Scan.Timeout, "Per-request timeout")
	fs.Float64Var(&c.Scan.RateLimit, "rate-limit", c.Scan.RateLimit, "Max requests per second (0 = unlimited)")
	fs.Float64Var(&c.Scan.RateLimit, "rl", c.Scan.RateLimit, "Rate limit (alias)")
	fs.Var(headerFlag(c.Scan.Headers), "H", "Extra request header \"Name: value\" (repeatable)")

	// === ENRICHMENT ===
	fs.StringVar(&c.Enrichment.Provider, "enrich", c.Enrichment.Provider, "Enrichment provider: openai, rule-based")

	// === OUTPUT ===
	fs.StringVar(&c.FailOnPolicy, "policy", c.FailOnPolicy, "Fail-on policy file")
}

// BindLogFlags registers logging flags on fs.
func (c *Config) BindLogFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level: debug, info, warn, error")
	fs.BoolVar(&c.Log.JSON, "log-json", c.Log.JSON, "Log in JSON")
}
