package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/waftester/vulnprobe/pkg/config"
	"github.com/waftester/vulnprobe/pkg/enrich"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/output/hooks"
	"github.com/waftester/vulnprobe/pkg/store"
)

// Components are the optional pieces FromConfig builds alongside the
// Engine. Prometheus is nil unless metrics are enabled.
type Components struct {
	Prometheus *hooks.PrometheusHook
	OTel       *hooks.OTelHook
}

// BuildOption adjusts the engine Config assembled by FromConfig.
type BuildOption func(*Config)

// WithOnFinding streams every finding to fn as it is produced.
func WithOnFinding(fn func(finding.Finding)) BuildOption {
	return func(c *Config) { c.OnFinding = fn }
}

// WithHook registers an extra report hook.
func WithHook(h hooks.Hook) BuildOption {
	return func(c *Config) { c.Hooks.Add(h) }
}

// FromConfig builds an Engine from a loaded configuration: the report
// store, the enricher and the report hooks. Call Close on the engine to
// release all of them.
func FromConfig(_ context.Context, cfg *config.Config, logger *slog.Logger, opts ...BuildOption) (*Engine, Components, error) {
	var comps Components
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, comps, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, comps, err
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, comps, err
	}

	multi := hooks.NewMulti(hooks.NewLoggerHook(logger))
	if cfg.Server.Metrics || cfg.Hooks.PrometheusAddr != "" {
		ph, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{
			Addr:   cfg.Hooks.PrometheusAddr,
			Logger: logger,
		})
		if err != nil {
			_ = st.Close()
			_ = multi.Close()
			return nil, comps, err
		}
		comps.Prometheus = ph
		multi.Add(ph)
	}
	if cfg.Hooks.OTLPEndpoint != "" {
		oh, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint:  cfg.Hooks.OTLPEndpoint,
			Insecure:  cfg.Hooks.OTLPInsecure,
			SetGlobal: true,
		})
		if err != nil {
			_ = st.Close()
			_ = multi.Close()
			return nil, comps, err
		}
		comps.OTel = oh
		multi.Add(oh)
	}

	var enricher enrich.Enricher = enrich.RuleBased{}
	if cfg.UseOpenAI() {
		enricher = enrich.NewOpenAI(enrich.OpenAIConfig{
			APIKey:      cfg.Enrichment.APIKey,
			Model:       cfg.Enrichment.Model,
			BaseURL:     cfg.Enrichment.BaseURL,
			Temperature: cfg.Enrichment.Temperature,
		})
	}

	ec := Config{
		Scan:     cfg.Scan,
		Policy:   policy,
		Enricher: enricher,
		Store:    st,
		Hooks:    multi,
		Logger:   logger,
	}
	for _, opt := range opts {
		opt(&ec)
	}
	e := New(ec)
	logger.Debug("engine ready",
		slog.String("store", cfg.Store.Backend),
		slog.Int("hooks", multi.Len()),
		slog.Bool("openai", cfg.UseOpenAI()))
	return e, comps, nil
}

func openStore(c config.Store) (store.Store, error) {
	switch c.Backend {
	case "redis":
		r, err := store.NewRedis(store.RedisOptions{URL: c.RedisURL, TTL: c.TTL})
		if err != nil {
			return nil, err
		}
		return r, nil
	case "", "fs":
		fs, err := store.NewFS(c.Dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
	return nil, fmt.Errorf("%w: unknown store backend %q", ErrInvalidRequest, c.Backend)
}
