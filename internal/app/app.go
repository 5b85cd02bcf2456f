// Package app assembles the recommendation pipeline from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockpulse/internal/analysis/scoring"
	"github.com/seenimoa/stockpulse/internal/analysis/sentiment"
	"github.com/seenimoa/stockpulse/internal/cache"
	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/internal/datasource"
	"github.com/seenimoa/stockpulse/internal/llm"
	"github.com/seenimoa/stockpulse/internal/rationale"
	"github.com/seenimoa/stockpulse/internal/recommend"
	"github.com/seenimoa/stockpulse/internal/retry"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// App owns the long-lived pieces of the pipeline.
type App struct {
	cfg          *config.Config
	log          zerolog.Logger
	backend      cache.Backend
	store        *cache.Store
	orchestrator *recommend.Orchestrator
	signals      []string
}

// Option customizes New.
type Option func(*options)

type options struct {
	observer recommend.Observer
	backend  cache.Backend
	quotes   datasource.QuoteProvider
}

// WithObserver receives orchestrator progress events.
func WithObserver(o recommend.Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithCacheBackend overrides the configured cache backend.
func WithCacheBackend(b cache.Backend) Option {
	return func(opts *options) { opts.backend = b }
}

// WithQuoteProvider overrides the configured price-history provider.
func WithQuoteProvider(q datasource.QuoteProvider) Option {
	return func(opts *options) { opts.quotes = q }
}

// New builds the cache, fetchers, analyzer, explainer and orchestrator.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = OpenBackend(ctx, cfg.Cache, log)
		if err != nil {
			return nil, err
		}
	}
	store := cache.New(backend, cfg.Cache.TTL, log)

	policy := retry.Policy{
		Attempts:     cfg.Pipeline.RetryAttempts,
		InitialDelay: cfg.Pipeline.RetryInitialDelay,
		MaxDelay:     cfg.Pipeline.RetryMaxDelay,
	}

	quotes := o.quotes
	if quotes == nil {
		quotes = datasource.NewYFinance(cfg.Providers.Quote)
	}
	market := datasource.NewMarketFetcher(quotes, store, policy, log)

	signals := buildSignals(cfg, store, policy, log)
	names := make([]string, 0, len(signals))
	for _, s := range signals {
		names = append(names, s.Name())
	}

	explainer, err := buildExplainer(ctx, cfg.Rationale, log)
	if err != nil {
		log.Warn().Err(err).Msg("narrative provider unavailable, using template rationale")
		explainer = rationale.NewTemplate()
	}

	orch := recommend.New(recommend.Config{
		Market:      market,
		Signals:     signals,
		Analyzer:    sentiment.NewCached(buildClassifier(cfg.Sentiment, log), store, log),
		Explainer:   explainer,
		Scorer:      scoring.FromConfig(cfg.Weights),
		BatchSize:   cfg.Pipeline.BatchSize,
		Concurrency: cfg.Pipeline.Concurrency,
		Timeout:     cfg.Pipeline.RequestTimeout,
		Observer:    o.observer,
		Logger:      log,
	})

	log.Info().
		Str("cache", cfg.Cache.Backend).
		Strs("signals", names).
		Str("sentiment", cfg.Sentiment.Mode).
		Str("rationale", cfg.Rationale.Provider).
		Msg("pipeline ready")

	return &App{
		cfg:          cfg,
		log:          log,
		backend:      backend,
		store:        store,
		orchestrator: orch,
		signals:      names,
	}, nil
}

// Recommend scores companies for the horizon.
func (a *App) Recommend(ctx context.Context, companies []string, horizon string) models.RecommendationResponse {
	return a.orchestrator.GetStockRecommendation(ctx, companies, horizon)
}

// Cache returns the shared cache store.
func (a *App) Cache() *cache.Store { return a.store }

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Signals lists the enabled signal sources in fetch order.
func (a *App) Signals() []string { return a.signals }

// Maintain runs backend housekeeping when the backend supports it.
func (a *App) Maintain() error {
	m, ok := a.backend.(cache.Maintainer)
	if !ok {
		return nil
	}
	return m.Maintain()
}

// Close releases the cache backend.
func (a *App) Close() error {
	return a.backend.Close()
}

// OpenBackend opens the cache backend named by cfg.Backend.
func OpenBackend(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) (cache.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemoryBackend(), nil
	case "badger":
		return cache.OpenBadger(cfg.BadgerPath, log)
	case "redis":
		return cache.NewRedisBackend(ctx, cache.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Retention: 2 * cfg.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func buildSignals(cfg *config.Config, store *cache.Store, policy retry.Policy, log zerolog.Logger) []datasource.SignalFetcher {
	var out []datasource.SignalFetcher
	p := cfg.Providers

	if p.News.Enabled {
		if p.News.APIKey == "" {
			log.Warn().Msg("news provider enabled without an API key; skipping")
		} else {
			out = append(out, datasource.NewCached(datasource.NewNews(p.News, policy, log), store, log))
		}
	}
	if p.Articles.Enabled {
		out = append(out, datasource.NewCached(datasource.NewArticles(p.Articles, log), store, log))
	}
	if p.Social.Enabled {
		if p.Social.Identifier == "" || p.Social.Password == "" {
			log.Warn().Msg("social provider enabled without credentials; skipping")
		} else {
			out = append(out, datasource.NewCached(datasource.NewSocial(p.Social, log), store, log))
		}
	}
	return out
}

func buildClassifier(cfg config.SentimentConfig, log zerolog.Logger) sentiment.Classifier {
	if cfg.Mode == "remote" {
		return sentiment.NewRemote(cfg, log)
	}
	return sentiment.NewLexicon()
}

func buildExplainer(ctx context.Context, cfg config.RationaleConfig, log zerolog.Logger) (rationale.Explainer, error) {
	if cfg.Provider == "" || cfg.Provider == "template" {
		return rationale.NewTemplate(), nil
	}
	router, err := llm.NewRouterFromConfig(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return rationale.NewLLM(router, log,
		rationale.WithMaxItems(cfg.MaxItems),
		rationale.WithMaxTokens(cfg.MaxTokens),
	), nil
}
