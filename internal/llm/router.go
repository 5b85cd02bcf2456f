package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/internal/retry"
)

// Router sends requests to a primary provider and falls back through the
// remaining chain in order.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string
	fallbacks []string
	policy    retry.Policy
	log       zerolog.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithRetryPolicy sets the per-provider retry policy.
func WithRetryPolicy(p retry.Policy) RouterOption {
	return func(r *Router) { r.policy = p }
}

// WithLogger sets the router logger.
func WithLogger(log zerolog.Logger) RouterOption {
	return func(r *Router) { r.log = log.With().Str("component", "llm").Logger() }
}

// NewRouter creates a router with the given primary provider name.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers: make(map[string]Provider),
		primary:   primary,
		policy:    retry.Policy{Attempts: 1},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Name implements Provider.
func (r *Router) Name() string { return "router/" + r.primary }

// Generate tries each provider in the chain until one succeeds.
// Configuration errors (missing key, unknown model) stop the chain early.
func (r *Router) Generate(ctx context.Context, req Request) (*Response, error) {
	chain := r.providerChain()

	var lastErr error
	tried := 0
	for _, name := range chain {
		provider, ok := r.GetProvider(name)
		if !ok {
			continue
		}
		tried++

		var resp *Response
		err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
			var err error
			resp, err = provider.Generate(ctx, req)
			if err != nil && isNonRetryable(err) {
				return retry.Permanent(err)
			}
			return err
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		r.log.Warn().Err(err).Str("provider", name).Msg("provider failed, trying next")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isNonRetryable(err) {
			return nil, err
		}
	}

	if tried == 0 {
		return nil, ErrNoProviders
	}
	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// ProviderNames returns the chain order, limited to registered providers.
func (r *Router) ProviderNames() []string {
	var names []string
	for _, name := range r.providerChain() {
		if _, ok := r.GetProvider(name); ok {
			names = append(names, name)
		}
	}
	return names
}

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func isNonRetryable(err error) bool {
	return errors.Is(err, ErrNoAPIKey) || errors.Is(err, ErrInvalidModel)
}

// NewRouterFromConfig registers every provider that has credentials and
// orders the chain with cfg.Provider first. It returns ErrNoProviders when
// nothing could be registered.
func NewRouterFromConfig(ctx context.Context, cfg config.RationaleConfig, log zerolog.Logger) (*Router, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	var registered []Provider

	if cfg.AnthropicKey != "" {
		p, err := NewAnthropicProvider(cfg.AnthropicKey,
			WithAnthropicModel(modelFor(cfg, ProviderAnthropic)),
			WithAnthropicMaxTokens(cfg.MaxTokens),
			WithAnthropicTimeout(timeout),
		)
		if err == nil {
			registered = append(registered, p)
		}
	}
	if cfg.GeminiKey != "" {
		p, err := NewGeminiProvider(ctx, cfg.GeminiKey,
			WithGeminiModel(modelFor(cfg, ProviderGemini)),
			WithGeminiMaxTokens(cfg.MaxTokens),
			WithGeminiTimeout(timeout),
		)
		if err != nil {
			log.Warn().Err(err).Msg("gemini provider unavailable")
		} else {
			registered = append(registered, p)
		}
	}
	if cfg.OpenAIKey != "" {
		p, err := NewOpenAIProvider(cfg.OpenAIKey,
			WithOpenAIModel(modelFor(cfg, ProviderOpenAI)),
			WithOpenAIHTTPClient(newHTTPClient(timeout)),
		)
		if err == nil {
			registered = append(registered, p)
		}
	}
	if cfg.OllamaURL != "" {
		p, err := NewOllamaProvider(cfg.OllamaURL,
			WithOllamaModel(modelFor(cfg, ProviderOllama)),
			WithOllamaHTTPClient(newHTTPClient(timeout)),
		)
		if err == nil {
			registered = append(registered, p)
		}
	}

	if len(registered) == 0 {
		return nil, ErrNoProviders
	}

	primary := cfg.Provider
	var fallbacks []string
	for _, p := range registered {
		if p.Name() != primary {
			fallbacks = append(fallbacks, p.Name())
		}
	}
	if _, ok := findProvider(registered, primary); !ok {
		primary = registered[0].Name()
		fallbacks = fallbacks[1:]
	}

	router := NewRouter(primary, WithFallbacks(fallbacks...), WithLogger(log))
	for _, p := range registered {
		router.RegisterProvider(p)
	}
	log.Info().Str("primary", primary).Strs("fallbacks", fallbacks).Msg("llm router ready")
	return router, nil
}

// modelFor applies the configured model only to the configured provider;
// fallbacks keep their own defaults.
func modelFor(cfg config.RationaleConfig, provider string) string {
	if cfg.Provider == provider {
		return cfg.Model
	}
	return ""
}

func findProvider(ps []Provider, name string) (Provider, bool) {
	for _, p := range ps {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
