package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/internal/retry"
)

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		require.NotNil(t, req.MaxTokens)
		assert.Equal(t, 64, *req.MaxTokens)

		_, _ = w.Write([]byte(`{"model":"gpt-test","choices":[{"message":{"role":"assistant","content":"Momentum is strong."}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(srv.URL), WithOpenAIModel("gpt-test"))
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{System: "be brief", Prompt: "explain", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "Momentum is strong.", resp.Content)
	assert.Equal(t, ProviderOpenAI, resp.Provider)
	assert.Equal(t, "gpt-test", resp.Model)
}

func TestOpenAIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, ErrNoAPIKey},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimit},
		{"unknown model", http.StatusNotFound, `{"error":{"message":"nope","code":"model_not_found"}}`, ErrInvalidModel},
		{"server error", http.StatusBadGateway, `upstream`, ErrProviderDown},
		{"empty choices", http.StatusOK, `{"choices":[]}`, ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, err := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(srv.URL))
			require.NoError(t, err)
			_, err = p.Generate(context.Background(), Request{Prompt: "x"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama-test", req.Model)
		require.NotNil(t, req.Options)
		assert.Equal(t, 0.2, req.Options.Temperature)

		_, _ = w.Write([]byte(`{"model":"llama-test","message":{"role":"assistant","content":"Mixed signals."},"done":true}`))
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL+"/", WithOllamaModel("llama-test"))
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{Prompt: "explain", Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Mixed signals.", resp.Content)
	assert.Equal(t, ProviderOllama, resp.Provider)
}

func TestProvidersRequireKeys(t *testing.T) {
	_, err := NewOpenAIProvider("")
	assert.ErrorIs(t, err, ErrNoAPIKey)
	_, err = NewAnthropicProvider("")
	assert.ErrorIs(t, err, ErrNoAPIKey)
	_, err = NewGeminiProvider(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGeminiRequestTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), "key",
		WithGeminiBaseURL(srv.URL),
		WithGeminiTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderDown)
	assert.Less(t, time.Since(start), 2*time.Second)
}

type fakeProvider struct {
	name  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(context.Context, Request) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Content: "from " + f.name, Provider: f.name}, nil
}

func TestRouterFallsBack(t *testing.T) {
	primary := &fakeProvider{name: "a", err: ErrProviderDown}
	backup := &fakeProvider{name: "b"}

	r := NewRouter("a", WithFallbacks("b"))
	r.RegisterProvider(primary)
	r.RegisterProvider(backup)

	resp, err := r.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "from b", resp.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, []string{"a", "b"}, r.ProviderNames())
}

func TestRouterRetriesBeforeFallback(t *testing.T) {
	primary := &fakeProvider{name: "a", err: ErrRateLimit}
	backup := &fakeProvider{name: "b"}

	r := NewRouter("a", WithFallbacks("b"), WithRetryPolicy(retry.Policy{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	r.RegisterProvider(primary)
	r.RegisterProvider(backup)

	_, err := r.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, 3, primary.calls)
}

func TestRouterStopsOnConfigurationError(t *testing.T) {
	primary := &fakeProvider{name: "a", err: ErrInvalidModel}
	backup := &fakeProvider{name: "b"}

	r := NewRouter("a", WithFallbacks("b"))
	r.RegisterProvider(primary)
	r.RegisterProvider(backup)

	_, err := r.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrInvalidModel)
	assert.Equal(t, 0, backup.calls)
}

func TestRouterAllFail(t *testing.T) {
	r := NewRouter("a", WithFallbacks("b"))
	r.RegisterProvider(&fakeProvider{name: "a", err: errors.New("boom")})
	r.RegisterProvider(&fakeProvider{name: "b", err: ErrProviderDown})

	_, err := r.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrProviderDown)

	_, err = NewRouter("missing").Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestNewRouterFromConfig(t *testing.T) {
	_, err := NewRouterFromConfig(context.Background(), config.RationaleConfig{Provider: "openai"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoProviders)

	r, err := NewRouterFromConfig(context.Background(), config.RationaleConfig{
		Provider:  "anthropic",
		OpenAIKey: "sk-test",
		OllamaURL: "http://localhost:11434",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{ProviderOpenAI, ProviderOllama}, r.ProviderNames())

	r, err = NewRouterFromConfig(context.Background(), config.RationaleConfig{
		Provider:  "ollama",
		OpenAIKey: "sk-test",
		OllamaURL: "http://localhost:11434",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{ProviderOllama, ProviderOpenAI}, r.ProviderNames())
}
