package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicProvider generates text through the Anthropic Messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// AnthropicOption configures the Anthropic provider.
type AnthropicOption func(*anthropicSettings)

type anthropicSettings struct {
	model     string
	maxTokens int
	opts      []option.RequestOption
}

// WithAnthropicModel sets the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(s *anthropicSettings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(s *anthropicSettings) { s.opts = append(s.opts, option.WithBaseURL(url)) }
}

// WithAnthropicTimeout bounds each request.
func WithAnthropicTimeout(d time.Duration) AnthropicOption {
	return func(s *anthropicSettings) { s.opts = append(s.opts, option.WithRequestTimeout(d)) }
}

// WithAnthropicMaxTokens sets the default completion budget.
func WithAnthropicMaxTokens(n int) AnthropicOption {
	return func(s *anthropicSettings) { s.maxTokens = n }
}

// NewAnthropicProvider creates an Anthropic provider. SDK-level retries are
// disabled; the router owns retry and fallback.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	s := &anthropicSettings{model: defaultAnthropicModel, maxTokens: 256}
	for _, opt := range opts {
		opt(s)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, s.opts...)
	return &AnthropicProvider{
		client:    anthropic.NewClient(reqOpts...),
		model:     s.model,
		maxTokens: s.maxTokens,
	}, nil
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

// Generate sends a single user message.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	model := resolveModel(req, p.model)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w: %v", ErrProviderDown, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	return &Response{
		Content:  text.String(),
		Model:    string(resp.Model),
		Provider: ProviderAnthropic,
		Latency:  time.Since(start),
	}, nil
}
