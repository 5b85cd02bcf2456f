package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultGeminiTimeout = 15 * time.Second
)

// GeminiProvider generates text through the Gemini API.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*geminiSettings)

type geminiSettings struct {
	model     string
	maxTokens int
	baseURL   string
	timeout   time.Duration
}

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(s *geminiSettings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithGeminiMaxTokens sets the default completion budget.
func WithGeminiMaxTokens(n int) GeminiOption {
	return func(s *geminiSettings) { s.maxTokens = n }
}

// WithGeminiBaseURL sets a custom base URL.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(s *geminiSettings) { s.baseURL = url }
}

// WithGeminiTimeout bounds each request. Zero or negative keeps the default.
func WithGeminiTimeout(d time.Duration) GeminiOption {
	return func(s *geminiSettings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	s := &geminiSettings{model: defaultGeminiModel, maxTokens: 256, timeout: defaultGeminiTimeout}
	for _, opt := range opts {
		opt(s)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if s.baseURL != "" {
		cc.HTTPOptions.BaseURL = s.baseURL
	}
	timeout := s.timeout
	cc.HTTPOptions.Timeout = &timeout
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiProvider{client: client, model: s.model, maxTokens: s.maxTokens, timeout: s.timeout}, nil
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

// Generate sends a single user turn.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	model := resolveModel(req, p.model)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w: %v", ErrProviderDown, err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	return &Response{
		Content:  text.String(),
		Model:    model,
		Provider: ProviderGemini,
		Latency:  time.Since(start),
	}, nil
}
