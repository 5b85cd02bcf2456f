package rationale

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockpulse/internal/llm"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// DefaultMaxItems caps how many text items go into a prompt.
const DefaultMaxItems = 12

const systemPrompt = `You are an equity research assistant. Given recent headlines and posts about a stock and its composite recommendation score (0-100), write two or three plain sentences explaining the prevailing sentiment. Cite only what the supplied text says. Do not give investment advice and do not invent figures.`

// ErrNoText is returned when a provider answers with blank content.
var ErrNoText = errors.New("rationale: provider returned no text")

// LLM is an Explainer backed by an llm.Provider (usually an llm.Router).
type LLM struct {
	provider  llm.Provider
	maxItems  int
	maxTokens int
	log       zerolog.Logger
}

// LLMOption configures the LLM explainer.
type LLMOption func(*LLM)

// WithMaxItems caps the text items included in each prompt.
func WithMaxItems(n int) LLMOption {
	return func(e *LLM) {
		if n > 0 {
			e.maxItems = n
		}
	}
}

// WithMaxTokens bounds the generated rationale length.
func WithMaxTokens(n int) LLMOption {
	return func(e *LLM) { e.maxTokens = n }
}

// NewLLM creates an LLM-backed explainer.
func NewLLM(provider llm.Provider, log zerolog.Logger, opts ...LLMOption) *LLM {
	e := &LLM{
		provider:  provider,
		maxItems:  DefaultMaxItems,
		maxTokens: 256,
		log:       log.With().Str("component", "rationale").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Explain asks the provider for a short narrative. Errors are returned to
// the caller, which substitutes Fallback.
func (e *LLM) Explain(ctx context.Context, company string, items []models.TextItem, score float64) (string, error) {
	resp, err := e.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      BuildPrompt(company, items, score, e.maxItems),
		MaxTokens:   e.maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("rationale for %s: %w", company, err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrNoText
	}
	e.log.Debug().
		Str("company", company).
		Str("provider", resp.Provider).
		Dur("latency", resp.Latency).
		Msg("rationale generated")
	return text, nil
}

// BuildPrompt lists up to maxItems snippets under the company and score.
func BuildPrompt(company string, items []models.TextItem, score float64, maxItems int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stock: %s\nComposite score: %.1f\n\nRecent content:\n", company, score)

	n := 0
	for _, it := range items {
		if maxItems > 0 && n >= maxItems {
			break
		}
		s := it.Snippet()
		if s == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, shortenPrompt(s))
	}
	if n == 0 {
		b.WriteString("(none)\n")
	}
	return b.String()
}

const maxPromptSnippet = 400

func shortenPrompt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxPromptSnippet {
		return s
	}
	return string(r[:maxPromptSnippet]) + "..."
}
