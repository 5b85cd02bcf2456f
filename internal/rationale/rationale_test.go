package rationale

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/stockpulse/internal/llm"
	"github.com/seenimoa/stockpulse/pkg/models"
)

func TestFallback(t *testing.T) {
	tests := []struct {
		counts models.SourceCounts
		want   string
	}{
		{models.SourceCounts{}, "AAPL scored 50.0 based on technical indicators only."},
		{models.SourceCounts{News: 1}, "AAPL scored 50.0 based on 1 news item."},
		{models.SourceCounts{News: 3, SocialPosts: 1}, "AAPL scored 50.0 based on 3 news items and 1 social post."},
		{models.SourceCounts{News: 2, Articles: 4, SocialPosts: 5}, "AAPL scored 50.0 based on 2 news items, 4 articles and 5 social posts."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fallback("AAPL", tt.counts, 50))
	}
}

func TestTemplateExplain(t *testing.T) {
	items := []models.TextItem{
		{Text: "Loading up before earnings"},
		{Title: "Apple beats estimates", Text: "Revenue rose 8%"},
	}
	got, err := NewTemplate().Explain(context.Background(), "AAPL", items, 68)
	require.NoError(t, err)
	assert.Equal(t, `AAPL scored 68.0 (favourable) from 2 recent items. Latest: "Apple beats estimates".`, got)

	got, err = NewTemplate().Explain(context.Background(), "MSFT", nil, 20.04)
	require.NoError(t, err)
	assert.Equal(t, "MSFT scored 20.0 (poor) from 0 recent items.", got)
}

func TestTemplateShortensHeadline(t *testing.T) {
	long := strings.Repeat("word ", 60)
	got, err := NewTemplate().Explain(context.Background(), "X", []models.TextItem{{Title: long}}, 80)
	require.NoError(t, err)
	assert.Contains(t, got, "...\".")
	assert.Contains(t, got, "from 1 recent item.")
}

func TestBand(t *testing.T) {
	assert.Equal(t, "strong", Band(70))
	assert.Equal(t, "favourable", Band(55))
	assert.Equal(t, "neutral", Band(50))
	assert.Equal(t, "weak", Band(30))
	assert.Equal(t, "poor", Band(29.9))
}

type stubProvider struct {
	content string
	err     error
	got     llm.Request
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, Provider: "stub"}, nil
}

func TestLLMExplain(t *testing.T) {
	p := &stubProvider{content: "  Coverage is upbeat after the earnings beat.\n"}
	e := NewLLM(p, zerolog.Nop(), WithMaxItems(2))

	items := []models.TextItem{{Title: "one"}, {Text: ""}, {Title: "two"}, {Title: "three"}}
	got, err := e.Explain(context.Background(), "AAPL", items, 71.34)
	require.NoError(t, err)

	assert.Equal(t, "Coverage is upbeat after the earnings beat.", got)
	assert.Contains(t, p.got.Prompt, "Composite score: 71.3")
	assert.Contains(t, p.got.Prompt, "2. two")
	assert.NotContains(t, p.got.Prompt, "three")
	assert.NotEmpty(t, p.got.System)
}

func TestLLMExplainErrors(t *testing.T) {
	_, err := NewLLM(&stubProvider{err: llm.ErrProviderDown}, zerolog.Nop()).
		Explain(context.Background(), "AAPL", nil, 50)
	assert.True(t, errors.Is(err, llm.ErrProviderDown))

	_, err = NewLLM(&stubProvider{content: "   "}, zerolog.Nop()).
		Explain(context.Background(), "AAPL", nil, 50)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestBuildPromptWithoutItems(t *testing.T) {
	p := BuildPrompt("AAPL", nil, 50, 5)
	assert.True(t, strings.HasSuffix(p, "(none)\n"))
}
