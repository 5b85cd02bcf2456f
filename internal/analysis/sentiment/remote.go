package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// DefaultChunkSize bounds the characters sent per classification request.
const DefaultChunkSize = 450

// ErrEmptyResponse is returned when the endpoint returns no labels.
var ErrEmptyResponse = errors.New("sentiment endpoint returned no labels")

// Remote delegates classification to a hosted text-classification model
// (e.g. FinBERT behind the Hugging Face inference API). Snippets are packed
// into length-bounded chunks and sent one request per chunk, paced by a
// rate limiter.
type Remote struct {
	endpoint  string
	apiKey    string
	chunkSize int
	limiter   *rate.Limiter
	client    *http.Client
	log       zerolog.Logger
}

// NewRemote creates a remote classifier from cfg.
func NewRemote(cfg config.SentimentConfig, log zerolog.Logger) *Remote {
	size := cfg.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	limit := rate.Inf
	if cfg.ChunkDelay > 0 {
		limit = rate.Every(cfg.ChunkDelay)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Remote{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		chunkSize: size,
		limiter:   rate.NewLimiter(limit, 1),
		client:    &http.Client{Timeout: timeout},
		log:       log.With().Str("component", "sentiment").Str("strategy", "remote").Logger(),
	}
}

// Name returns the strategy name.
func (r *Remote) Name() string { return "remote" }

// Analyze implements Analyzer, falling back to the neutral default on any failure.
func (r *Remote) Analyze(ctx context.Context, snippets []string) models.SentimentAggregate {
	agg, err := r.Classify(ctx, snippets)
	if err != nil {
		r.log.Warn().Err(err).Msg("remote sentiment failed, using neutral default")
		return models.NeutralSentiment()
	}
	return agg
}

// Classify implements Classifier. Each chunk is one unit scored as
// P(positive) + 0.5*P(neutral) and bucketed by its most likely label.
// Any failed chunk fails the whole call.
func (r *Remote) Classify(ctx context.Context, snippets []string) (models.SentimentAggregate, error) {
	chunks := Chunk(snippets, r.chunkSize)
	if len(chunks) == 0 {
		return models.NeutralSentiment(), nil
	}

	units := make([]unit, 0, len(chunks))
	for i, chunk := range chunks {
		if err := r.limiter.Wait(ctx); err != nil {
			return models.SentimentAggregate{}, err
		}
		scores, err := r.classifyChunk(ctx, chunk)
		if err != nil {
			return models.SentimentAggregate{}, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		units = append(units, unitFromLabels(scores))
	}
	return aggregate(units), nil
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (r *Remote) classifyChunk(ctx context.Context, text string) ([]labelScore, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sentiment endpoint returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	// The endpoint answers either [[{label,score}...]] or [{label,score}...].
	var nested [][]labelScore
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}
	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}
	return nil, ErrEmptyResponse
}

func unitFromLabels(scores []labelScore) unit {
	var pos, neg, neu float64
	for _, s := range scores {
		switch strings.ToLower(s.Label) {
		case "positive":
			pos = s.Score
		case "negative":
			neg = s.Score
		case "neutral":
			neu = s.Score
		}
	}
	u := unit{score: pos + 0.5*neu, label: labelNeutral}
	switch {
	case pos > neg && pos > neu:
		u.label = labelPositive
	case neg > pos && neg > neu:
		u.label = labelNegative
	}
	return u
}

// Chunk packs snippets, in order, into space-joined chunks of at most size
// runes. A snippet longer than size is truncated to its own chunk.
func Chunk(snippets []string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, s := range snippets {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		runes := []rune(s)
		if len(runes) > size {
			runes = runes[:size]
		}
		n := len(runes)
		if curLen > 0 && curLen+1+n > size {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(string(runes))
		curLen += n
	}
	flush()
	return chunks
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
