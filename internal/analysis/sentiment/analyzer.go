// Package sentiment turns text snippets into a SentimentAggregate. Two
// strategies are provided: a deterministic word lexicon and a remote ML
// classification endpoint. Both satisfy Analyzer.
package sentiment

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockpulse/internal/cache"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// Analyzer classifies snippets. It never fails: any error yields the
// neutral default aggregate.
type Analyzer interface {
	Analyze(ctx context.Context, snippets []string) models.SentimentAggregate
}

// Classifier is a strategy that may fail. Analyzers built on it report the
// failure instead of masking it so callers can decide what to cache.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, snippets []string) (models.SentimentAggregate, error)
}

// Positive and negative bucket thresholds on a per-unit score.
const (
	positiveThreshold = 0.6
	negativeThreshold = 0.4
)

// unit is one classified snippet or chunk.
type unit struct {
	score float64
	label label
}

type label int

const (
	labelNeutral label = iota
	labelPositive
	labelNegative
)

func bucket(score float64) label {
	switch {
	case score > positiveThreshold:
		return labelPositive
	case score < negativeThreshold:
		return labelNegative
	default:
		return labelNeutral
	}
}

// aggregate sums bucket counts and averages the per-unit scores.
func aggregate(units []unit) models.SentimentAggregate {
	if len(units) == 0 {
		return models.NeutralSentiment()
	}
	var agg models.SentimentAggregate
	var sum float64
	for _, u := range units {
		sum += u.score
		switch u.label {
		case labelPositive:
			agg.Positive++
		case labelNegative:
			agg.Negative++
		default:
			agg.Neutral++
		}
	}
	agg.Total = len(units)
	agg.Score = sum / float64(len(units))
	return agg
}

// Cached memoizes a Classifier per unique snippet set. Failed
// classifications are not stored.
type Cached struct {
	classifier Classifier
	cache      *cache.Store
	log        zerolog.Logger
}

// NewCached wraps classifier with store.
func NewCached(classifier Classifier, store *cache.Store, log zerolog.Logger) *Cached {
	return &Cached{
		classifier: classifier,
		cache:      store,
		log:        log.With().Str("component", "sentiment").Str("strategy", classifier.Name()).Logger(),
	}
}

// Analyze implements Analyzer.
func (c *Cached) Analyze(ctx context.Context, snippets []string) models.SentimentAggregate {
	if len(snippets) == 0 {
		return models.NeutralSentiment()
	}

	key := cache.Key(models.SignalSentiment, snippetSetKey(snippets))
	var agg models.SentimentAggregate
	if c.cache.Get(ctx, key, &agg) {
		return agg
	}

	agg, err := c.classifier.Classify(ctx, snippets)
	if err != nil {
		c.log.Warn().Err(err).Int("snippets", len(snippets)).Msg("sentiment classification failed, using neutral default")
		return models.NeutralSentiment()
	}

	_ = c.cache.Put(ctx, key, agg)
	return agg
}

// snippetSetKey is order independent.
func snippetSetKey(snippets []string) string {
	sorted := append([]string(nil), snippets...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}
