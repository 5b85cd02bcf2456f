package datasource

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockpulse/internal/cache"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// SignalFetcher produces short text items about a company. Name doubles as
// the cache namespace and the source label in recommendation details.
type SignalFetcher interface {
	Name() string
	Fetch(ctx context.Context, symbol string) ([]models.TextItem, error)
}

// Cached serves a SignalFetcher from the cache store. Only non-empty
// successful results are stored, so a failing or silent source is asked
// again on the next request.
type Cached struct {
	inner SignalFetcher
	cache *cache.Store
	log   zerolog.Logger
}

// NewCached wraps inner with store.
func NewCached(inner SignalFetcher, store *cache.Store, log zerolog.Logger) *Cached {
	return &Cached{
		inner: inner,
		cache: store,
		log:   log.With().Str("component", "signal").Str("source", inner.Name()).Logger(),
	}
}

// Name returns the wrapped fetcher's name.
func (c *Cached) Name() string { return c.inner.Name() }

// Fetch returns cached items when fresh, otherwise fetches and caches them.
func (c *Cached) Fetch(ctx context.Context, symbol string) ([]models.TextItem, error) {
	key := cache.Key(c.inner.Name(), symbol)

	var items []models.TextItem
	if c.cache.Get(ctx, key, &items) {
		c.log.Debug().Str("symbol", symbol).Int("items", len(items)).Msg("signal cache hit")
		return items, nil
	}

	items, err := c.inner.Fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		_ = c.cache.Put(ctx, key, items)
	}
	return items, nil
}

// --- Relevance helpers ---

// tickerKeywords returns lowercase search keywords for a ticker: the bare
// symbol and its cashtag.
func tickerKeywords(ticker string) []string {
	t := strings.ToLower(ticker)
	return []string{"$" + t, t}
}

// mentions reports whether text refers to symbol, either as a cashtag or as
// a standalone word.
func mentions(text, symbol string) bool {
	lower := strings.ToLower(text)
	for _, kw := range tickerKeywords(symbol) {
		idx := 0
		for {
			i := strings.Index(lower[idx:], kw)
			if i < 0 {
				break
			}
			start := idx + i
			end := start + len(kw)
			if isBoundary(lower, start-1) && isBoundary(lower, end) {
				return true
			}
			idx = start + 1
		}
	}
	return false
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// dedupe keeps the first item for each identity key. Items with an empty
// key are kept.
func dedupe(items []models.TextItem, key func(models.TextItem) string) []models.TextItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		k := key(it)
		if k != "" {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, it)
	}
	return out
}

// sortByDate sorts items newest first; undated items go last.
func sortByDate(items []models.TextItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Datetime, items[j].Datetime
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

func limit(items []models.TextItem, n int) []models.TextItem {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
