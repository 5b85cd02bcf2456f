package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/internal/retry"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// News fetches recent company news from a Finnhub-compatible company-news API.
type News struct {
	baseURL  string
	apiKey   string
	lookback time.Duration
	maxItems int
	client   *httpClient
	policy   retry.Policy
	now      func() time.Time
	log      zerolog.Logger
}

// NewsOption configures News.
type NewsOption func(*News)

// WithNewsClock replaces time.Now when computing the date window.
func WithNewsClock(now func() time.Time) NewsOption {
	return func(n *News) { n.now = now }
}

// NewNews creates a company-news source. Calls are retried per policy.
func NewNews(cfg config.NewsConfig, policy retry.Policy, log zerolog.Logger, opts ...NewsOption) *News {
	days := cfg.LookbackDays
	if days <= 0 {
		days = 7
	}
	n := &News{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		lookback: time.Duration(days) * 24 * time.Hour,
		maxItems: cfg.MaxItems,
		client:   newHTTPClient(cfg.Timeout, cfg.RateLimit),
		policy:   policy,
		now:      time.Now,
		log:      log.With().Str("component", "news").Logger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the signal name.
func (n *News) Name() string { return models.SignalNews }

type companyNewsItem struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Fetch returns news items for symbol from the lookback window, newest first,
// deduplicated by URL.
func (n *News) Fetch(ctx context.Context, symbol string) ([]models.TextItem, error) {
	if n.apiKey == "" {
		return nil, fmt.Errorf("news: %w: no API key configured", ErrAuth)
	}

	to := n.now().UTC()
	from := to.Add(-n.lookback)

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("from", from.Format(time.DateOnly))
	q.Set("to", to.Format(time.DateOnly))
	u := n.baseURL + "/company-news?" + q.Encode()
	// The key travels in a header so transport errors never echo it.
	headers := map[string]string{"X-Finnhub-Token": n.apiKey}

	var raw []companyNewsItem
	err := retry.Do(ctx, n.policy, func(ctx context.Context) error {
		raw = nil
		return retryable(n.client.getJSON(ctx, u, headers, &raw))
	})
	if err != nil {
		return nil, fmt.Errorf("company news %s: %w", symbol, err)
	}

	items := make([]models.TextItem, 0, len(raw))
	for _, r := range raw {
		headline := strings.TrimSpace(r.Headline)
		summary := cleanHTML(r.Summary)
		if headline == "" && summary == "" {
			continue
		}
		it := models.TextItem{Title: headline, Text: summary, URL: r.URL}
		if r.Datetime > 0 {
			t := time.Unix(r.Datetime, 0).UTC()
			it.Datetime = &t
		}
		items = append(items, it)
	}

	items = dedupe(items, func(it models.TextItem) string { return it.URL })
	sortByDate(items)
	items = limit(items, n.maxItems)

	n.log.Debug().Str("symbol", symbol).Int("items", len(items)).Msg("fetched company news")
	return items, nil
}
