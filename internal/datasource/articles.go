package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// articleQueries are the search variants issued per symbol for broader recall.
var articleQueries = []string{"%s stock", "%s shares"}

// Articles searches an RSS news-search feed for long-form articles.
type Articles struct {
	searchURL string
	maxItems  int
	http      *http.Client
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// NewArticles creates an article search source. cfg.SearchURL must contain
// one %s verb for the escaped query.
func NewArticles(cfg config.ArticlesConfig, log zerolog.Logger) *Articles {
	c := newHTTPClient(cfg.Timeout, cfg.RateLimit)
	return &Articles{
		searchURL: cfg.SearchURL,
		maxItems:  cfg.MaxItems,
		http:      c.http,
		limiter:   c.limiter,
		log:       log.With().Str("component", "articles").Logger(),
	}
}

// Name returns the signal name.
func (a *Articles) Name() string { return models.SignalArticles }

// Fetch runs every query variant concurrently and merges relevant results,
// deduplicated by link. A failed variant is skipped; Fetch fails only when
// every variant fails.
func (a *Articles) Fetch(ctx context.Context, symbol string) ([]models.TextItem, error) {
	var (
		mu       sync.Mutex
		all      []models.TextItem
		failures int
		lastErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, pattern := range articleQueries {
		query := fmt.Sprintf(pattern, symbol)
		g.Go(func() error {
			items, err := a.search(gctx, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				lastErr = err
				a.log.Debug().Err(err).Str("query", query).Msg("article search failed")
				return nil // non-fatal
			}
			all = append(all, items...)
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(articleQueries) {
		return nil, fmt.Errorf("article search %s: %w", symbol, lastErr)
	}

	relevant := all[:0]
	for _, it := range all {
		if mentions(it.Title+" "+it.Text, symbol) {
			relevant = append(relevant, it)
		}
	}

	relevant = dedupe(relevant, func(it models.TextItem) string { return it.URL })
	sortByDate(relevant)
	return limit(relevant, a.maxItems), nil
}

// search parses one feed. gofeed parsers are not safe for concurrent use,
// so each call builds its own.
func (a *Articles) search(ctx context.Context, query string) ([]models.TextItem, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	parser := gofeed.NewParser()
	parser.Client = a.http
	parser.UserAgent = DefaultUserAgent

	feedURL := fmt.Sprintf(a.searchURL, url.QueryEscape(query))
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %q: %w", query, err)
	}

	items := make([]models.TextItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		text := cleanHTML(item.Description)
		if text == "" {
			text = cleanHTML(item.Content)
		}
		it := models.TextItem{
			Title: strings.TrimSpace(item.Title),
			Text:  text,
			URL:   item.Link,
		}
		if item.PublishedParsed != nil {
			t := item.PublishedParsed.UTC()
			it.Datetime = &t
		}
		items = append(items, it)
	}
	return items, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
