// Package recommend runs the per-company scoring pipeline over a batch of
// symbols and assembles the ranked response envelope.
package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stockpulse/internal/analysis/scoring"
	"github.com/seenimoa/stockpulse/internal/analysis/sentiment"
	"github.com/seenimoa/stockpulse/internal/datasource"
	"github.com/seenimoa/stockpulse/internal/rationale"
	"github.com/seenimoa/stockpulse/pkg/models"
	"github.com/seenimoa/stockpulse/pkg/utils"
)

// Envelope messages.
const (
	MsgNoCompanies = "No valid companies provided"
	MsgNoResults   = "Unable to generate recommendations for the requested companies"
)

// Default batching limits.
const (
	DefaultBatchSize   = 10
	DefaultConcurrency = 5
)

// MarketSource yields price statistics for a symbol and horizon.
// *datasource.MarketFetcher satisfies it.
type MarketSource interface {
	Stats(ctx context.Context, symbol string, horizon models.Horizon) (*models.StockStatistics, error)
}

// Config holds the collaborators of an Orchestrator. Market, Analyzer and
// Scorer are required.
type Config struct {
	Market    MarketSource
	Signals   []datasource.SignalFetcher
	Analyzer  sentiment.Analyzer
	Explainer rationale.Explainer // nil uses rationale.Fallback only
	Scorer    *scoring.Engine

	BatchSize   int
	Concurrency int
	Timeout     time.Duration // bounds a whole batch; zero means no limit

	Observer Observer
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Orchestrator scores batches of companies.
type Orchestrator struct {
	cfg Config
	log zerolog.Logger
}

// New creates an Orchestrator, filling unset limits with defaults.
func New(cfg Config) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Scorer == nil {
		cfg.Scorer = scoring.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "recommend").Logger(),
	}
}

// GetStockRecommendation scores every company for the horizon and returns
// them ranked by composite score. It never returns an error: invalid input
// and total failure are reported through the envelope status.
func (o *Orchestrator) GetStockRecommendation(ctx context.Context, companies []string, horizon string) models.RecommendationResponse {
	h := models.ParseHorizon(horizon)
	symbols := utils.NormalizeSymbols(companies)
	if len(symbols) == 0 {
		return o.errorResponse(h, MsgNoCompanies)
	}

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	batchID := uuid.NewString()
	start := time.Now()
	log := o.log.With().Str("batch_id", batchID).Str("horizon", string(h)).Logger()
	log.Info().Strs("symbols", symbols).Msg("batch started")

	p := &progress{total: len(symbols)}
	recs := o.run(ctx, batchID, symbols, h, p, log)

	var resp models.RecommendationResponse
	if len(recs) == 0 {
		resp = o.errorResponse(h, MsgNoResults)
	} else {
		scoring.Rank(recs)
		resp = models.RecommendationResponse{
			Status:          models.StatusSuccess,
			Recommendations: recs,
			Metadata:        models.NewMetadata(o.cfg.Now(), h),
		}
	}

	log.Info().
		Int("scored", len(recs)).
		Int("requested", len(symbols)).
		Dur("elapsed", time.Since(start)).
		Msg("batch completed")
	o.cfg.Observer.Observe(Event{
		Type:    EventBatchCompleted,
		BatchID: batchID,
		Done:    p.current(),
		Total:   p.total,
		Status:  resp.Status,
		Time:    o.cfg.Now(),
	})
	return resp
}

// run processes symbols in chunks of BatchSize, at most Concurrency at a
// time. Results keep input order so ties rank deterministically.
func (o *Orchestrator) run(ctx context.Context, batchID string, symbols []string, h models.Horizon, p *progress, log zerolog.Logger) []models.Recommendation {
	slots := make([]*models.Recommendation, len(symbols))

	for lo := 0; lo < len(symbols); lo += o.cfg.BatchSize {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Int("remaining", len(symbols)-lo).Msg("batch cancelled")
			break
		}
		hi := min(lo+o.cfg.BatchSize, len(symbols))

		var g errgroup.Group
		g.SetLimit(o.cfg.Concurrency)
		for i := lo; i < hi; i++ {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				slots[i] = o.scoreCompany(ctx, batchID, symbols[i], h, p)
				return nil
			})
		}
		_ = g.Wait()
	}

	recs := make([]models.Recommendation, 0, len(symbols))
	for _, r := range slots {
		if r != nil {
			recs = append(recs, *r)
		}
	}
	return recs
}

// scoreCompany wraps processCompany with panic isolation and progress events.
func (o *Orchestrator) scoreCompany(ctx context.Context, batchID, symbol string, h models.Horizon, p *progress) (rec *models.Recommendation) {
	log := o.log.With().Str("batch_id", batchID).Str("symbol", symbol).Logger()

	reason := ""
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("company pipeline panicked")
			rec, reason = nil, fmt.Sprintf("internal error: %v", r)
		}
		ev := Event{BatchID: batchID, Company: symbol, Done: p.inc(), Total: p.total, Time: o.cfg.Now()}
		if rec != nil {
			ev.Type, ev.Score = EventCompanyScored, rec.Score
		} else {
			ev.Type, ev.Reason = EventCompanyDropped, reason
		}
		o.cfg.Observer.Observe(ev)
	}()

	rec, reason = o.processCompany(ctx, symbol, h, log)
	return rec
}

type signalResult struct {
	name  string
	items []models.TextItem
}

// processCompany runs fetch, gate, sentiment, score and rationale for one
// symbol. A nil result carries the reason the company was dropped.
func (o *Orchestrator) processCompany(ctx context.Context, symbol string, h models.Horizon, log zerolog.Logger) (*models.Recommendation, string) {
	var (
		stats    *models.StockStatistics
		statsErr error
		signals  = make([]signalResult, len(o.cfg.Signals))
	)

	var g errgroup.Group
	g.Go(func() error {
		statsErr = guard(func() error {
			var err error
			stats, err = o.cfg.Market.Stats(ctx, symbol, h)
			return err
		})
		return nil
	})
	for i, f := range o.cfg.Signals {
		g.Go(func() error {
			var items []models.TextItem
			err := guard(func() error {
				var err error
				items, err = f.Fetch(ctx, symbol)
				return err
			})
			if err != nil {
				log.Warn().Err(err).Str("source", f.Name()).Msg("signal unavailable")
				items = nil
			}
			signals[i] = signalResult{name: f.Name(), items: items}
			return nil
		})
	}
	_ = g.Wait()

	if statsErr != nil || stats == nil {
		reason := "no market data"
		if statsErr != nil {
			reason = statsErr.Error()
		}
		log.Warn().Str("reason", reason).Msg("dropping company")
		return nil, reason
	}

	var (
		counts models.SourceCounts
		items  []models.TextItem
	)
	for _, s := range signals {
		countInto(&counts, s.name, len(s.items))
		items = append(items, s.items...)
	}

	snippets := models.Snippets(items)
	starved := len(snippets) == 0

	agg := models.NeutralSentiment()
	if !starved {
		agg = o.cfg.Analyzer.Analyze(ctx, snippets)
	}

	result := o.cfg.Scorer.Score(*stats, agg, h)

	var why string
	if starved {
		why = rationale.NoContent
	} else {
		why = o.explain(ctx, symbol, items, counts, result.Score, log)
	}

	log.Debug().
		Float64("score", result.Score).
		Int("items", counts.Total()).
		Msg("company scored")

	return &models.Recommendation{
		Company: symbol,
		Score:   result.Score,
		Details: models.RecommendationDetails{
			StockData:  *stats,
			Sentiment:  agg,
			Components: result.Components,
			Rationale:  why,
			Sources:    &counts,
		},
	}, ""
}

func (o *Orchestrator) explain(ctx context.Context, symbol string, items []models.TextItem, counts models.SourceCounts, score float64, log zerolog.Logger) string {
	if o.cfg.Explainer == nil {
		return rationale.Fallback(symbol, counts, score)
	}
	var text string
	err := guard(func() error {
		var err error
		text, err = o.cfg.Explainer.Explain(ctx, symbol, items, score)
		return err
	})
	if err != nil || text == "" {
		log.Warn().Err(err).Msg("rationale unavailable, using fallback")
		return rationale.Fallback(symbol, counts, score)
	}
	return text
}

// guard runs fn and reports a panic as an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func countInto(c *models.SourceCounts, source string, n int) {
	switch source {
	case models.SignalNews:
		c.News += n
	case models.SignalArticles:
		c.Articles += n
	case models.SignalSocial:
		c.SocialPosts += n
	}
}

func (o *Orchestrator) errorResponse(h models.Horizon, msg string) models.RecommendationResponse {
	return models.RecommendationResponse{
		Status:          models.StatusError,
		Recommendations: []models.Recommendation{},
		Metadata:        models.NewMetadata(o.cfg.Now(), h),
		Message:         msg,
	}
}

type progress struct {
	mu    sync.Mutex
	done  int
	total int
}

func (p *progress) inc() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	return p.done
}

func (p *progress) current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
