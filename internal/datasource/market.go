package datasource

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockpulse/internal/cache"
	"github.com/seenimoa/stockpulse/internal/retry"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// MinDataPoints is the fewest valid closes statistics are computed from.
const MinDataPoints = 5

// tradingDaysPerYear annualizes daily volatility.
const tradingDaysPerYear = 252

// QuoteProvider returns a daily closing-price series for a symbol over the
// lookback window implied by horizon.
type QuoteProvider interface {
	Name() string
	DailyCloses(ctx context.Context, symbol string, horizon models.Horizon) ([]models.PricePoint, error)
}

// MarketFetcher reduces a provider's price history to StockStatistics.
type MarketFetcher struct {
	provider QuoteProvider
	cache    *cache.Store
	policy   retry.Policy
	log      zerolog.Logger
}

// NewMarketFetcher creates a fetcher that retries provider calls per policy
// and caches statistics per (symbol, horizon).
func NewMarketFetcher(provider QuoteProvider, store *cache.Store, policy retry.Policy, log zerolog.Logger) *MarketFetcher {
	return &MarketFetcher{
		provider: provider,
		cache:    store,
		policy:   policy,
		log:      log.With().Str("component", "market").Str("provider", provider.Name()).Logger(),
	}
}

// Stats returns statistics for symbol, or ErrNoData when fewer than
// MinDataPoints valid closes are available.
func (m *MarketFetcher) Stats(ctx context.Context, symbol string, horizon models.Horizon) (*models.StockStatistics, error) {
	key := cache.Key(models.SignalMarket, symbol+"|"+string(horizon))

	var cached models.StockStatistics
	if m.cache.Get(ctx, key, &cached) {
		m.log.Debug().Str("symbol", symbol).Msg("market stats cache hit")
		return &cached, nil
	}

	var points []models.PricePoint
	err := retry.Do(ctx, m.policy, func(ctx context.Context) error {
		var err error
		points, err = m.provider.DailyCloses(ctx, symbol, horizon)
		return retryable(err)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch closes for %s: %w", symbol, err)
	}

	stats, err := ComputeStatistics(ValidCloses(points))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	_ = m.cache.Put(ctx, key, stats)
	return stats, nil
}

// ValidCloses drops missing, non-finite and non-positive closes.
func ValidCloses(points []models.PricePoint) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Close == nil {
			continue
		}
		c := *p.Close
		if math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ComputeStatistics derives growth and annualized volatility from closes in
// chronological order. Volatility uses the population standard deviation of
// daily returns.
func ComputeStatistics(closes []float64) (*models.StockStatistics, error) {
	n := len(closes)
	if n < MinDataPoints {
		return nil, fmt.Errorf("%w: %d valid closes, need %d", ErrNoData, n, MinDataPoints)
	}

	last := closes[n-1]
	lookback := min(5, n-1)

	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	return &models.StockStatistics{
		RecentGrowth:     (last/closes[n-1-lookback] - 1) * 100,
		HistoricalGrowth: (last/closes[0] - 1) * 100,
		Volatility:       math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear),
		DataPoints:       n,
	}, nil
}
