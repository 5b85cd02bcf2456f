package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/stockpulse/internal/cache"
	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/pkg/models"
)

type fakeQuotes struct{ calls atomic.Int32 }

func (f *fakeQuotes) Name() string { return "fake" }

func (f *fakeQuotes) DailyCloses(_ context.Context, symbol string, _ models.Horizon) ([]models.PricePoint, error) {
	f.calls.Add(1)
	if symbol != "AAPL" {
		return nil, errors.New("unknown symbol")
	}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var points []models.PricePoint
	for i, c := range []float64{100, 101, 102, 103, 104, 105, 106} {
		v := c
		points = append(points, models.PricePoint{Date: day.AddDate(0, 0, i), Close: &v})
	}
	return points, nil
}

func offlineConfig() *config.Config {
	cfg := config.Default()
	cfg.Providers.News.Enabled = false
	cfg.Providers.Articles.Enabled = false
	cfg.Providers.Social.Enabled = false
	cfg.Pipeline.RetryInitialDelay = time.Millisecond
	return cfg
}

func TestAppRecommend(t *testing.T) {
	quotes := &fakeQuotes{}
	a, err := New(context.Background(), offlineConfig(), zerolog.Nop(), WithQuoteProvider(quotes))
	require.NoError(t, err)
	defer a.Close()

	resp := a.Recommend(context.Background(), []string{"aapl", "zzzz"}, "short-term")
	require.Equal(t, models.StatusSuccess, resp.Status)
	require.Len(t, resp.Recommendations, 1)

	rec := resp.Recommendations[0]
	assert.Equal(t, "AAPL", rec.Company)
	assert.Equal(t, 50.0, rec.Details.Components.SentimentScore)
	assert.Empty(t, a.Signals())

	// Second request is served from cache.
	before := quotes.calls.Load()
	a.Recommend(context.Background(), []string{"AAPL"}, "short-term")
	assert.Equal(t, before, quotes.calls.Load())
}

func TestAppRejectsInvalidConfig(t *testing.T) {
	cfg := offlineConfig()
	cfg.Cache.Backend = "etcd"
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestAppSkipsSourcesWithoutCredentials(t *testing.T) {
	cfg := offlineConfig()
	cfg.Providers.News.Enabled = true
	cfg.Providers.Social.Enabled = true
	cfg.Providers.Articles.Enabled = true

	a, err := New(context.Background(), cfg, zerolog.Nop(), WithQuoteProvider(&fakeQuotes{}))
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, []string{models.SignalArticles}, a.Signals())
}

func TestOpenBackend(t *testing.T) {
	b, err := OpenBackend(context.Background(), config.CacheConfig{Backend: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryBackend{}, b)

	b, err = OpenBackend(context.Background(), config.CacheConfig{Backend: "badger", BadgerPath: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)
	_, ok := b.(cache.Maintainer)
	assert.True(t, ok)
	require.NoError(t, b.Close())

	_, err = OpenBackend(context.Background(), config.CacheConfig{Backend: "etcd"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestMaintainWithoutSupport(t *testing.T) {
	a, err := New(context.Background(), offlineConfig(), zerolog.Nop(),
		WithQuoteProvider(&fakeQuotes{}), WithCacheBackend(cache.NewMemoryBackend()))
	require.NoError(t, err)
	assert.NoError(t, a.Maintain())
	assert.NoError(t, a.Close())
}

func TestStartMaintenance(t *testing.T) {
	a, err := New(context.Background(), offlineConfig(), zerolog.Nop(), WithQuoteProvider(&fakeQuotes{}))
	require.NoError(t, err)
	stop, err := a.StartMaintenance("@every 1m")
	require.NoError(t, err)
	stop()
	require.NoError(t, a.Close())

	backend, err := cache.OpenBadger(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	a, err = New(context.Background(), offlineConfig(), zerolog.Nop(),
		WithQuoteProvider(&fakeQuotes{}), WithCacheBackend(backend))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.StartMaintenance("not a schedule")
	assert.Error(t, err)

	stop, err = a.StartMaintenance("@every 1h")
	require.NoError(t, err)
	stop()
	assert.NoError(t, a.Maintain())
}
