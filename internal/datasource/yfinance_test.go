package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/pkg/models"
)

const chartJSON = `{
  "chart": {
    "result": [{
      "timestamp": [1700000000, 1700086400, 1700172800],
      "indicators": {"quote": [{"close": [100.5, null, 102.25]}]}
    }],
    "error": null
  }
}`

func newYahooServer(t *testing.T, handler http.HandlerFunc) *YFinance {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewYFinance(config.QuoteConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func TestYfRange(t *testing.T) {
	assert.Equal(t, "1mo", yfRange(models.HorizonShortTerm))
	assert.Equal(t, "5y", yfRange(models.HorizonLongTerm))
}

func TestYFinanceDailyCloses(t *testing.T) {
	var gotPath, gotRange, gotInterval string
	y := newYahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		gotInterval = r.URL.Query().Get("interval")
		_, _ = w.Write([]byte(chartJSON))
	})

	points, err := y.DailyCloses(context.Background(), "AAPL", models.HorizonLongTerm)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "5y", gotRange)
	assert.Equal(t, "1d", gotInterval)

	require.Len(t, points, 3)
	require.NotNil(t, points[0].Close)
	assert.Equal(t, 100.5, *points[0].Close)
	assert.Nil(t, points[1].Close)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), points[0].Date)
	assert.Equal(t, []float64{100.5, 102.25}, ValidCloses(points))
}

func TestYFinanceMissingResultIsMalformed(t *testing.T) {
	y := newYahooServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"chart": {"result": [{"indicators": {}}]}}`))
	})

	_, err := y.DailyCloses(context.Background(), "AAPL", models.HorizonShortTerm)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestYFinanceNotFound(t *testing.T) {
	y := newYahooServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}}}`))
	})

	_, err := y.DailyCloses(context.Background(), "ZZZZ", models.HorizonShortTerm)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestYFinanceHTTPError(t *testing.T) {
	y := newYahooServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := y.DailyCloses(context.Background(), "AAPL", models.HorizonShortTerm)
	var httpErr *ErrHTTP
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	assert.False(t, httpErr.Temporary())
}
