package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/stockpulse/internal/config"
)

const companyNewsJSON = `[
  {"headline": "Apple beats estimates", "summary": "<p>Strong <b>growth</b> in services</p>", "url": "https://example.com/a", "datetime": 1700000000},
  {"headline": "Apple beats estimates (dup)", "summary": "repeat", "url": "https://example.com/a", "datetime": 1700000100},
  {"headline": "", "summary": "", "url": "https://example.com/empty", "datetime": 1700000200},
  {"headline": "Apple faces lawsuit", "summary": "Regulators investigate", "url": "https://example.com/b", "datetime": 1700086400}
]`

func newNewsServer(t *testing.T, handler http.HandlerFunc, key string) *News {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := func() time.Time { return time.Date(2024, 3, 8, 15, 0, 0, 0, time.UTC) }
	cfg := config.NewsConfig{BaseURL: srv.URL, APIKey: key, Timeout: 2 * time.Second, LookbackDays: 7, MaxItems: 10}
	return NewNews(cfg, fastPolicy(), zerolog.Nop(), WithNewsClock(clock))
}

func TestNewsFetch(t *testing.T) {
	var query map[string]string
	n := newNewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company-news", r.URL.Path)
		q := r.URL.Query()
		query = map[string]string{"symbol": q.Get("symbol"), "from": q.Get("from"), "to": q.Get("to"), "token": q.Get("token")}
		assert.Equal(t, "secret", r.Header.Get("X-Finnhub-Token"))
		_, _ = w.Write([]byte(companyNewsJSON))
	}, "secret")

	items, err := n.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"symbol": "AAPL", "from": "2024-03-01", "to": "2024-03-08", "token": ""}, query)

	require.Len(t, items, 2)
	// Newest first.
	assert.Equal(t, "Apple faces lawsuit", items[0].Title)
	assert.Equal(t, "Apple beats estimates", items[1].Title)
	assert.Equal(t, "Strong growth in services", items[1].Text)
	require.NotNil(t, items[1].Datetime)
	assert.Equal(t, int64(1700000000), items[1].Datetime.Unix())
}

func TestNewsTransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	clock := func() time.Time { return time.Date(2024, 3, 8, 15, 0, 0, 0, time.UTC) }
	cfg := config.NewsConfig{BaseURL: base, APIKey: "secret-key", Timeout: time.Second, LookbackDays: 7, MaxItems: 10}
	n := NewNews(cfg, fastPolicy(), zerolog.Nop(), WithNewsClock(clock))

	_, err := n.Fetch(context.Background(), "AAPL")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestNewsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	n := newNewsServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}, "secret")

	items, err := n.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewsDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	n := newNewsServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}, "secret")

	_, err := n.Fetch(context.Background(), "AAPL")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewsRequiresKey(t *testing.T) {
	n := newNewsServer(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected without a key")
	}, "")

	_, err := n.Fetch(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrAuth)
}
