package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/stockpulse/internal/cache"
	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/internal/recommend"
	"github.com/seenimoa/stockpulse/pkg/models"
)

type fakePipeline struct {
	mu        sync.Mutex
	companies []string
	horizon   string
}

func (f *fakePipeline) Recommend(_ context.Context, companies []string, horizon string) models.RecommendationResponse {
	f.mu.Lock()
	f.companies, f.horizon = companies, horizon
	f.mu.Unlock()

	h := models.ParseHorizon(horizon)
	meta := models.NewMetadata(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), h)
	if len(companies) == 0 {
		return models.RecommendationResponse{Status: models.StatusError, Recommendations: []models.Recommendation{}, Metadata: meta, Message: recommend.MsgNoCompanies}
	}
	return models.RecommendationResponse{
		Status:          models.StatusSuccess,
		Recommendations: []models.Recommendation{{Company: companies[0], Score: 68}},
		Metadata:        meta,
	}
}

func testServer(t *testing.T, opts ...Option) (*Server, *fakePipeline) {
	t.Helper()
	pipeline := &fakePipeline{}
	cfg := config.Default()
	srv := NewServer(cfg, pipeline, NewWSHub(), zerolog.Nop(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.wsHub.Run(ctx)
	return srv, pipeline
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := do(t, srv, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp APIResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "ok", resp.Data.(map[string]any)["status"])
	}
}

func TestPostRecommendations(t *testing.T) {
	srv, pipeline := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/recommendations", `{"companies":["AAPL","MSFT"],"horizon":"long-term"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp models.RecommendationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, models.HorizonLongTerm, resp.Metadata.Horizon)
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, "AAPL", resp.Recommendations[0].Company)

	assert.Equal(t, []string{"AAPL", "MSFT"}, pipeline.companies)
	assert.Equal(t, "long-term", pipeline.horizon)
}

func TestPostRecommendationsValidation(t *testing.T) {
	srv, _ := testServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/recommendations", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/recommendations", `{"companies":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp models.RecommendationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, recommend.MsgNoCompanies, resp.Message)
	assert.NotNil(t, resp.Recommendations)
}

func TestGetRecommendations(t *testing.T) {
	srv, pipeline := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/recommendations?symbols=nvda,%20tsla&horizon=short-term", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"nvda", "tsla"}, pipeline.companies)
	assert.Equal(t, "short-term", pipeline.horizon)
}

func TestConfigKeysAreMasked(t *testing.T) {
	srv, _ := testServer(t)
	srv.cfg.Rationale.OpenAIKey = "sk-1234567890abcdef"

	rec := do(t, srv, http.MethodGet, "/api/v1/config/keys", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "1234567890")
	assert.Contains(t, rec.Body.String(), "sk-...def")
}

func TestClearCache(t *testing.T) {
	srv, _ := testServer(t)
	rec := do(t, srv, http.MethodDelete, "/api/v1/cache", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	backend := cache.NewMemoryBackend()
	store := cache.New(backend, time.Minute, zerolog.Nop())
	require.NoError(t, store.Put(context.Background(), cache.Key("news", "AAPL"), []string{"x"}))

	srv, _ = testServer(t, WithCache(store))
	rec = do(t, srv, http.MethodDelete, "/api/v1/cache", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, backend.Len())
}

func TestWebSocketReceivesProgress(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.wsHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.wsHub.Observe(recommend.Event{Type: recommend.EventCompanyScored, BatchID: "b1", Company: "AAPL", Score: 68, Done: 1, Total: 2})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string          `json:"type"`
		Data recommend.Event `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "company_scored", msg.Type)
	assert.Equal(t, "AAPL", msg.Data.Company)
	assert.Equal(t, 2, msg.Data.Total)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	cfg := config.Default()
	cfg.API.CORSOrigins = []string{"https://app.example"}
	srv := NewServer(cfg, &fakePipeline{}, NewWSHub(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.wsHub.Run(ctx)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, srv.wsHub.ClientCount())

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://APP.example"}})
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.wsHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}
