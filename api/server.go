// Package api provides the HTTP server for stockpulse.
//
// It exposes the recommendation pipeline over REST and streams batch
// progress to WebSocket clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/stockpulse/internal/cache"
	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/internal/recommend"
	"github.com/seenimoa/stockpulse/pkg/models"
	"github.com/seenimoa/stockpulse/pkg/utils"
)

// Version is reported by /health. It is set by the CLI at startup.
var Version = "dev"

// Pipeline scores a batch of companies. *app.App satisfies it.
type Pipeline interface {
	Recommend(ctx context.Context, companies []string, horizon string) models.RecommendationResponse
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	pipeline Pipeline
	cache    *cache.Store
	wsHub    *WSHub
	log      zerolog.Logger
	started  time.Time
}

// Option configures the server.
type Option func(*Server)

// WithCache enables DELETE /api/v1/cache.
func WithCache(store *cache.Store) Option {
	return func(s *Server) { s.cache = store }
}

// NewServer creates a configured API server with all routes and middleware.
// The hub should also be passed to the pipeline as its progress observer.
func NewServer(cfg *config.Config, pipeline Pipeline, hub *WSHub, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		wsHub:    hub,
		log:      log.With().Str("component", "api").Logger(),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/recommendations", s.handlePostRecommendations)
		r.Get("/recommendations", s.handleGetRecommendations)

		r.Get("/config/keys", s.handleGetConfigKeys)
		r.Delete("/cache", s.handleClearCache)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// APIResponse is the JSON envelope for non-recommendation endpoints.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RecommendationRequest is the body for POST /api/v1/recommendations.
type RecommendationRequest struct {
	Companies []string `json:"companies"`
	Horizon   string   `json:"horizon,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":     "ok",
			"version":    Version,
			"uptime":     time.Since(s.started).Round(time.Second).String(),
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handlePostRecommendations(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.recommend(w, r, req)
}

func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.recommend(w, r, RecommendationRequest{
		Companies: utils.SplitSymbols(q.Get("symbols")),
		Horizon:   q.Get("horizon"),
	})
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request, req RecommendationRequest) {
	resp := s.pipeline.Recommend(r.Context(), req.Companies, req.Horizon)

	status := http.StatusOK
	if resp.Status == models.StatusError && resp.Message == recommend.MsgNoCompanies {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// handleGetConfigKeys returns the status of all provider credentials.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotImplemented, "cache management is not enabled")
		return
	}
	if err := s.cache.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   strings.TrimSpace(msg),
	})
}

// requestLogger logs one line per request with zerolog.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("elapsed", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
