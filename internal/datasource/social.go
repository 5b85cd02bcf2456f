package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// sessionTTL bounds how long an access token is reused. Bluesky access
// tokens live about two hours.
const sessionTTL = 90 * time.Minute

// socialQueries are the search variants issued per symbol.
var socialQueries = []string{"$%s", "%s stock"}

// Social searches public posts on a Bluesky (AT Protocol) service. It logs in
// with an app password to obtain a short-lived session token.
type Social struct {
	baseURL    string
	identifier string
	password   string
	maxItems   int
	client     *httpClient
	now        func() time.Time
	log        zerolog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// SocialOption configures Social.
type SocialOption func(*Social)

// WithSocialClock replaces time.Now for token expiry.
func WithSocialClock(now func() time.Time) SocialOption {
	return func(s *Social) { s.now = now }
}

// NewSocial creates a social-post source.
func NewSocial(cfg config.SocialConfig, log zerolog.Logger, opts ...SocialOption) *Social {
	s := &Social{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		identifier: cfg.Identifier,
		password:   cfg.Password,
		maxItems:   cfg.MaxItems,
		client:     newHTTPClient(cfg.Timeout, cfg.RateLimit),
		now:        time.Now,
		log:        log.With().Str("component", "social").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the signal name.
func (s *Social) Name() string { return models.SignalSocial }

type sessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	Handle    string `json:"handle"`
	Did       string `json:"did"`
}

type searchPostsResponse struct {
	Posts []struct {
		URI    string `json:"uri"`
		Record struct {
			Text      string `json:"text"`
			CreatedAt string `json:"createdAt"`
		} `json:"record"`
		IndexedAt string `json:"indexedAt"`
	} `json:"posts"`
}

// session returns a valid access token, logging in when none is cached or
// the cached one has expired.
func (s *Social) session(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, nil
	}
	if s.identifier == "" || s.password == "" {
		return "", fmt.Errorf("social: %w: no credentials configured", ErrAuth)
	}

	var resp sessionResponse
	err := s.client.postJSON(ctx, s.baseURL+"/com.atproto.server.createSession",
		sessionRequest{Identifier: s.identifier, Password: s.password}, nil, &resp)
	if err != nil {
		return "", fmt.Errorf("social: %w: create session: %v", ErrAuth, err)
	}
	if resp.AccessJwt == "" {
		return "", fmt.Errorf("social: %w: empty access token", ErrAuth)
	}

	s.token = resp.AccessJwt
	s.expiresAt = s.now().Add(sessionTTL)
	s.log.Debug().Str("handle", resp.Handle).Msg("social session created")
	return s.token, nil
}

func (s *Social) invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// Fetch logs in if needed, runs every query variant concurrently and returns
// posts that mention symbol, deduplicated by post URI.
func (s *Social) Fetch(ctx context.Context, symbol string) ([]models.TextItem, error) {
	token, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		all      []models.TextItem
		failures int
		lastErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, pattern := range socialQueries {
		query := fmt.Sprintf(pattern, symbol)
		g.Go(func() error {
			items, err := s.search(gctx, token, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				lastErr = err
				return nil // non-fatal
			}
			all = append(all, items...)
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(socialQueries) {
		var httpErr *ErrHTTP
		if errors.As(lastErr, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			s.invalidate()
		}
		return nil, fmt.Errorf("social search %s: %w", symbol, lastErr)
	}

	relevant := all[:0]
	for _, it := range all {
		if mentions(it.Text, symbol) {
			relevant = append(relevant, it)
		}
	}

	relevant = dedupe(relevant, func(it models.TextItem) string { return it.URL })
	sortByDate(relevant)
	return limit(relevant, s.maxItems), nil
}

func (s *Social) search(ctx context.Context, token, query string) ([]models.TextItem, error) {
	q := url.Values{}
	q.Set("q", query)
	if s.maxItems > 0 {
		q.Set("limit", strconv.Itoa(min(s.maxItems, 100)))
	}
	u := s.baseURL + "/app.bsky.feed.searchPosts?" + q.Encode()

	var resp searchPostsResponse
	headers := map[string]string{"Authorization": "Bearer " + token}
	if err := s.client.getJSON(ctx, u, headers, &resp); err != nil {
		return nil, err
	}

	items := make([]models.TextItem, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		text := strings.TrimSpace(p.Record.Text)
		if text == "" {
			continue
		}
		it := models.TextItem{Text: text, URL: p.URI}
		if t, err := time.Parse(time.RFC3339, p.IndexedAt); err == nil {
			t = t.UTC()
			it.Datetime = &t
		}
		items = append(items, it)
	}
	return items, nil
}
