// Package datasource provides the market-data fetcher and the signal fetchers
// (news, long-form articles, social posts) that feed the recommendation
// pipeline. Every adapter talks to its provider over HTTP behind a narrow
// interface so vendors stay interchangeable.
package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/seenimoa/stockpulse/internal/retry"
)

// --- Sentinel errors ---

// ErrNoData is returned when a provider has too little data to compute a result.
var ErrNoData = errors.New("no data")

// ErrMalformed is returned when a provider response is missing expected fields.
var ErrMalformed = errors.New("malformed provider response")

// ErrAuth is returned when a provider rejects or lacks credentials.
var ErrAuth = errors.New("provider authentication failed")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// Temporary reports whether a retry may succeed: rate limiting and server errors.
func (e *ErrHTTP) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// retryable marks errors that retrying cannot fix as permanent.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	var httpErr *ErrHTTP
	if errors.As(err, &httpErr) && !httpErr.Temporary() {
		return retry.Permanent(err)
	}
	if errors.Is(err, ErrMalformed) || errors.Is(err, ErrNoData) || errors.Is(err, ErrAuth) {
		return retry.Permanent(err)
	}
	return err
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// httpClient pairs a bounded-timeout HTTP client with a per-provider rate limiter.
type httpClient struct {
	http    *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(timeout time.Duration, rps float64) *httpClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		http:    &http.Client{Timeout: timeout},
		limiter: newLimiter(rps),
	}
}

// newLimiter returns a limiter allowing rps requests per second. A
// non-positive rps disables limiting.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// getJSON performs a GET and decodes a JSON body into dest.
func (c *httpClient) getJSON(ctx context.Context, url string, headers map[string]string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, headers, dest)
}

// postJSON performs a POST with a JSON body and decodes a JSON response into dest.
func (c *httpClient) postJSON(ctx context.Context, url string, body any, headers map[string]string, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, headers, dest)
}

func (c *httpClient) do(req *http.Request, headers map[string]string, dest any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}

	// Set default headers.
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformed, req.URL.Path, err)
	}
	return nil
}
