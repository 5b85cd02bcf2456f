package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// YFinance implements QuoteProvider using the Yahoo Finance chart API.
type YFinance struct {
	baseURL string
	client  *httpClient
}

// NewYFinance creates a Yahoo Finance quote provider.
func NewYFinance(cfg config.QuoteConfig) *YFinance {
	return &YFinance{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  newHTTPClient(cfg.Timeout, cfg.RateLimit),
	}
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfIndicators struct {
	Quote []yfQuote `json:"quote"`
}

type yfQuote struct {
	Close []*float64 `json:"close"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yfRange maps a horizon to the chart lookback window.
func yfRange(h models.Horizon) string {
	if h.IsShortTerm() {
		return "1mo"
	}
	return "5y"
}

// DailyCloses returns daily closes for symbol over the horizon window.
func (y *YFinance) DailyCloses(ctx context.Context, symbol string, horizon models.Horizon) ([]models.PricePoint, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		y.baseURL, url.PathEscape(symbol), yfRange(horizon))

	var resp yfChartResponse
	if err := y.client.getJSON(ctx, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}

	if resp.Chart.Error != nil {
		if strings.EqualFold(resp.Chart.Error.Code, "Not Found") {
			return nil, fmt.Errorf("%w: %s", ErrNoData, resp.Chart.Error.Description)
		}
		return nil, fmt.Errorf("yahoo chart %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}

	return parseYFCloses(resp)
}

// parseYFCloses flattens a chart response into price points. A missing
// result or quote block is a structural error.
func parseYFCloses(resp yfChartResponse) ([]models.PricePoint, error) {
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: chart.result is empty", ErrMalformed)
	}
	r := resp.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 || r.Indicators.Quote[0].Close == nil {
		return nil, fmt.Errorf("%w: chart.result[0].indicators.quote[0].close missing", ErrMalformed)
	}

	closes := r.Indicators.Quote[0].Close
	points := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		points[i].Close = c
		if i < len(r.Timestamp) {
			points[i].Date = time.Unix(r.Timestamp[i], 0).UTC()
		}
	}
	return points, nil
}
