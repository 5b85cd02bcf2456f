package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seenimoa/stockpulse/pkg/models"
)

func TestPrintTable(t *testing.T) {
	resp := models.RecommendationResponse{
		Status: models.StatusSuccess,
		Recommendations: []models.Recommendation{{
			Company: "AAPL",
			Score:   68,
			Details: models.RecommendationDetails{
				StockData:  models.StockStatistics{RecentGrowth: 10, HistoricalGrowth: -5, Volatility: 0.2},
				Components: models.ComponentScores{SentimentScore: 70},
				Rationale:  "Coverage is upbeat.",
				Sources:    &models.SourceCounts{News: 2, SocialPosts: 1},
			},
		}},
		Metadata: models.ResponseMetadata{Horizon: models.HorizonShortTerm, Timestamp: "2024-03-08T00:00:00Z"},
	}

	var buf bytes.Buffer
	printTable(&buf, resp)
	out := buf.String()

	assert.Contains(t, out, "Horizon: short-term")
	assert.Regexp(t, `1\s+AAPL\s+68\.0\s+\+10\.00%\s+-5\.00%\s+0\.20\s+70\.0\s+3`, out)
	assert.Contains(t, out, "AAPL: Coverage is upbeat.")
}

func TestPrintTableSkipsErrors(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, models.RecommendationResponse{Status: models.StatusError, Message: "No valid companies provided"})
	assert.Empty(t, buf.String())
}
