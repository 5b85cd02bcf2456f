// Package models defines the data structures shared by the stockpulse
// pipeline and its consumers. JSON field names are the wire contract
// rendered by the presentation layer.
package models

import (
	"strings"
	"time"
)

// Horizon is the investment time frame. It selects both the price lookback
// window and the scoring weight profile.
type Horizon string

const (
	HorizonShortTerm Horizon = "short-term"
	HorizonLongTerm  Horizon = "long-term"
)

// ParseHorizon maps user input to a Horizon. Empty input yields short-term;
// anything other than "short-term" is treated as long-term.
func ParseHorizon(s string) Horizon {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(HorizonShortTerm):
		return HorizonShortTerm
	default:
		return HorizonLongTerm
	}
}

// IsShortTerm reports whether h selects the short-term profile.
func (h Horizon) IsShortTerm() bool { return h == HorizonShortTerm }

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// StockStatistics is derived from a closing-price series for one symbol and horizon.
type StockStatistics struct {
	RecentGrowth     float64 `json:"recentGrowth"`     // percent
	HistoricalGrowth float64 `json:"historicalGrowth"` // percent
	Volatility       float64 `json:"volatility"`       // annualized
	DataPoints       int     `json:"dataPoints"`
}

// SentimentAggregate summarizes the classification of a set of text snippets.
type SentimentAggregate struct {
	Score    float64 `json:"score"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
	Total    int     `json:"total"`
}

// NeutralSentiment is the aggregate used when there is nothing to classify.
func NeutralSentiment() SentimentAggregate {
	return SentimentAggregate{Score: 0.5, Neutral: 1, Total: 1}
}

// ComponentScores are the normalized [0,100] sub-scores of a recommendation.
type ComponentScores struct {
	RecentPerformance float64 `json:"recentPerformance"`
	HistoricalGrowth  float64 `json:"historicalGrowth"`
	SentimentScore    float64 `json:"sentimentScore"`
	RiskFactor        float64 `json:"riskFactor"`
}

// SourceCounts records how many text items each signal source contributed.
type SourceCounts struct {
	News        int `json:"news"`
	Articles    int `json:"articles"`
	SocialPosts int `json:"socialPosts"`
}

// Total returns the number of items across all sources.
func (s SourceCounts) Total() int { return s.News + s.Articles + s.SocialPosts }

// RecommendationDetails carries the inputs behind a composite score.
type RecommendationDetails struct {
	StockData  StockStatistics    `json:"stockData"`
	Sentiment  SentimentAggregate `json:"sentiment"`
	Components ComponentScores    `json:"components"`
	Rationale  string             `json:"rationale,omitempty"`
	Sources    *SourceCounts      `json:"sources,omitempty"`
}

// Recommendation is the per-company output record.
type Recommendation struct {
	Company string                `json:"company"`
	Score   float64               `json:"score"`
	Details RecommendationDetails `json:"details"`
}

// ResponseMetadata describes when and for which horizon a response was built.
type ResponseMetadata struct {
	Timestamp string  `json:"timestamp"` // ISO-8601
	Horizon   Horizon `json:"horizon"`
}

// RecommendationResponse is the envelope returned to the UI layer.
type RecommendationResponse struct {
	Status          string           `json:"status"`
	Recommendations []Recommendation `json:"recommendations"`
	Metadata        ResponseMetadata `json:"metadata"`
	Message         string           `json:"message,omitempty"`
}

// NewMetadata stamps a response with t formatted as RFC 3339 in UTC.
func NewMetadata(t time.Time, h Horizon) ResponseMetadata {
	return ResponseMetadata{
		Timestamp: t.UTC().Format(time.RFC3339Nano),
		Horizon:   h,
	}
}
