// Package scoring combines market statistics and sentiment into a weighted
// composite recommendation score.
package scoring

import (
	"math"
	"sort"

	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/pkg/models"
)

// Weights weight the four normalized components.
type Weights struct {
	RecentPerformance float64
	HistoricalGrowth  float64
	Sentiment         float64
	Risk              float64
}

// ShortTermWeights favour recent performance and sentiment.
func ShortTermWeights() Weights {
	return Weights{RecentPerformance: 0.4, HistoricalGrowth: 0.2, Sentiment: 0.3, Risk: 0.1}
}

// LongTermWeights favour historical growth.
func LongTermWeights() Weights {
	return Weights{RecentPerformance: 0.2, HistoricalGrowth: 0.4, Sentiment: 0.2, Risk: 0.2}
}

// Engine scores companies with a weight profile per horizon.
type Engine struct {
	shortTerm Weights
	longTerm  Weights
}

// NewEngine creates an engine with explicit weight profiles.
func NewEngine(shortTerm, longTerm Weights) *Engine {
	return &Engine{shortTerm: shortTerm, longTerm: longTerm}
}

// Default creates an engine with the built-in profiles.
func Default() *Engine {
	return NewEngine(ShortTermWeights(), LongTermWeights())
}

// FromConfig creates an engine from configured weight profiles.
func FromConfig(cfg config.WeightsConfig) *Engine {
	conv := func(p config.WeightProfile) Weights {
		return Weights{
			RecentPerformance: p.RecentPerformance,
			HistoricalGrowth:  p.HistoricalGrowth,
			Sentiment:         p.Sentiment,
			Risk:              p.Risk,
		}
	}
	return NewEngine(conv(cfg.ShortTerm), conv(cfg.LongTerm))
}

// WeightsFor returns the profile for h. Anything but short-term is long-term.
func (e *Engine) WeightsFor(h models.Horizon) Weights {
	if h.IsShortTerm() {
		return e.shortTerm
	}
	return e.longTerm
}

// Result is the output of Score.
type Result struct {
	Components models.ComponentScores
	Score      float64
}

// Score normalizes the inputs and returns the weighted composite rounded to
// one decimal place.
func (e *Engine) Score(stats models.StockStatistics, sentiment models.SentimentAggregate, h models.Horizon) Result {
	c := Normalize(stats, sentiment)
	w := e.WeightsFor(h)

	composite := c.RecentPerformance*w.RecentPerformance +
		c.HistoricalGrowth*w.HistoricalGrowth +
		c.SentimentScore*w.Sentiment +
		c.RiskFactor*w.Risk

	return Result{Components: c, Score: Round1(composite)}
}

// Normalize maps raw statistics onto [0,100] component scores.
// riskFactor grows with volatility: a higher value means a riskier stock.
// Every component is clamped to [0,100].
func Normalize(stats models.StockStatistics, sentiment models.SentimentAggregate) models.ComponentScores {
	return models.ComponentScores{
		RecentPerformance: clamp((stats.RecentGrowth+20)/40*100, 0, 100),
		HistoricalGrowth:  clamp((stats.HistoricalGrowth+50)/100*100, 0, 100),
		SentimentScore:    SentimentComponent(sentiment),
		RiskFactor:        clamp(stats.Volatility*100, 0, 100),
	}
}

// SentimentComponent is 50 plus half the positive-negative balance in
// percentage points. total == 0 means no opinion and maps to 50.
func SentimentComponent(s models.SentimentAggregate) float64 {
	if s.Total <= 0 {
		return 50
	}
	total := float64(s.Total)
	return 50 + (float64(s.Positive)/total-float64(s.Negative)/total)*50
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, x))
}

// Rank sorts recommendations by descending score. Ties keep their input order.
func Rank(recs []models.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
}
