package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seenimoa/stockpulse/internal/config"
	"github.com/seenimoa/stockpulse/pkg/models"
)

func TestScoreWorkedExample(t *testing.T) {
	stats := models.StockStatistics{RecentGrowth: 10, HistoricalGrowth: 25, Volatility: 0.2, DataPoints: 30}
	sentiment := models.SentimentAggregate{Score: 0.6, Positive: 6, Negative: 2, Neutral: 2, Total: 10}

	res := Default().Score(stats, sentiment, models.HorizonShortTerm)

	assert.InDelta(t, 75, res.Components.RecentPerformance, 1e-9)
	assert.InDelta(t, 75, res.Components.HistoricalGrowth, 1e-9)
	assert.InDelta(t, 70, res.Components.SentimentScore, 1e-9)
	assert.InDelta(t, 20, res.Components.RiskFactor, 1e-9)
	assert.Equal(t, 68.0, res.Score)
}

func TestScoreLongTermWeights(t *testing.T) {
	stats := models.StockStatistics{RecentGrowth: 10, HistoricalGrowth: 25, Volatility: 0.2}
	sentiment := models.SentimentAggregate{Positive: 6, Negative: 2, Neutral: 2, Total: 10}

	// 75*.2 + 75*.4 + 70*.2 + 20*.2 = 15 + 30 + 14 + 4
	res := Default().Score(stats, sentiment, models.HorizonLongTerm)
	assert.Equal(t, 63.0, res.Score)
}

func TestScoreRoundsToOneDecimal(t *testing.T) {
	// 75*.4 + 75*.2 + 50*.3 + 23.4*.1 = 62.34
	stats := models.StockStatistics{RecentGrowth: 10, HistoricalGrowth: 25, Volatility: 0.234}
	res := Default().Score(stats, models.SentimentAggregate{}, models.HorizonShortTerm)
	assert.Equal(t, 62.3, res.Score)
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{62.34, 62.3},
		{62.36, 62.4},
		{0.25, 0.3},
		{-0.25, -0.3},
		{68, 68},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round1(tt.in), "Round1(%v)", tt.in)
	}
}

func TestNormalizeClamps(t *testing.T) {
	tests := []struct {
		name       string
		stats      models.StockStatistics
		wantRecent float64
		wantHist   float64
		wantRisk   float64
	}{
		{"all high", models.StockStatistics{RecentGrowth: 35, HistoricalGrowth: 80, Volatility: 1.5}, 100, 100, 100},
		{"all low", models.StockStatistics{RecentGrowth: -25, HistoricalGrowth: -70, Volatility: -0.1}, 0, 0, 0},
		{"edges", models.StockStatistics{RecentGrowth: 20, HistoricalGrowth: -50}, 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(tt.stats, models.NeutralSentiment())
			assert.Equal(t, tt.wantRecent, c.RecentPerformance)
			assert.Equal(t, tt.wantHist, c.HistoricalGrowth)
			assert.InDelta(t, tt.wantRisk, c.RiskFactor, 1e-9)
			assert.Equal(t, 50.0, c.SentimentScore)
		})
	}
}

func TestSentimentComponent(t *testing.T) {
	assert.Equal(t, 50.0, SentimentComponent(models.SentimentAggregate{}))
	assert.Equal(t, 50.0, SentimentComponent(models.NeutralSentiment()))
	assert.Equal(t, 100.0, SentimentComponent(models.SentimentAggregate{Positive: 3, Total: 3}))
	assert.Equal(t, 0.0, SentimentComponent(models.SentimentAggregate{Negative: 2, Total: 2}))
}

func TestWeightsFor(t *testing.T) {
	e := Default()
	assert.Equal(t, ShortTermWeights(), e.WeightsFor(models.HorizonShortTerm))
	assert.Equal(t, LongTermWeights(), e.WeightsFor(models.HorizonLongTerm))
	assert.Equal(t, LongTermWeights(), e.WeightsFor(models.ParseHorizon("medium")))
}

func TestFromConfig(t *testing.T) {
	e := FromConfig(config.WeightsConfig{
		ShortTerm: config.WeightProfile{RecentPerformance: 1},
		LongTerm:  config.WeightProfile{Risk: 1},
	})
	stats := models.StockStatistics{RecentGrowth: 0, Volatility: 0.3}

	assert.Equal(t, 50.0, e.Score(stats, models.NeutralSentiment(), models.HorizonShortTerm).Score)
	assert.Equal(t, 30.0, e.Score(stats, models.NeutralSentiment(), models.HorizonLongTerm).Score)
}

func TestRankIsStableDescending(t *testing.T) {
	recs := []models.Recommendation{
		{Company: "A", Score: 50},
		{Company: "B", Score: 70},
		{Company: "C", Score: 50},
		{Company: "D", Score: 90},
	}
	Rank(recs)

	var order []string
	for _, r := range recs {
		order = append(order, r.Company)
	}
	assert.Equal(t, []string{"D", "B", "A", "C"}, order)
}
