package sentiment

import (
	"context"
	"strings"
	"unicode"

	"github.com/seenimoa/stockpulse/pkg/models"
)

// Word lists are lowercase single tokens.
var positiveWords = []string{
	"bullish", "rally", "rallies", "surge", "surges", "upbeat", "positive",
	"growth", "upgrade", "upgraded", "outperform", "buy", "strong", "recovery",
	"breakout", "beat", "beats", "exceeds", "expansion", "profit", "profits",
	"dividend", "accumulate", "gain", "gains", "soar", "soars", "record",
	"optimistic", "boost", "jump", "jumps", "rise", "rises", "robust", "win",
}

var negativeWords = []string{
	"bearish", "crash", "plunge", "plunges", "slump", "negative", "downgrade",
	"downgraded", "underperform", "sell", "weak", "decline", "declines", "loss",
	"losses", "selloff", "fall", "falls", "correction", "default", "fraud",
	"scam", "investigation", "cut", "miss", "misses", "warning", "concern",
	"drop", "drops", "lawsuit", "fear", "recession", "layoffs", "bankruptcy",
	"slowdown", "pessimistic",
}

// Lexicon is the deterministic word-count strategy.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

// NewLexicon creates a lexicon analyzer with the built-in word lists.
func NewLexicon() *Lexicon {
	return NewLexiconWithWords(positiveWords, negativeWords)
}

// NewLexiconWithWords creates a lexicon analyzer with custom word lists.
func NewLexiconWithWords(positive, negative []string) *Lexicon {
	l := &Lexicon{
		positive: make(map[string]struct{}, len(positive)),
		negative: make(map[string]struct{}, len(negative)),
	}
	for _, w := range positive {
		l.positive[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range negative {
		l.negative[strings.ToLower(w)] = struct{}{}
	}
	return l
}

// Name returns the strategy name.
func (l *Lexicon) Name() string { return "lexicon" }

// Analyze implements Analyzer.
func (l *Lexicon) Analyze(_ context.Context, snippets []string) models.SentimentAggregate {
	units := make([]unit, 0, len(snippets))
	for _, s := range snippets {
		units = append(units, l.classify(s))
	}
	return aggregate(units)
}

// Classify implements Classifier. The lexicon never fails.
func (l *Lexicon) Classify(ctx context.Context, snippets []string) (models.SentimentAggregate, error) {
	return l.Analyze(ctx, snippets), nil
}

// ScoreSnippet returns pos/(pos+neg) for one snippet and the number of hits.
// A snippet without hits scores 0.5.
func (l *Lexicon) ScoreSnippet(s string) (score float64, hits int) {
	var pos, neg int
	for _, tok := range tokenize(s) {
		if _, ok := l.positive[tok]; ok {
			pos++
		}
		if _, ok := l.negative[tok]; ok {
			neg++
		}
	}
	hits = pos + neg
	if hits == 0 {
		return 0.5, 0
	}
	return float64(pos) / float64(hits), hits
}

func (l *Lexicon) classify(s string) unit {
	score, hits := l.ScoreSnippet(s)
	if hits == 0 {
		return unit{score: 0.5, label: labelNeutral}
	}
	return unit{score: score, label: bucket(score)}
}

// tokenize lowercases s and splits it into letter/digit runs.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
