package models

import (
	"strings"
	"time"
)

// Signal source names. They double as cache namespaces.
const (
	SignalMarket    = "market"
	SignalNews      = "news"
	SignalArticles  = "articles"
	SignalSocial    = "socialPosts"
	SignalSentiment = "sentiment"
)

// TextItem is a short piece of text about a company from any signal source.
type TextItem struct {
	Title    string     `json:"title,omitempty"`
	Text     string     `json:"text"`
	URL      string     `json:"url,omitempty"`
	Datetime *time.Time `json:"datetime,omitempty"`
}

// Snippet joins title and body into the string fed to sentiment analysis.
func (t TextItem) Snippet() string {
	title := strings.TrimSpace(t.Title)
	text := strings.TrimSpace(t.Text)
	switch {
	case title == "":
		return text
	case text == "":
		return title
	default:
		return title + ". " + text
	}
}

// Snippets returns the non-empty snippets of items in order.
func Snippets(items []TextItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := it.Snippet(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PricePoint is one daily close. Close is nil when the provider reported no value.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close *float64  `json:"close"`
}
