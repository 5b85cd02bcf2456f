package rationale

import (
	"context"
	"strings"
	"text/template"

	"github.com/seenimoa/stockpulse/pkg/models"
)

const summaryTemplate = `{{.Company}} scored {{printf "%.1f" .Score}} ({{.Band}}) from {{.Count}} recent item{{if ne .Count 1}}s{{end}}.{{if .Headline}} Latest: "{{.Headline}}".{{end}}`

var summary = template.Must(template.New("summary").Parse(summaryTemplate))

const maxHeadline = 120

// Template is a deterministic Explainer that needs no network access.
type Template struct{}

// NewTemplate returns a template explainer.
func NewTemplate() *Template { return &Template{} }

// Explain renders a one-line summary naming the score band and the most
// recent headline.
func (Template) Explain(_ context.Context, company string, items []models.TextItem, score float64) (string, error) {
	data := struct {
		Company  string
		Score    float64
		Band     string
		Count    int
		Headline string
	}{
		Company:  company,
		Score:    score,
		Band:     Band(score),
		Count:    len(items),
		Headline: headline(items),
	}

	var b strings.Builder
	if err := summary.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Band names the range a composite score falls in.
func Band(score float64) string {
	switch {
	case score >= 70:
		return "strong"
	case score >= 55:
		return "favourable"
	case score >= 45:
		return "neutral"
	case score >= 30:
		return "weak"
	default:
		return "poor"
	}
}

// headline picks the first titled item, or the first snippet. Items arrive
// newest first.
func headline(items []models.TextItem) string {
	for _, it := range items {
		if t := strings.TrimSpace(it.Title); t != "" {
			return shorten(t)
		}
	}
	for _, it := range items {
		if s := it.Snippet(); s != "" {
			return shorten(s)
		}
	}
	return ""
}

func shorten(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxHeadline {
		return s
	}
	return strings.TrimSpace(string(r[:maxHeadline])) + "..."
}
