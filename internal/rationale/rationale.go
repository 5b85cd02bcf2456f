// Package rationale produces the short narrative attached to each
// recommendation. Generation is best-effort: callers fall back to Fallback
// when an Explainer fails.
package rationale

import (
	"context"
	"fmt"
	"strings"

	"github.com/seenimoa/stockpulse/pkg/models"
)

// NoContent is the rationale used when no signal source returned any text.
const NoContent = "No recent content available; scored on technical indicators only."

// Explainer turns a company's text items and composite score into a short
// explanation.
type Explainer interface {
	Explain(ctx context.Context, company string, items []models.TextItem, score float64) (string, error)
}

// Fallback builds the deterministic rationale used when an Explainer fails.
func Fallback(company string, counts models.SourceCounts, score float64) string {
	return fmt.Sprintf("%s scored %.1f based on %s.", company, score, describeCounts(counts))
}

func describeCounts(c models.SourceCounts) string {
	if c.Total() == 0 {
		return "technical indicators only"
	}
	var parts []string
	if c.News > 0 {
		parts = append(parts, plural(c.News, "news item", "news items"))
	}
	if c.Articles > 0 {
		parts = append(parts, plural(c.Articles, "article", "articles"))
	}
	if c.SocialPosts > 0 {
		parts = append(parts, plural(c.SocialPosts, "social post", "social posts"))
	}
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
