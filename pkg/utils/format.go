package utils

import "fmt"

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatScore renders a 0-100 score with one decimal.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}
