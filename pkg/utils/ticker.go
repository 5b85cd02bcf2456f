package utils

import (
	"strings"
)

// NormalizeTicker normalizes a user-input ticker to its canonical form.
// It handles uppercasing, whitespace and a leading cashtag.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	// Remove $ prefix if present (common in social posts)
	ticker = strings.TrimPrefix(ticker, "$")

	return strings.TrimSpace(ticker)
}

// NormalizeSymbols normalizes every entry, dropping blanks and duplicates
// while preserving first-seen order.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		n := NormalizeTicker(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// SplitSymbols splits a comma or whitespace separated list such as
// "aapl, msft TSLA" into raw entries.
func SplitSymbols(list string) []string {
	return strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
