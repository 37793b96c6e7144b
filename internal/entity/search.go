package entity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// fold normalizes s for case-insensitive comparison: NFC, then Unicode case
// folding. A Caser is not safe for concurrent use, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// matcher returns a predicate for case-insensitive substring search. An
// empty query matches everything.
func matcher(query string) func(string) bool {
	q := fold(strings.TrimSpace(query))
	if q == "" {
		return func(string) bool { return true }
	}
	return func(s string) bool {
		return strings.Contains(fold(s), q)
	}
}
