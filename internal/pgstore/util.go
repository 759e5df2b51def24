package pgstore

import (
	"strings"
)

// tsOrQuery builds a to_tsquery operand matching any of tokens, the
// equivalent of find_by_keyword's "any token hits" semantics.
func tsOrQuery(tokens []string) string {
	cleaned := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.Map(func(r rune) rune {
			if r == '\'' || r == '&' || r == '|' || r == '!' || r == ':' {
				return -1
			}
			return r
		}, t)
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, " | ")
}
