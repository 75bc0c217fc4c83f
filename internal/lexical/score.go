// Package lexical scores free text against candidate location names.
package lexical

import (
	"strings"
	"unicode/utf8"
)

const (
	ScoreExact = 1.0

	containsBase  = 0.9
	containsSpan  = 0.1
	containedBase = 0.7
	containedSpan = 0.2
	sharedBase    = 0.3
	sharedSpan    = 0.4
)

// Score rates how relevant candidate is to query, in [0, 1].
// Both operands are lowercased and trimmed; lengths count runes.
//
//	exact match                 1.0
//	candidate inside query      0.9 + 0.1 * |c|/|q|
//	query inside candidate      0.7 + 0.2 * |q|/|c|
//	shared runes                0.3 + 0.4 * |shared|/max(|uniq q|, |uniq c|)
//	nothing shared              0
func Score(query, candidate string) float64 {
	q := normalize(query)
	c := normalize(candidate)

	if q == c {
		return ScoreExact
	}

	ql := utf8.RuneCountInString(q)
	cl := utf8.RuneCountInString(c)

	if strings.Contains(q, c) {
		return containsBase + containsSpan*float64(cl)/float64(ql)
	}

	if strings.Contains(c, q) {
		return containedBase + containedSpan*float64(ql)/float64(cl)
	}

	qs := runeSet(q)
	cs := runeSet(c)

	shared := 0
	for r := range qs {
		if _, ok := cs[r]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}

	return sharedBase + sharedSpan*float64(shared)/float64(max(len(qs), len(cs)))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}
