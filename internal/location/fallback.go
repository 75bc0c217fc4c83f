package location

import (
	"sort"
	"strings"

	"github.com/campus-card/backend/internal/gazetteer"
	"github.com/campus-card/backend/internal/lexical"
)

const (
	keywordWeight = 0.8

	// rankedConfidence is reported for any non-empty lexical list.
	rankedConfidence = 0.8

	reasonLexicalBest   = "使用语义相关性匹配识别"
	reasonLexicalRanked = "使用语义相关性匹配识别，按相关性排序"
	reasonNoMatch       = "未找到匹配的校园地点"
)

type match struct {
	name  string
	score float64
}

// Fallback resolves locations using only the gazetteer and lexical scoring.
type Fallback struct {
	gaz *gazetteer.Gazetteer
}

func NewFallback(gaz *gazetteer.Gazetteer) *Fallback {
	return &Fallback{gaz: gaz}
}

// Resolve never fails. An empty result carries zero confidence.
func (f *Fallback) Resolve(text string, mode Mode) Result {
	matches := f.scan(text)

	if mode == ModeBestMatch {
		if len(matches) == 0 {
			return Result{Mode: ModeBestMatch, Reasoning: reasonNoMatch, Source: SourceLexical}.normalize()
		}
		best := matches[0].name
		return Result{
			Mode:       ModeBestMatch,
			BestMatch:  &best,
			Confidence: matches[0].score,
			Reasoning:  reasonLexicalBest,
			Source:     SourceLexical,
		}.normalize()
	}

	if len(matches) == 0 {
		return Result{Mode: ModeRanked, Reasoning: reasonNoMatch, Source: SourceLexical}.normalize()
	}

	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.name
	}
	return Result{
		Mode:       ModeRanked,
		Locations:  names,
		Confidence: rankedConfidence,
		Reasoning:  reasonLexicalRanked,
		Source:     SourceLexical,
	}.normalize()
}

// scan tests each record once: a literal name hit takes precedence over a
// keyword hit, which is weighted down. Ties keep gazetteer order.
func (f *Fallback) scan(text string) []match {
	lower := strings.ToLower(text)

	var matches []match
	for _, r := range f.gaz.Records() {
		switch {
		case r.Name != "" && strings.Contains(text, r.Name):
			matches = append(matches, match{name: r.Name, score: lexical.Score(text, r.Name)})
		case r.Key != "" && strings.Contains(lower, r.Key):
			matches = append(matches, match{name: r.Name, score: keywordWeight * lexical.Score(text, r.Name)})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	return matches
}
