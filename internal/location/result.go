package location

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/campus-card/backend/pkg/utils"
)

// Mode selects between a single best candidate and a ranked list.
type Mode int

const (
	ModeBestMatch Mode = iota
	ModeRanked
)

func (m Mode) String() string {
	if m == ModeBestMatch {
		return "best"
	}
	return "ranked"
}

// ParseMode accepts "best", "best_match", "ranked" or "list". Empty means ranked.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "best", "best_match", "bestmatch":
		return ModeBestMatch, nil
	case "", "ranked", "list":
		return ModeRanked, nil
	default:
		return ModeRanked, fmt.Errorf("unknown resolution mode %q", s)
	}
}

// Source records which tier produced a result.
type Source string

const (
	SourceLexical  Source = "lexical"
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Result is a tagged union keyed by Mode. BestMatch is only meaningful in
// ModeBestMatch and Locations only in ModeRanked.
type Result struct {
	Mode       Mode
	BestMatch  *string
	Locations  []string
	Confidence float64
	Reasoning  string
	Source     Source
}

// Best returns the best match, if any.
func (r Result) Best() (string, bool) {
	if r.BestMatch == nil {
		return "", false
	}
	return *r.BestMatch, true
}

// Empty reports whether no location was recognized.
func (r Result) Empty() bool {
	if r.Mode == ModeBestMatch {
		return r.BestMatch == nil
	}
	return len(r.Locations) == 0
}

// normalize enforces confidence in [0,1] and zero confidence for empty results.
func (r Result) normalize() Result {
	r.Confidence = utils.Clamp01(r.Confidence)

	switch r.Mode {
	case ModeBestMatch:
		r.Locations = nil
		if r.BestMatch != nil && strings.TrimSpace(*r.BestMatch) == "" {
			r.BestMatch = nil
		}
		if r.BestMatch == nil {
			r.Confidence = 0
		}
	default:
		r.BestMatch = nil
		if r.Locations == nil {
			r.Locations = []string{}
		}
		if len(r.Locations) == 0 {
			r.Confidence = 0
		}
	}

	return r
}

type bestJSON struct {
	Mode       string  `json:"mode"`
	BestMatch  *string `json:"best_match"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Source     Source  `json:"source,omitempty"`
}

type rankedJSON struct {
	Mode       string   `json:"mode"`
	Locations  []string `json:"found_locations"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Source     Source   `json:"source,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	r = r.normalize()
	if r.Mode == ModeBestMatch {
		return json.Marshal(bestJSON{
			Mode:       r.Mode.String(),
			BestMatch:  r.BestMatch,
			Confidence: r.Confidence,
			Reasoning:  r.Reasoning,
			Source:     r.Source,
		})
	}
	return json.Marshal(rankedJSON{
		Mode:       r.Mode.String(),
		Locations:  r.Locations,
		Confidence: r.Confidence,
		Reasoning:  r.Reasoning,
		Source:     r.Source,
	})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var aux struct {
		Mode       string   `json:"mode"`
		BestMatch  *string  `json:"best_match"`
		Locations  []string `json:"found_locations"`
		Confidence float64  `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
		Source     Source   `json:"source"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	mode, err := ParseMode(aux.Mode)
	if err != nil {
		return err
	}

	*r = Result{
		Mode:       mode,
		BestMatch:  aux.BestMatch,
		Locations:  aux.Locations,
		Confidence: aux.Confidence,
		Reasoning:  aux.Reasoning,
		Source:     aux.Source,
	}.normalize()
	return nil
}
