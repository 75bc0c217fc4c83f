package location

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrParse = errors.New("unparseable model reply")

// ParseReply extracts the first balanced JSON object from a model reply and
// converts it into a Result for mode.
func ParseReply(raw string, mode Mode) (Result, error) {
	obj, ok := firstObject(raw)
	if !ok {
		return Result{}, fmt.Errorf("%w: no json object found", ErrParse)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	confidence, err := parseConfidence(fields["confidence"])
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Mode:       mode,
		Confidence: confidence,
		Reasoning:  parseReasoning(fields["reasoning"]),
		Source:     SourceModel,
	}

	if mode == ModeBestMatch {
		bm, ok := fields["best_match"]
		if !ok {
			return Result{}, fmt.Errorf("%w: missing best_match", ErrParse)
		}
		var name *string
		if err := json.Unmarshal(bm, &name); err != nil {
			return Result{}, fmt.Errorf("%w: best_match: %v", ErrParse, err)
		}
		if name != nil {
			trimmed := strings.TrimSpace(*name)
			name = &trimmed
		}
		res.BestMatch = name
		return res.normalize(), nil
	}

	fl, ok := fields["found_locations"]
	if !ok {
		return Result{}, fmt.Errorf("%w: missing found_locations", ErrParse)
	}
	var names []string
	if err := json.Unmarshal(fl, &names); err != nil {
		return Result{}, fmt.Errorf("%w: found_locations: %v", ErrParse, err)
	}
	res.Locations = make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			res.Locations = append(res.Locations, n)
		}
	}
	return res.normalize(), nil
}

func parseConfidence(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: missing confidence", ErrParse)
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
	}

	return 0, fmt.Errorf("%w: confidence %s is not a number", ErrParse, string(raw))
}

func parseReasoning(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// firstObject returns the first balanced {...} span in s. Braces inside JSON
// strings are ignored.
func firstObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end, ok := closingBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func closingBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}
