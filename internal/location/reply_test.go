package location

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplyBestMatch(t *testing.T) {
	raw := "好的，结果如下：\n```json\n{\"best_match\": \" 东南门 \", \"confidence\": 0.92, \"reasoning\": \"与输入完全一致\"}\n```"

	res, err := ParseReply(raw, ModeBestMatch)
	require.NoError(t, err)

	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, "东南门", best)
	assert.Equal(t, 0.92, res.Confidence)
	assert.Equal(t, "与输入完全一致", res.Reasoning)
	assert.Equal(t, SourceModel, res.Source)
}

func TestParseReplyRanked(t *testing.T) {
	raw := `{"found_locations": ["东南门", " ", "南门 "], "confidence": "0.85", "reasoning": "ordered"}`

	res, err := ParseReply(raw, ModeRanked)
	require.NoError(t, err)

	assert.Equal(t, []string{"东南门", "南门"}, res.Locations)
	assert.Equal(t, 0.85, res.Confidence)
}

func TestParseReplyNormalizesConfidence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		mode Mode
		want float64
	}{
		{"above one is clamped", `{"best_match": "南门", "confidence": 1.7}`, ModeBestMatch, 1.0},
		{"negative is clamped", `{"best_match": "南门", "confidence": -0.3}`, ModeBestMatch, 0.0},
		{"null best match forces zero", `{"best_match": null, "confidence": 0.9}`, ModeBestMatch, 0.0},
		{"blank best match forces zero", `{"best_match": "  ", "confidence": 0.9}`, ModeBestMatch, 0.0},
		{"empty list forces zero", `{"found_locations": [], "confidence": 0.9}`, ModeRanked, 0.0},
		{"null list forces zero", `{"found_locations": null, "confidence": 0.9}`, ModeRanked, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseReply(tt.raw, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Confidence)
		})
	}
}

func TestParseReplyNullBestMatch(t *testing.T) {
	res, err := ParseReply(`{"best_match": null, "confidence": 0.0, "reasoning": "none"}`, ModeBestMatch)
	require.NoError(t, err)
	assert.Nil(t, res.BestMatch)
	assert.True(t, res.Empty())
}

func TestParseReplyFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		mode Mode
	}{
		{"no object", "I could not find anything.", ModeBestMatch},
		{"unbalanced", `{"best_match": "南门", "confidence": 0.9`, ModeBestMatch},
		{"missing confidence", `{"best_match": "南门"}`, ModeBestMatch},
		{"confidence not numeric", `{"best_match": "南门", "confidence": "high"}`, ModeBestMatch},
		{"wrong field for mode", `{"found_locations": ["南门"], "confidence": 0.9}`, ModeBestMatch},
		{"best match not a string", `{"best_match": 3, "confidence": 0.9}`, ModeBestMatch},
		{"list of numbers", `{"found_locations": [1, 2], "confidence": 0.9}`, ModeRanked},
		{"missing list", `{"best_match": "南门", "confidence": 0.9}`, ModeRanked},
		{"invalid json inside braces", `{best_match: 南门}`, ModeBestMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReply(tt.raw, tt.mode)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestFirstObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`, true},
		{"surrounded", `x {"a": {"b": 2}} y {"c": 3}`, `{"a": {"b": 2}}`, true},
		{"braces in strings", `{"r": "a } and { b", "s": "\"}"}`, `{"r": "a } and { b", "s": "\"}"}`, true},
		{"skips unclosed prefix", `{ oops {"a": 1}`, `{"a": 1}`, true},
		{"none", `no braces`, "", false},
		{"never closed", `{"a": {`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResultJSONShape(t *testing.T) {
	name := "南门"
	best := Result{Mode: ModeBestMatch, BestMatch: &name, Confidence: 0.95, Reasoning: "r", Source: SourceLexical}
	data, err := json.Marshal(best)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode": "best", "best_match": "南门", "confidence": 0.95, "reasoning": "r", "source": "lexical"}`, string(data))

	none := Result{Mode: ModeBestMatch, Confidence: 0.4}
	data, err = json.Marshal(none)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode": "best", "best_match": null, "confidence": 0, "reasoning": ""}`, string(data))

	ranked := Result{Mode: ModeRanked}
	data, err = json.Marshal(ranked)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode": "ranked", "found_locations": [], "confidence": 0, "reasoning": ""}`, string(data))
}

func TestResultJSONRoundTrip(t *testing.T) {
	name := "东南门"
	for _, in := range []Result{
		{Mode: ModeBestMatch, BestMatch: &name, Confidence: 0.9, Reasoning: "x", Source: SourceModel},
		{Mode: ModeRanked, Locations: []string{"东南门", "南门"}, Confidence: 0.8, Reasoning: "y", Source: SourceFallback},
	} {
		data, err := json.Marshal(in)
		require.NoError(t, err)

		var out Result
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, in.normalize(), out)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("best")
	require.NoError(t, err)
	assert.Equal(t, ModeBestMatch, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeRanked, m)

	_, err = ParseMode("fuzzy")
	assert.Error(t, err)
}
