package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreLadder(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		candidate string
		want      float64
	}{
		{"exact", "南门", "南门", 1.0},
		{"exact after normalization", "  ABC ", "abc", 1.0},
		{"candidate inside query", "我在东南门捡到的", "东南门", 0.9 + 0.1*3.0/8.0},
		{"longer name inside query wins", "东南门", "南门", 0.9 + 0.1*2.0/3.0},
		{"query inside candidate", "南门", "东南门", 0.7 + 0.2*2.0/3.0},
		{"shared runes", "图书", "书店", 0.3 + 0.4*1.0/2.0},
		{"shared runes uses larger unique set", "图书馆二楼", "馆长室", 0.3 + 0.4*1.0/5.0},
		{"nothing shared", "abc", "xyz", 0},
		{"mixed case ascii", "Library Hall", "library", 0.9 + 0.1*7.0/12.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.query, tt.candidate), 1e-9)
		})
	}
}

func TestScoreSelfIsOne(t *testing.T) {
	for _, s := range []string{"图书馆", "a", "South Gate", "梧桐苑 2F"} {
		assert.Equal(t, 1.0, Score(s, s), s)
	}
}

func TestScoreBounded(t *testing.T) {
	inputs := []string{"", " ", "南", "南门", "东南门", "图书馆三楼", "abc", "ABC def", "文体中心附近"}
	for _, q := range inputs {
		for _, c := range inputs {
			s := Score(q, c)
			assert.GreaterOrEqual(t, s, 0.0, "%q vs %q", q, c)
			assert.LessOrEqual(t, s, 1.0, "%q vs %q", q, c)
		}
	}
}

func TestScoreTiersOrder(t *testing.T) {
	exact := Score("东南门", "东南门")
	contains := Score("东南门", "南门")
	contained := Score("南门", "东南门")
	shared := Score("南门口", "北门")

	assert.Greater(t, exact, contains)
	assert.Greater(t, contains, contained)
	assert.Greater(t, contained, shared)
	assert.Greater(t, shared, 0.0)
}
