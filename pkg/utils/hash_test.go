package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", HashString(""))
	assert.Equal(t, HashString("南门_best"), HashString("南门_best"))
	assert.NotEqual(t, HashString("南门_best"), HashString("南门_ranked"))
	assert.Len(t, HashString("图书馆"), 32)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 2.0, Round1(2))
	assert.Equal(t, 3.5, Round1(3.46))
	assert.Equal(t, 66.7, Round1(200.0/3))
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.42, Clamp01(0.42))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
}
