package ratetime_test

import (
	"testing"

	"github.com/e1z0/mediacore/ratetime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAreClose(t *testing.T) {
	assert.True(t, ratetime.AreClose(ratetime.Rate23_976, ratetime.Rate24))
	assert.True(t, ratetime.AreClose(ratetime.Rate29_97, ratetime.Rate30))
	assert.False(t, ratetime.AreClose(ratetime.Rate24, ratetime.Rate25))
	assert.False(t, ratetime.AreClose(ratetime.Rate{Num: 1, Den: 1}, ratetime.Rate{Num: 0, Den: 1}))
}

func TestSnapToCanonical(t *testing.T) {
	cases := []struct {
		name string
		in   ratetime.Rate
		want ratetime.Rate
	}{
		{"exact 24000/1001", ratetime.Rate{Num: 24000, Den: 1001}, ratetime.Rate23_976},
		{"near 30000/1001", ratetime.Rate{Num: 30000, Den: 1002}, ratetime.Rate29_97},
		{"non canonical", ratetime.Rate{Num: 33, Den: 1}, ratetime.Rate{Num: 33, Den: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ratetime.SnapToCanonical(c.in)
			require.Equal(t, c.want, got)
		})
	}
}

func TestSelectGridRate(t *testing.T) {
	// nominal close to sequence: use sequence
	got := ratetime.SelectGridRate(ratetime.Rate{Num: 24000, Den: 1001}, ratetime.Rate24)
	assert.Equal(t, ratetime.Rate24, got)

	// nominal far from sequence: use snapped nominal
	got = ratetime.SelectGridRate(ratetime.Rate25, ratetime.Rate30)
	assert.Equal(t, ratetime.Rate25, got)
}
