package ratetime_test

import (
	"testing"

	"github.com/e1z0/mediacore/ratetime"
	"github.com/stretchr/testify/assert"
)

func TestSelectNominalRateAgreement(t *testing.T) {
	avg := ratetime.Rate{Num: 24000, Den: 1001}
	r := ratetime.Rate{Num: 24000, Den: 1001}
	got, vfr := ratetime.SelectNominalRate(avg, r, true, true)
	assert.False(t, vfr)
	assert.Equal(t, ratetime.Rate23_976, got)
}

func TestSelectNominalRateDisagreementFlagsVFR(t *testing.T) {
	avg := ratetime.Rate{Num: 24, Den: 1}
	r := ratetime.Rate{Num: 15, Den: 1}
	got, vfr := ratetime.SelectNominalRate(avg, r, true, true)
	assert.True(t, vfr)
	assert.Equal(t, ratetime.Rate24, got)
}

func TestSelectNominalRateNeitherValid(t *testing.T) {
	got, vfr := ratetime.SelectNominalRate(ratetime.Rate{}, ratetime.Rate{}, false, false)
	assert.True(t, vfr)
	assert.Equal(t, ratetime.Rate30, got)
}

func TestSelectNominalRateOnlyOneValid(t *testing.T) {
	got, vfr := ratetime.SelectNominalRate(ratetime.Rate25, ratetime.Rate{}, true, false)
	assert.False(t, vfr)
	assert.Equal(t, ratetime.Rate25, got)
}
