// Package ratetime implements the rational frame-rate and frame-time model
// shared by the decoder abstraction, the Reader, and the Timeline Media
// Buffer. All conversions are exact integer arithmetic except rate
// comparison, which necessarily goes through a floating point fps ratio.
package ratetime

import "math"

// Rate is a frame rate expressed as an exact rational, num/den fps.
type Rate struct {
	Num int32
	Den int32
}

// ToFPS returns the rate as a float64, for display and comparison only.
// Never use this for frame<->time conversion; that must stay exact.
func (r Rate) ToFPS() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rate) Equal(other Rate) bool {
	return r.Num == other.Num && r.Den == other.Den
}

func (r Rate) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Canonical broadcast/cinema rates, kept as exact rationals.
var (
	Rate23_976 = Rate{24000, 1001}
	Rate24     = Rate{24, 1}
	Rate25     = Rate{25, 1}
	Rate29_97  = Rate{30000, 1001}
	Rate30     = Rate{30, 1}
	Rate50     = Rate{50, 1}
	Rate59_94  = Rate{60000, 1001}
	Rate60     = Rate{60, 1}
)

var canonicalRates = []Rate{
	Rate23_976, Rate24, Rate25,
	Rate29_97, Rate30, Rate50,
	Rate59_94, Rate60,
}

// AreClose reports whether a and b differ in fps by no more than 0.2%,
// relative to b. This is what lets 23.976 be treated as "the same as" 24
// when a sequence and a source clip disagree only by NTSC drift.
func AreClose(a, b Rate) bool {
	fpsA := a.ToFPS()
	fpsB := b.ToFPS()
	if fpsB == 0 {
		return false
	}
	return math.Abs(fpsA-fpsB)/fpsB <= 0.002
}

// SnapToCanonical returns r itself when it is exactly a canonical rate,
// otherwise the first canonical rate within tolerance of r, or r unchanged
// if none is close. Neighbouring canonicals such as 24000/1001 and 24/1
// are only 0.1% apart, so a rate can be within tolerance of both; the
// fixed table order then resolves it to the earlier entry.
func SnapToCanonical(r Rate) Rate {
	for _, c := range canonicalRates {
		if r.Equal(c) {
			return c
		}
	}
	for _, c := range canonicalRates {
		if AreClose(r, c) {
			return c
		}
	}
	return r
}

// SelectGridRate picks the CFR grid rate a source viewer should use: the
// clip's own nominal rate by default, but the timeline's sequence rate
// when the two are close enough that using the clip's own would just
// introduce drift against the transport's frame clock.
func SelectGridRate(nominal, sequence Rate) Rate {
	snappedNominal := SnapToCanonical(nominal)
	if AreClose(snappedNominal, sequence) {
		return sequence
	}
	return snappedNominal
}
