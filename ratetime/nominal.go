package ratetime

// SelectNominalRate implements the FFmpeg avg_frame_rate/r_frame_rate
// reconciliation heuristic: prefer avg_frame_rate when both are present
// and agree, fall back to whichever is valid when only one is, and flag
// VFR when they disagree enough that neither can be trusted alone.
//
// avgValid/rValid mirror num>0 && den>0 on the two AVRationals; this
// function never inspects a Rate with den==0 itself.
func SelectNominalRate(avg, r Rate, avgValid, rValid bool) (result Rate, isVFR bool) {
	switch {
	case avgValid && !rValid:
		result = avg
	case !avgValid && rValid:
		result = r
	case avgValid && rValid:
		if AreClose(avg, r) {
			result = avg
		} else {
			isVFR = true
			snappedAvg := SnapToCanonical(avg)
			snappedR := SnapToCanonical(r)
			switch {
			case !snappedAvg.Equal(avg):
				result = snappedAvg
			case !snappedR.Equal(r):
				result = snappedR
			default:
				result = avg
			}
		}
	default:
		isVFR = true
		result = Rate30
	}

	return SnapToCanonical(result), isVFR
}
