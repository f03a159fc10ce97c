package reader

import (
	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
)

// decodeSyncScrub implements §4.2.D: always seek to the keyframe at or
// before t (zero backoff - AVSEEK_FLAG_BACKWARD already lands there), then
// drain the B-frame reorder buffer for a single target frame. Only the
// floor candidate is cached; the main decoder position is left
// indeterminate afterward since the lookahead drain doesn't land exactly
// on a known PTS.
func (r *Reader) decodeSyncScrub(tUS ratetime.TimeUS) (*frame.Frame, error) {
	if err := r.mainVideo.Seek(tUS); err != nil {
		return nil, err
	}

	best, bestPTS, err := r.decodeUntilTarget(tUS)
	if err != nil {
		return nil, err
	}
	r.haveDecodePos = false

	r.cache.mu.Lock()
	r.cache.insert(bestPTS, best)
	r.cache.evict(tUS, r.cache.maxSize)
	r.cache.mu.Unlock()

	return best, nil
}

// decodeUntilTarget drains frames from the decoder, tracking the running
// maximum PTS seen so far among candidates with pts <= t - decode order is
// not presentation order, so a later-decoded frame can have an earlier PTS
// than one already accepted, and must not displace it. It stops once at
// least scrubBFrameLookahead frames past target have been observed and a
// candidate exists, or gives up with an internal error if twice that many
// pass with no candidate at all. This drains a GOP's B-frame reorder
// buffer, since the decoder emits frames out of presentation order.
func (r *Reader) decodeUntilTarget(tUS ratetime.TimeUS) (*frame.Frame, ratetime.TimeUS, error) {
	var best *frame.Frame
	var bestPTS ratetime.TimeUS
	haveCandidate := false
	pastTarget := 0

	for {
		df, err := r.mainVideo.DecodeNextFrame()
		if err != nil {
			if mediaerr.CodeOf(err) == mediaerr.EOFReached && haveCandidate {
				return best, bestPTS, nil
			}
			return nil, 0, err
		}

		if df.PTSUS <= tUS {
			if !haveCandidate || df.PTSUS > bestPTS {
				best = df.Frame
				bestPTS = df.PTSUS
				haveCandidate = true
				pastTarget = 0
			}
			continue
		}

		pastTarget++
		if haveCandidate && pastTarget >= scrubBFrameLookahead {
			return best, bestPTS, nil
		}
		if !haveCandidate && pastTarget >= 2*scrubBFrameLookahead {
			return nil, 0, mediaerr.NewInternal("decodeUntilTarget: no candidate frame found")
		}
	}
}
