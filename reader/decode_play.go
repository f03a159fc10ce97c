package reader

import (
	"math"

	"github.com/e1z0/mediacore/decoder"
	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
)

// decodeSyncPlay implements §4.2.E: seek only when need_seek says
// sequential decode would cost more than a fresh seek, never clear the
// cache on this path (prefetch may already hold valid frames for it),
// decode a batch, and cache everything new in it.
func (r *Reader) decodeSyncPlay(tUS ratetime.TimeUS) (*frame.Frame, error) {
	if r.needSeek(tUS) {
		if err := r.mainVideo.Seek(tUS); err != nil {
			return nil, err
		}
		r.haveDecodePos = false
	}

	batch, batchMaxPTS, err := r.decodeFramesBatch(tUS)
	if err != nil {
		return nil, err
	}

	r.lastDecodePTS = batchMaxPTS
	r.haveDecodePos = true

	r.cache.mu.Lock()
	for _, df := range batch {
		if _, exists := r.cache.get(df.PTSUS); !exists {
			r.cache.insert(df.PTSUS, df.Frame)
		}
	}
	r.cache.evict(tUS, r.cache.maxSize)
	result, _, ok := r.cache.floor(tUS)
	if !ok && !r.cache.empty() {
		// t precedes every decoded frame: answer with the earliest one.
		result, ok = r.cache.frames[r.cache.keys[0]], true
	}
	r.cache.mu.Unlock()

	if !ok {
		return nil, mediaerr.NewInternal("DecodeAtUS: no frames decoded")
	}
	return result, nil
}

// needSeek implements §4.2.I: seek if there is no current position, the
// target is behind it, or it is more than needSeekBackUS ahead - beyond
// that point sequential decode is more expensive than a fresh seek.
func (r *Reader) needSeek(tUS ratetime.TimeUS) bool {
	if !r.haveDecodePos {
		return true
	}
	if tUS < r.lastDecodePTS {
		return true
	}
	return tUS-r.lastDecodePTS > needSeekBackUS
}

// decodeFramesBatch drains the decoder into a batch, counting only frames
// with pts_us >= t toward completion. Late B-frames with pts_us < t are
// still collected (presentation order requires them) but must never reset
// or decrement that counter - doing so was a historical source of
// premature batch return and visible playback stutter. Stops once
// playBFrameLookahead on-or-after-target frames have been seen, or at EOF.
func (r *Reader) decodeFramesBatch(tUS ratetime.TimeUS) ([]decoder.DecodedFrame, ratetime.TimeUS, error) {
	var batch []decoder.DecodedFrame
	maxPTS := ratetime.TimeUS(math.MinInt64)
	completed := 0

	for {
		df, err := r.mainVideo.DecodeNextFrame()
		if err != nil {
			if mediaerr.CodeOf(err) == mediaerr.EOFReached {
				break
			}
			if len(batch) == 0 {
				return nil, 0, err
			}
			break
		}

		batch = append(batch, df)
		if df.PTSUS > maxPTS {
			maxPTS = df.PTSUS
		}
		if df.PTSUS >= tUS {
			completed++
			if completed >= playBFrameLookahead {
				break
			}
		}
	}

	if len(batch) == 0 {
		return nil, 0, mediaerr.NewEOF()
	}
	return batch, maxPTS, nil
}
