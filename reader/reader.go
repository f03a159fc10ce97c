// Package reader implements frame-accurate, floor-on-grid video decoding
// on top of the decoder abstraction, with a BGRA frame cache and a
// background prefetch worker. One Reader owns one media file; the TMB
// layer pools Readers across tracks.
package reader

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e1z0/mediacore/decoder"
	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/internal/logging"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
)

// staleRangeUS is the C2 pre-check threshold: a decode target landing more
// than this far outside the cached PTS range discards the cache outright
// rather than trying to patch around it.
const staleRangeUS = 1_000_000

// needSeekBackUS is the Play-path threshold past which sequential decode is
// more expensive than a fresh seek (see need_seek / §4.2.I).
const needSeekBackUS = 2_000_000

// playBFrameLookahead / scrubBFrameLookahead bound how far past the target
// PTS the decoder is drained to flush reordered B-frames. Play counts only
// on-or-after-target frames toward completion (see decodeFramesBatch);
// Scrub/Park track a single best candidate (see decodeUntilTarget).
const (
	playBFrameLookahead  = 8
	scrubBFrameLookahead = 10
)

// resamplerOutputChannels matches the original's fixed stereo resampler
// output regardless of the source channel layout.
const resamplerOutputChannels = 2

// Reader decodes frames and audio from one media file. Not safe for
// concurrent DecodeAt/DecodeAudioRange calls from multiple goroutines at
// once (the original assumes a single caller thread for the main decode
// path); the prefetch worker runs on its own goroutine and only touches
// the shared cache and a handful of atomics.
type Reader struct {
	demuxer decoder.Demuxer
	info    decoder.MediaFileInfo

	decodeMu      sync.Mutex
	mainVideo     decoder.VideoDecodeSession
	lastDecodePTS ratetime.TimeUS
	haveDecodePos bool
	lastMode      DecodeMode
	maxFloorGapUS atomic.Int64

	mainAudio    decoder.AudioDecodeSession
	audioOutRate int32

	cache *frameCache

	prefetchRunning    atomic.Bool
	prefetchDirection  atomic.Int32
	prefetchTarget     atomic.Int64
	prefetchDecodePTS  atomic.Int64
	havePrefetchPos    atomic.Bool
	prefetchFramesDone atomic.Int64

	prefetchMu          sync.Mutex
	prefetchVideo       decoder.VideoDecodeSession
	prefetchInitialized bool
	wakeCh              chan struct{}
	stopCh              chan struct{}
	wg                  sync.WaitGroup
}

// Create opens path through open and builds a Reader around it. Matches
// Reader::Create: at least one of video/audio must be present, and an
// audio init failure is non-fatal when video is available.
func Create(open decoder.OpenFunc, path string) (*Reader, error) {
	d, err := open(path)
	if err != nil {
		return nil, err
	}
	info := d.Info()
	if !info.HasVideo && !info.HasAudio {
		d.Close()
		return nil, mediaerr.NewUnsupported("media file has neither video nor audio")
	}

	r := &Reader{
		demuxer:       d,
		info:          info,
		lastDecodePTS: math.MinInt64,
		lastMode:      Park,
		cache:         newFrameCache(defaultMaxCacheFrames),
	}
	r.prefetchDecodePTS.Store(math.MinInt64)
	r.maxFloorGapUS.Store(84000)

	if info.HasVideo {
		vs, err := d.OpenVideo()
		if err != nil {
			d.Close()
			return nil, err
		}
		r.mainVideo = vs
	}

	if info.HasAudio {
		r.audioOutRate = info.AudioSampleRate
	}

	return r, nil
}

// MediaInfo returns the static info discovered when this Reader's file was
// opened.
func (r *Reader) MediaInfo() decoder.MediaFileInfo { return r.info }

// Close releases the main and prefetch decode pipelines and the demuxer.
func (r *Reader) Close() error {
	r.StopPrefetch()
	r.prefetchMu.Lock()
	if r.prefetchVideo != nil {
		r.prefetchVideo.Close()
	}
	r.prefetchMu.Unlock()
	r.decodeMu.Lock()
	if r.mainVideo != nil {
		r.mainVideo.Close()
	}
	if r.mainAudio != nil {
		r.mainAudio.Close()
	}
	r.decodeMu.Unlock()
	return r.demuxer.Close()
}

// Seek repositions the main decoder at t, invalidating the current
// position. Does not touch the cache (cached frames hold BGRA pixels, not
// decoder state).
func (r *Reader) Seek(t ratetime.FrameTime) error {
	return r.SeekUS(t.ToUS())
}

// SeekUS is the microsecond-granular form of Seek, used by debug/tooling
// call sites.
func (r *Reader) SeekUS(tUS ratetime.TimeUS) error {
	if r.mainVideo == nil {
		return mediaerr.NewUnsupported("reader has no video stream")
	}
	r.decodeMu.Lock()
	defer r.decodeMu.Unlock()
	if err := r.mainVideo.Seek(tUS); err != nil {
		return err
	}
	r.haveDecodePos = false
	return nil
}

// DecodeAt returns the frame F with the largest pts_us(F) <= t.ToUS(),
// floor-on-grid. If past the last frame, returns the last. If t precedes
// the first frame, Play mode returns the first frame; Scrub and Park mode
// find no frame at or before t and return an error.
func (r *Reader) DecodeAt(t ratetime.FrameTime) (*frame.Frame, error) {
	return r.DecodeAtUS(t.ToUS())
}

// DecodeAtUS is the microsecond-granular form of DecodeAt.
func (r *Reader) DecodeAtUS(tUS ratetime.TimeUS) (*frame.Frame, error) {
	if r.mainVideo == nil {
		return nil, mediaerr.NewUnsupported("reader has no video stream")
	}

	// C1: sync the prefetch target before anything else so the worker's
	// next loop iteration already sees the new position.
	r.prefetchTarget.Store(tUS)

	mode := GetDecodeMode()

	r.cache.mu.Lock()
	// C2: a target landing far outside the cached range means a large
	// seek or a pooled Reader reactivating; the cache can't help either
	// way, so drop it rather than let stale entries confuse the floor
	// lookup.
	if !r.cache.empty() && (tUS < r.cache.minPts-staleRangeUS || tUS > r.cache.maxPts+staleRangeUS) {
		r.cache.clear()
		r.invalidatePositions()
	}
	// C3: scattered park/scrub frames would otherwise satisfy floor
	// lookups and fool the prefetch handoff into thinking it is already
	// ahead of a fresh Play session.
	if mode == Play && r.lastMode != Play && !r.cache.empty() {
		r.cache.clear()
		r.invalidatePositions()
	}
	r.lastMode = mode
	r.cache.mu.Unlock()

	r.updateMaxFloorGap()

	if f, ok := r.cacheLookup(tUS); ok {
		logging.L().Debug().Int64("t_us", tUS).Msg("decode: cache hit")
		return f, nil
	}

	// B: prefetch handoff. If the worker is actively running, give it a
	// short bounded window to land the frame before paying for a
	// synchronous decode.
	if r.prefetchDirection.Load() != 0 {
		for i := 0; i < 10; i++ {
			if f, ok := r.GetCachedFrame(tUS); ok {
				return f, nil
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	r.decodeMu.Lock()
	defer r.decodeMu.Unlock()

	switch mode {
	case Scrub, Park:
		return r.decodeSyncScrub(tUS)
	default:
		return r.decodeSyncPlay(tUS)
	}
}

// cacheLookup performs the §4.2.A cache check: a floor match only counts
// if it is within max_floor_gap_us of t, so a stale scrub-session frame
// doesn't get handed back during sequential Play.
func (r *Reader) cacheLookup(tUS ratetime.TimeUS) (*frame.Frame, bool) {
	r.cache.mu.Lock()
	defer r.cache.mu.Unlock()
	if r.cache.empty() || tUS > r.cache.maxPts {
		return nil, false
	}
	f, pts, ok := r.cache.floor(tUS)
	if !ok {
		return nil, false
	}
	if tUS-pts > r.maxFloorGapUS.Load() {
		return nil, false
	}
	return f, true
}

// GetCachedFrame is a non-blocking cache lookup for display paths that
// want to fall back to DecodeAtUS on a miss rather than pay for a
// synchronous decode inline.
func (r *Reader) GetCachedFrame(tUS ratetime.TimeUS) (*frame.Frame, bool) {
	return r.cacheLookup(tUS)
}

// invalidatePositions clears both decoder positions; callers hold
// cache.mu already when this runs from inside DecodeAtUS's pre-checks.
func (r *Reader) invalidatePositions() {
	r.haveDecodePos = false
	r.havePrefetchPos.Store(false)
}

// updateMaxFloorGap recomputes max_floor_gap_us from the stream's nominal
// rate: ceil(1_000_000 * den / num) * 2, i.e. roughly two frame periods.
// Ceiling division avoids an off-by-one against rounding in the
// microsecond<->PTS conversion.
func (r *Reader) updateMaxFloorGap() {
	rate := r.info.VideoRate
	if rate.Num <= 0 {
		return
	}
	num := int64(1_000_000) * int64(rate.Den)
	period := (num + int64(rate.Num) - 1) / int64(rate.Num)
	r.maxFloorGapUS.Store(period * 2)
}

// SetMaxCacheFrames sets the cache budget, evicting immediately if the
// cache is already over the new limit. Used by the transport layer to
// size a Reader's cache to its current role (playing, scrubbing, pooled).
func (r *Reader) SetMaxCacheFrames(maxFrames int) {
	r.cache.mu.Lock()
	defer r.cache.mu.Unlock()
	r.cache.maxSize = maxFrames
	if r.cache.size() > maxFrames {
		r.cache.evict(r.prefetchTarget.Load(), maxFrames)
	}
}

// PrefetchFramesDecoded returns the number of frames the prefetch worker
// has decoded since the worker was last started (a StartPrefetch call
// while it is already running does not reset the count). Exposed for tests that
// verify seek-vs-forward-decode behavior.
func (r *Reader) PrefetchFramesDecoded() int64 {
	return r.prefetchFramesDone.Load()
}
