package reader

import (
	"time"

	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
)

// prefetchLookaheadUS / prefetchSaneGapUS: how far ahead of the current
// target the worker tries to keep the cache filled, and how close its own
// decode position has to stay to the target before it's worth a seek
// instead of continuing to decode forward. original_source's prefetch
// thread body was not present in the retrieval pack (only its member
// declarations and call sites survive in emp_reader.cpp/emp_reader.h); the
// loop shape and these two knobs are reconstructed from spec.md §4.2.F's
// prose description rather than ported from C++.
const (
	prefetchLookaheadUS = 1_000_000
	prefetchSaneGapUS   = 500_000
	prefetchIdleSleep   = 20 * time.Millisecond
	prefetchRetrySleep  = 20 * time.Millisecond
)

// StartPrefetch starts (or retargets) the background prefetch worker.
// direction: 1 = forward, -1 = reverse, 0 = stop (equivalent to
// StopPrefetch).
func (r *Reader) StartPrefetch(direction int) {
	if direction == 0 {
		r.StopPrefetch()
		return
	}
	if r.mainVideo == nil {
		return
	}

	r.prefetchMu.Lock()
	if !r.prefetchInitialized {
		vs, err := r.demuxer.OpenVideo()
		if err != nil {
			r.prefetchMu.Unlock()
			return
		}
		r.prefetchVideo = vs
		r.prefetchInitialized = true
	}
	alreadyRunning := r.prefetchRunning.Load()
	if !alreadyRunning {
		r.stopCh = make(chan struct{})
		r.wakeCh = make(chan struct{}, 1)
		r.prefetchRunning.Store(true)
		r.prefetchFramesDone.Store(0)
		r.wg.Add(1)
		go r.prefetchWorker(r.stopCh, r.wakeCh)
	}
	r.prefetchMu.Unlock()

	r.prefetchDirection.Store(int32(direction))
	r.wake()
}

// StopPrefetch stops the background worker, safe to call even if it is
// not running.
func (r *Reader) StopPrefetch() {
	r.prefetchDirection.Store(0)

	r.prefetchMu.Lock()
	running := r.prefetchRunning.Load()
	stopCh := r.stopCh
	r.prefetchMu.Unlock()

	if !running {
		return
	}
	close(stopCh)
	r.wg.Wait()

	r.prefetchMu.Lock()
	r.prefetchRunning.Store(false)
	r.prefetchMu.Unlock()
}

// UpdatePrefetchTarget moves the worker's target position; called from
// the playback tick so the worker keeps decoding ahead of wherever
// playback actually is.
func (r *Reader) UpdatePrefetchTarget(tUS ratetime.TimeUS) {
	r.prefetchTarget.Store(tUS)
	r.wake()
}

func (r *Reader) wake() {
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
}

// prefetchWorker is §4.2.F's loop. It shares no decoder state with the
// main decode path: direction, target, running and decoded_count are
// atomics, and the only other shared state is the cache (guarded by its
// own mutex).
func (r *Reader) prefetchWorker(stopCh chan struct{}, wakeCh chan struct{}) {
	defer r.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		direction := r.prefetchDirection.Load()
		if direction == 0 {
			select {
			case <-stopCh:
				return
			case <-wakeCh:
				continue
			case <-time.After(prefetchIdleSleep):
				continue
			}
		}

		target := ratetime.TimeUS(r.prefetchTarget.Load())
		var edge ratetime.TimeUS
		if direction > 0 {
			edge = target + prefetchLookaheadUS
		} else {
			edge = target - prefetchLookaheadUS
		}

		if r.cacheCoversEdge(direction, edge) {
			select {
			case <-stopCh:
				return
			case <-time.After(prefetchIdleSleep):
			}
			continue
		}

		if !r.havePrefetchPos.Load() || absTimeUS(r.prefetchDecodePTS.Load()-target) > prefetchSaneGapUS {
			if err := r.prefetchVideo.Seek(target); err != nil {
				select {
				case <-stopCh:
					return
				case <-time.After(prefetchRetrySleep):
				}
				continue
			}
		}

		df, err := r.prefetchVideo.DecodeNextFrame()
		if err != nil {
			if mediaerr.CodeOf(err) != mediaerr.EOFReached {
				r.havePrefetchPos.Store(false)
			}
			select {
			case <-stopCh:
				return
			case <-time.After(prefetchRetrySleep):
			}
			continue
		}

		r.cache.mu.Lock()
		r.cache.insert(df.PTSUS, df.Frame)
		r.cache.evict(target, r.cache.maxSize)
		r.cache.mu.Unlock()

		r.prefetchDecodePTS.Store(df.PTSUS)
		r.havePrefetchPos.Store(true)
		r.prefetchFramesDone.Add(1)
	}
}

func (r *Reader) cacheCoversEdge(direction int32, edge ratetime.TimeUS) bool {
	r.cache.mu.Lock()
	defer r.cache.mu.Unlock()
	if r.cache.empty() {
		return false
	}
	if direction > 0 {
		return r.cache.maxPts >= edge
	}
	return r.cache.minPts <= edge
}
