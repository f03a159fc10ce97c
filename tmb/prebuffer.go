package tmb

import (
	"sync"
)

// playheadState is the last known play position for one track, guarded by
// playheadManager.mu.
type playheadState struct {
	frame     int64
	direction int
	speed     float64
}

// prebufferJob asks a worker to warm the cache for one (track, frame)
// pair ahead of an anticipated clip switch. Jobs are idempotent: the
// per-track video cache and the Reader's own cache both no-op on a
// repeat decode of an already-cached position, so a dropped or
// duplicated job never corrupts state, only wastes or saves work.
type prebufferJob struct {
	trackID string
	frame   int64
}

// playheadManager tracks playhead position per track and runs a small
// pool of workers that prebuffer the start of an upcoming clip as the
// playhead approaches its boundary. The job queue is bounded and
// non-blocking: a full queue silently drops the newest job rather than
// stalling the caller that reports playhead movement.
type playheadManager struct {
	tmb *TMB

	mu    sync.Mutex
	heads map[string]playheadState

	jobs chan prebufferJob
	stop chan struct{}
	wg   sync.WaitGroup
}

// prebufferLookaheadFrames is how close to a clip boundary the playhead
// must be, in timeline frames, before the next clip's head gets queued
// for prebuffering. Not ported from original_source (its prebuffer job
// queue implementation is absent from the pack, same gap as the Reader's
// prefetch worker); chosen to comfortably cover typical UI frame-step
// and playback latency.
const prebufferLookaheadFrames = 12

func newPlayheadManager(tmb *TMB, queueDepth, workers int) *playheadManager {
	m := &playheadManager{
		tmb:   tmb,
		heads: make(map[string]playheadState),
		jobs:  make(chan prebufferJob, queueDepth),
		stop:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

func (m *playheadManager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case job := <-m.jobs:
			// Errors (gap, offline, EOF) are expected outcomes of a
			// speculative prebuffer and are not reported anywhere; only the
			// resulting cache state matters.
			_, _, _ = m.tmb.LookupFrame(job.trackID, job.frame)
		}
	}
}

// SetPlayhead records trackID's current play position and, if it is
// within prebufferLookaheadFrames of a clip boundary, enqueues a job to
// warm the first frame past that boundary in the playback direction: the
// frame at the clip's end going forward, the frame just before its start
// in reverse.
func (m *playheadManager) SetPlayhead(trackID string, frame int64, direction int, speed float64) {
	m.mu.Lock()
	m.heads[trackID] = playheadState{frame: frame, direction: direction, speed: speed}
	m.mu.Unlock()

	if direction == 0 {
		return
	}

	c, ok := m.tmb.findClip(trackID, frame)
	if !ok {
		return
	}

	var probeFrame int64
	if direction > 0 {
		boundary := c.timelineEnd()
		if boundary-frame > prebufferLookaheadFrames {
			return
		}
		probeFrame = boundary
	} else {
		boundary := c.TimelineStart
		if frame-boundary > prebufferLookaheadFrames {
			return
		}
		probeFrame = boundary - 1
	}

	m.enqueue(prebufferJob{trackID: trackID, frame: probeFrame})
}

func (m *playheadManager) enqueue(job prebufferJob) {
	select {
	case m.jobs <- job:
	default:
		// Queue full: drop. The next SetPlayhead call re-evaluates the
		// same boundary, so a dropped job is never the last chance to
		// prebuffer it.
	}
}

func (m *playheadManager) releaseTrack(trackID string) {
	m.mu.Lock()
	delete(m.heads, trackID)
	m.mu.Unlock()
}

func (m *playheadManager) releaseAll() {
	m.mu.Lock()
	m.heads = make(map[string]playheadState)
	m.mu.Unlock()
}

func (m *playheadManager) close() {
	close(m.stop)
	m.wg.Wait()
}
