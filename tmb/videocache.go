package tmb

import (
	"sync"

	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/ratetime"
)

// videoCacheEntry is what a per-track video cache hit resolves to without
// asking the Reader again. Carries every field LookupResult needs so a
// cache hit never has to re-resolve the clip.
type videoCacheEntry struct {
	clipID         string
	sourceFrame    int64
	rotation       int
	clipFPS        ratetime.Rate
	clipStartFrame int64
	clipEndFrame   int64
	frame          *frame.Frame
}

// trackVideoCache is the small, bounded "did we already resolve this
// exact (track, timeline_frame)" shortcut described in SPEC_FULL.md
// §4.3's per-track video cache. It short-circuits repeat queries; full
// correctness (staleness, eviction by PTS distance) lives in the
// Reader's own cache, not here.
type trackVideoCache struct {
	mu    sync.Mutex
	order []int64
	byKey map[int64]videoCacheEntry
	max   int
}

func newTrackVideoCache(max int) *trackVideoCache {
	return &trackVideoCache{byKey: make(map[int64]videoCacheEntry), max: max}
}

func (c *trackVideoCache) get(timelineFrame int64) (videoCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byKey[timelineFrame]
	return e, ok
}

// put inserts, evicting the oldest entry (FIFO) once over budget. This
// cache is a speed shortcut, not a correctness boundary, so FIFO is
// sufficient - it never needs PTS-distance eviction like the Reader's.
func (c *trackVideoCache) put(timelineFrame int64, e videoCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byKey[timelineFrame]; !exists {
		c.order = append(c.order, timelineFrame)
	}
	c.byKey[timelineFrame] = e
	for len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.byKey, oldest)
	}
}

func (c *trackVideoCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.byKey = make(map[int64]videoCacheEntry)
}
