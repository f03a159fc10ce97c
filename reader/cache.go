package reader

import (
	"math"
	"sort"
	"sync"

	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/ratetime"
)

// defaultMaxCacheFrames mirrors the original's per-Reader default cache
// budget before the transport layer adjusts it for the reader's active
// role (playing, scrubbing, pooled).
const defaultMaxCacheFrames = 120

// frameCache is the Reader's ordered-by-PTS BGRA frame cache. Go has no
// built-in ordered map, so this keeps a sorted key slice beside the map and
// does floor lookup with binary search - the same shape as the original's
// std::map<TimeUS, shared_ptr<Frame>>, just without a tree underneath it.
type frameCache struct {
	mu sync.Mutex

	keys   []ratetime.TimeUS
	frames map[ratetime.TimeUS]*frame.Frame

	minPts   ratetime.TimeUS
	maxPts   ratetime.TimeUS
	maxSize  int
}

func newFrameCache(maxSize int) *frameCache {
	return &frameCache{
		frames:  make(map[ratetime.TimeUS]*frame.Frame),
		minPts:  math.MaxInt64,
		maxPts:  math.MinInt64,
		maxSize: maxSize,
	}
}

func (c *frameCache) empty() bool {
	return len(c.keys) == 0
}

// floorIndex returns the index into c.keys of the largest key <= t, or -1.
func (c *frameCache) floorIndex(t ratetime.TimeUS) int {
	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] > t })
	return i - 1
}

// floor returns the frame with the largest pts_us <= t, if any.
func (c *frameCache) floor(t ratetime.TimeUS) (*frame.Frame, ratetime.TimeUS, bool) {
	i := c.floorIndex(t)
	if i < 0 {
		return nil, 0, false
	}
	k := c.keys[i]
	return c.frames[k], k, true
}

func (c *frameCache) get(pts ratetime.TimeUS) (*frame.Frame, bool) {
	f, ok := c.frames[pts]
	return f, ok
}

// insert adds f at pts, replacing any existing entry at the same pts, and
// updates the cache bounds. Does not evict; call evict separately.
func (c *frameCache) insert(pts ratetime.TimeUS, f *frame.Frame) {
	if _, exists := c.frames[pts]; !exists {
		i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= pts })
		c.keys = append(c.keys, 0)
		copy(c.keys[i+1:], c.keys[i:])
		c.keys[i] = pts
	}
	c.frames[pts] = f
	if pts < c.minPts {
		c.minPts = pts
	}
	if pts > c.maxPts {
		c.maxPts = pts
	}
}

func (c *frameCache) removeAt(i int) {
	pts := c.keys[i]
	delete(c.frames, pts)
	c.keys = append(c.keys[:i], c.keys[i+1:]...)
}

// evict repeatedly drops whichever of the lowest- or highest-keyed frame is
// farther in PTS from pivot, until the cache is back at max_frames. Ties
// drop the lowest (oldest), matching evict_cache_frames.
func (c *frameCache) evict(pivot ratetime.TimeUS, maxFrames int) {
	for len(c.keys) > maxFrames {
		first := c.keys[0]
		last := c.keys[len(c.keys)-1]
		distFirst := absTimeUS(pivot - first)
		distLast := absTimeUS(pivot - last)
		if distFirst >= distLast {
			c.removeAt(0)
		} else {
			c.removeAt(len(c.keys) - 1)
		}
	}
	c.recomputeBounds()
}

func (c *frameCache) recomputeBounds() {
	if len(c.keys) == 0 {
		c.minPts = math.MaxInt64
		c.maxPts = math.MinInt64
		return
	}
	c.minPts = c.keys[0]
	c.maxPts = c.keys[len(c.keys)-1]
}

func (c *frameCache) clear() {
	c.keys = nil
	c.frames = make(map[ratetime.TimeUS]*frame.Frame)
	c.minPts = math.MaxInt64
	c.maxPts = math.MinInt64
}

func (c *frameCache) size() int {
	return len(c.keys)
}

func absTimeUS(v ratetime.TimeUS) ratetime.TimeUS {
	if v < 0 {
		return -v
	}
	return v
}
