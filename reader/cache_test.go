package reader

import (
	"testing"

	"github.com/e1z0/mediacore/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dummyFrame(pts int64) *frame.Frame {
	f, err := frame.NewCPU(1, 1, 4, pts, []byte{0, 0, 0, 255})
	if err != nil {
		panic(err)
	}
	return f
}

func TestFrameCacheFloorLookup(t *testing.T) {
	c := newFrameCache(10)
	c.insert(100, dummyFrame(100))
	c.insert(200, dummyFrame(200))
	c.insert(300, dummyFrame(300))

	f, pts, ok := c.floor(250)
	require.True(t, ok)
	assert.Equal(t, int64(200), pts)
	assert.Equal(t, int64(200), f.SourcePTSUS())

	_, _, ok = c.floor(50)
	assert.False(t, ok)

	f, pts, ok = c.floor(300)
	require.True(t, ok)
	assert.Equal(t, int64(300), pts)
}

func TestFrameCacheEvictDropsFarthestFromPivot(t *testing.T) {
	c := newFrameCache(10)
	for _, pts := range []int64{0, 100, 200, 300, 400} {
		c.insert(pts, dummyFrame(pts))
	}
	// Pivot near the high end: the low end (0) is farthest, drop it first.
	c.evict(380, 4)
	assert.Equal(t, 4, c.size())
	_, ok := c.get(0)
	assert.False(t, ok)
	_, ok = c.get(400)
	assert.True(t, ok)
}

func TestFrameCacheEvictTiesDropLowest(t *testing.T) {
	c := newFrameCache(10)
	c.insert(0, dummyFrame(0))
	c.insert(200, dummyFrame(200))
	// Pivot equidistant from both ends.
	c.evict(100, 1)
	assert.Equal(t, 1, c.size())
	_, ok := c.get(200)
	assert.True(t, ok)
	_, ok = c.get(0)
	assert.False(t, ok)
}

func TestFrameCacheClearResetsBounds(t *testing.T) {
	c := newFrameCache(10)
	c.insert(10, dummyFrame(10))
	c.clear()
	assert.True(t, c.empty())
	_, _, ok := c.floor(10)
	assert.False(t, ok)
}
