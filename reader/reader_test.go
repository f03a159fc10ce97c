package reader_test

import (
	"testing"
	"time"

	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/internal/testmedia"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
	"github.com/e1z0/mediacore/reader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(t *testing.T, opts testmedia.Options) *reader.Reader {
	t.Helper()
	r, err := reader.Create(testmedia.OpenFunc(opts), "synthetic.mov")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func baseOpts() testmedia.Options {
	return testmedia.Options{
		Width: 16, Height: 16,
		Rate:       ratetime.Rate24,
		FrameCount: 100,
	}
}

func TestDecodeAtUSFloorOnGrid(t *testing.T) {
	reader.SetDecodeMode(reader.Play)
	r := newTestReader(t, baseOpts())

	f, err := r.DecodeAtUS(0)
	require.NoError(t, err)
	assert.Equal(t, ratetime.TimeUS(0), f.SourcePTSUS())

	// Floor-on-grid: a target between frame 2 and frame 3 returns frame 2.
	frame2US := ratetime.NewFrameTime(2, ratetime.Rate24).ToUS()
	frame3US := ratetime.NewFrameTime(3, ratetime.Rate24).ToUS()
	mid := frame2US + (frame3US-frame2US)/2
	f, err = r.DecodeAtUS(mid)
	require.NoError(t, err)
	assert.Equal(t, frame2US, f.SourcePTSUS())
}

func TestDecodeAtUSCacheHitAfterSequentialPlay(t *testing.T) {
	reader.SetDecodeMode(reader.Play)
	r := newTestReader(t, baseOpts())

	f1, err := r.DecodeAtUS(ratetime.NewFrameTime(5, ratetime.Rate24).ToUS())
	require.NoError(t, err)

	// The same target should now be a cache hit, not a fresh decode (the
	// batch that produced it also decoded several frames ahead).
	f0, ok := r.GetCachedFrame(ratetime.NewFrameTime(5, ratetime.Rate24).ToUS())
	require.True(t, ok)
	assert.Equal(t, f1.SourcePTSUS(), f0.SourcePTSUS())
}

func TestDecodeAtUSScrubBFrameReorder(t *testing.T) {
	reader.SetDecodeMode(reader.Scrub)
	opts := baseOpts()
	opts.GOPSize = 4
	r := newTestReader(t, opts)

	target := ratetime.NewFrameTime(6, ratetime.Rate24).ToUS()
	f, err := r.DecodeAtUS(target)
	require.NoError(t, err)
	assert.Equal(t, target, f.SourcePTSUS())
}

// TestDecodeAtUSScrubBFrameReorderNonAscending targets frame 7 of a
// GOPSize=4 stream, whose GOP decodes in presentation order 4, 7, 5, 6:
// the candidate subsequence (4, 7, 5, 6) is non-ascending, so a decoder
// that merely overwrites its best candidate on every pts<=target frame
// (rather than tracking a true running max) would return frame 6 instead
// of the correct floor answer, frame 7.
func TestDecodeAtUSScrubBFrameReorderNonAscending(t *testing.T) {
	reader.SetDecodeMode(reader.Scrub)
	opts := baseOpts()
	opts.GOPSize = 4
	r := newTestReader(t, opts)

	target := ratetime.NewFrameTime(7, ratetime.Rate24).ToUS()
	f, err := r.DecodeAtUS(target)
	require.NoError(t, err)
	assert.Equal(t, target, f.SourcePTSUS())
}

func TestDecodeAtUSScrubThenPlayClearsCache(t *testing.T) {
	opts := baseOpts()
	reader.SetDecodeMode(reader.Scrub)
	r := newTestReader(t, opts)

	_, err := r.DecodeAtUS(ratetime.NewFrameTime(50, ratetime.Rate24).ToUS())
	require.NoError(t, err)

	reader.SetDecodeMode(reader.Play)
	// Target far from the scrub frame: Play must not be fooled by the
	// lone scrub-cached frame into thinking it already has this region.
	_, err = r.DecodeAtUS(ratetime.NewFrameTime(0, ratetime.Rate24).ToUS())
	require.NoError(t, err)

	f, err := r.DecodeAtUS(ratetime.NewFrameTime(0, ratetime.Rate24).ToUS())
	require.NoError(t, err)
	assert.Equal(t, ratetime.TimeUS(0), f.SourcePTSUS())
}

func TestDecodeAtUSPastLastFrameReturnsLast(t *testing.T) {
	reader.SetDecodeMode(reader.Play)
	opts := baseOpts()
	opts.FrameCount = 5
	r := newTestReader(t, opts)

	far := ratetime.NewFrameTime(1000, ratetime.Rate24).ToUS()
	f, err := r.DecodeAtUS(far)
	require.NoError(t, err)
	lastUS := ratetime.NewFrameTime(4, ratetime.Rate24).ToUS()
	assert.Equal(t, lastUS, f.SourcePTSUS())
}

func TestDecodeAtUSNoVideoIsUnsupported(t *testing.T) {
	opts := testmedia.Options{HasAudio: true, AudioSampleRate: 48000, AudioChannels: 2, AudioDurationUS: 1_000_000}
	r := newTestReader(t, opts)
	_, err := r.DecodeAtUS(0)
	require.Error(t, err)
	assert.Equal(t, mediaerr.Unsupported, mediaerr.CodeOf(err))
}

func TestSetMaxCacheFramesEvictsImmediately(t *testing.T) {
	reader.SetDecodeMode(reader.Play)
	r := newTestReader(t, baseOpts())

	_, err := r.DecodeAtUS(ratetime.NewFrameTime(50, ratetime.Rate24).ToUS())
	require.NoError(t, err)

	r.SetMaxCacheFrames(1)
	// Exactly one cached frame should remain reachable; most of the batch
	// must have been evicted.
	_, ok := r.GetCachedFrame(ratetime.NewFrameTime(50, ratetime.Rate24).ToUS())
	assert.True(t, ok)
	_, ok = r.GetCachedFrame(ratetime.NewFrameTime(51, ratetime.Rate24).ToUS())
	assert.False(t, ok)
}

func TestDecodeAudioRangeUS(t *testing.T) {
	opts := testmedia.Options{HasAudio: true, AudioSampleRate: 48000, AudioChannels: 2, AudioDurationUS: 5_000_000}
	r := newTestReader(t, opts)

	chunk, err := r.DecodeAudioRangeUS(0, 500_000, frame.AudioFormat{Format: frame.SampleFormatF32, SampleRate: 48000, Channels: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), chunk.Channels())
	assert.Greater(t, chunk.Frames(), int64(0))
}

func TestDecodeAudioRangeUSInvalidArg(t *testing.T) {
	opts := testmedia.Options{HasAudio: true, AudioSampleRate: 48000, AudioChannels: 2, AudioDurationUS: 1_000_000}
	r := newTestReader(t, opts)

	_, err := r.DecodeAudioRangeUS(1000, 500, frame.AudioFormat{Format: frame.SampleFormatF32, SampleRate: 48000, Channels: 2})
	require.Error(t, err)
	assert.Equal(t, mediaerr.InvalidArg, mediaerr.CodeOf(err))
}

func TestPrefetchAdvancesCacheForward(t *testing.T) {
	reader.SetDecodeMode(reader.Play)
	r := newTestReader(t, baseOpts())

	r.StartPrefetch(1)
	r.UpdatePrefetchTarget(0)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.PrefetchFramesDecoded() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Greater(t, r.PrefetchFramesDecoded(), int64(0))

	r.StopPrefetch()
}
