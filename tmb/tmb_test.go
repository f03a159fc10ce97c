package tmb_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e1z0/mediacore/decoder"
	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/internal/testmedia"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
	"github.com/e1z0/mediacore/tmb"
)

func baseClipOpts() testmedia.Options {
	return testmedia.Options{Width: 16, Height: 16, Rate: ratetime.Rate24, FrameCount: 100}
}

// multiOpen dispatches by file name so a single TMB can serve clips backed
// by several distinct synthetic files in one test. The TMB opens pooled
// Readers by canonical (absolute) path, so lookups use the base name.
func multiOpen(byPath map[string]testmedia.Options) decoder.OpenFunc {
	return func(path string) (decoder.Demuxer, error) {
		opts, ok := byPath[filepath.Base(path)]
		if !ok {
			return nil, mediaerr.NewFileNotFound(path)
		}
		if opts.FailOpen != nil {
			return nil, opts.FailOpen
		}
		return testmedia.NewDemuxer(opts), nil
	}
}

func newTMB(t *testing.T, byPath map[string]testmedia.Options) *tmb.TMB {
	t.Helper()
	m := tmb.New(multiOpen(byPath), tmb.Options{MaxReaders: 4, VideoCacheSize: 4, PrebufferJobs: 8, PrebufferWorker: 1})
	t.Cleanup(m.Close)
	return m
}

func TestLookupFrameGapBetweenClips(t *testing.T) {
	m := newTMB(t, map[string]testmedia.Options{"a.mov": baseClipOpts()})
	m.SetSeqRate(ratetime.Rate24)
	m.SetTrackClips("v1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "a.mov", TimelineStart: 0, Duration: 10, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0},
		{ClipID: "b", MediaPath: "a.mov", TimelineStart: 20, Duration: 10, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0},
	})

	f, res, err := m.LookupFrame("v1", 15)
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, res.Gap)
}

func TestLookupFrameResolvesClipAndSourceFrame(t *testing.T) {
	m := newTMB(t, map[string]testmedia.Options{"a.mov": baseClipOpts()})
	m.SetSeqRate(ratetime.Rate24)
	m.SetTrackClips("v1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "a.mov", TimelineStart: 100, Duration: 10, SourceIn: 5, Rate: ratetime.Rate24, SpeedRatio: 1.0},
	})

	f, res, err := m.LookupFrame("v1", 103)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "a", res.ClipID)
	// source_frame = source_in + (f - timeline_start) = 5 + (103-100) = 8
	assert.Equal(t, int64(8), res.SourceFrame)
	assert.False(t, res.Gap)
	assert.False(t, res.Offline)
}

func TestLookupFrameCacheHitPreservesRotationAndClipRange(t *testing.T) {
	opts := baseClipOpts()
	opts.Rotation = 90
	m := newTMB(t, map[string]testmedia.Options{"a.mov": opts})
	m.SetSeqRate(ratetime.Rate24)
	m.SetTrackClips("v1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "a.mov", TimelineStart: 100, Duration: 10, SourceIn: 5, Rate: ratetime.Rate24, SpeedRatio: 1.0},
	})

	_, miss, err := m.LookupFrame("v1", 103)
	require.NoError(t, err)
	assert.Equal(t, 90, miss.Rotation)
	assert.Equal(t, ratetime.Rate24, miss.ClipFPS)
	assert.Equal(t, int64(100), miss.ClipStartFrame)
	assert.Equal(t, int64(110), miss.ClipEndFrame)

	// Second query for the same timeline frame is a cache hit; it must
	// report the same metadata, not zero values.
	_, hit, err := m.LookupFrame("v1", 103)
	require.NoError(t, err)
	assert.Equal(t, miss.Rotation, hit.Rotation)
	assert.Equal(t, miss.ClipFPS, hit.ClipFPS)
	assert.Equal(t, miss.ClipStartFrame, hit.ClipStartFrame)
	assert.Equal(t, miss.ClipEndFrame, hit.ClipEndFrame)
}

func TestLookupFrameDurationZeroNeverMatches(t *testing.T) {
	m := newTMB(t, map[string]testmedia.Options{"a.mov": baseClipOpts()})
	m.SetSeqRate(ratetime.Rate24)
	m.SetTrackClips("v1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "a.mov", TimelineStart: 0, Duration: 0, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0},
	})

	_, res, err := m.LookupFrame("v1", 0)
	require.NoError(t, err)
	assert.True(t, res.Gap)
}

func TestLookupFrameOfflineDoesNotRetry(t *testing.T) {
	failing := testmedia.Options{FailOpen: mediaerr.NewFileNotFound("missing.mov")}
	inner := multiOpen(map[string]testmedia.Options{"missing.mov": failing})
	opens := 0
	countingOpen := func(path string) (decoder.Demuxer, error) {
		opens++
		return inner(path)
	}
	m := tmb.New(countingOpen, tmb.Options{MaxReaders: 4, VideoCacheSize: 4, PrebufferJobs: 8, PrebufferWorker: 1})
	t.Cleanup(m.Close)
	m.SetSeqRate(ratetime.Rate24)
	m.SetTrackClips("v1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "missing.mov", TimelineStart: 0, Duration: 10, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0},
	})

	_, res1, err1 := m.LookupFrame("v1", 0)
	require.Error(t, err1)
	assert.True(t, res1.Offline)

	// Second lookup must hit the sticky offline map, not re-open.
	_, res2, err2 := m.LookupFrame("v1", 1)
	require.Error(t, err2)
	assert.True(t, res2.Offline)
	assert.Equal(t, 1, opens)
}

func TestLookupFrameTwoTracksSameFileGetIndependentReaders(t *testing.T) {
	m := newTMB(t, map[string]testmedia.Options{"a.mov": baseClipOpts()})
	m.SetSeqRate(ratetime.Rate24)
	clips := []tmb.ClipInfo{{ClipID: "a", MediaPath: "a.mov", TimelineStart: 0, Duration: 10, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0}}
	m.SetTrackClips("v1", clips)
	m.SetTrackClips("v2", clips)

	f1, _, err := m.LookupFrame("v1", 5)
	require.NoError(t, err)
	f2, _, err := m.LookupFrame("v2", 5)
	require.NoError(t, err)
	// Independent Readers both resolve the same source position correctly;
	// they are not required to be the same *frame.Frame instance.
	assert.Equal(t, f1.SourcePTSUS(), f2.SourcePTSUS())
}

func TestLookupFrameUSRequiresSeqRate(t *testing.T) {
	m := newTMB(t, map[string]testmedia.Options{"a.mov": baseClipOpts()})
	m.SetTrackClips("v1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "a.mov", TimelineStart: 0, Duration: 10, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0},
	})

	_, _, err := m.LookupFrameUS("v1", 0)
	require.Error(t, err)
	assert.Equal(t, mediaerr.InvalidArg, mediaerr.CodeOf(err))
}

func TestProbeFileDoesNotPopulatePool(t *testing.T) {
	m := newTMB(t, map[string]testmedia.Options{"a.mov": baseClipOpts()})

	info, err := m.ProbeFile("a.mov")
	require.NoError(t, err)
	assert.True(t, info.HasVideo)
	assert.Equal(t, 16, info.VideoWidth)

	// Probing alone must not leave an offline or pooled entry behind: a
	// subsequent real lookup against the same path should still succeed.
	m.SetSeqRate(ratetime.Rate24)
	m.SetTrackClips("v1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "a.mov", TimelineStart: 0, Duration: 10, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0},
	})
	_, res, err := m.LookupFrame("v1", 0)
	require.NoError(t, err)
	assert.False(t, res.Offline)
}

func TestReleaseTrackClosesPooledReaders(t *testing.T) {
	m := newTMB(t, map[string]testmedia.Options{"a.mov": baseClipOpts()})
	m.SetSeqRate(ratetime.Rate24)
	m.SetTrackClips("v1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "a.mov", TimelineStart: 0, Duration: 10, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0},
	})
	_, _, err := m.LookupFrame("v1", 0)
	require.NoError(t, err)

	m.ReleaseTrack("v1")

	// The clip list is gone, so the same lookup now reports a gap rather
	// than reusing a stale pooled Reader.
	_, res, err := m.LookupFrame("v1", 0)
	require.NoError(t, err)
	assert.True(t, res.Gap)
}

func TestDecodeAudioRangeUSClampsToClipEnd(t *testing.T) {
	opts := testmedia.Options{HasAudio: true, AudioSampleRate: 48000, AudioChannels: 2, AudioDurationUS: 10_000_000}
	m := newTMB(t, map[string]testmedia.Options{"a.mov": opts})
	m.SetSeqRate(ratetime.Rate24)
	m.SetTrackClips("a1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "a.mov", TimelineStart: 0, Duration: 24 /* 1s at 24fps */, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0},
	})

	fmtOut := frame.AudioFormat{Format: frame.SampleFormatF32, SampleRate: 48000, Channels: 2}
	chunk, err := m.DecodeAudioRangeUS("a1", 0, 5_000_000, fmtOut)
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Greater(t, chunk.Frames(), int64(0))
	// Clamped to the 1s clip end: about 48000 frames (whole 1024-frame
	// chunks), not the 240000 a 5s range would give.
	assert.InDelta(t, 48000, chunk.Frames(), 1024)
}

func TestDecodeAudioRangeUSConformsForSpeedRatio(t *testing.T) {
	opts := testmedia.Options{HasAudio: true, AudioSampleRate: 48000, AudioChannels: 2, AudioDurationUS: 10_000_000}
	m := newTMB(t, map[string]testmedia.Options{"a.mov": opts})
	m.SetSeqRate(ratetime.Rate24)
	m.SetTrackClips("a1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "a.mov", TimelineStart: 0, Duration: 240, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 2.0},
	})

	fmtOut := frame.AudioFormat{Format: frame.SampleFormatF32, SampleRate: 48000, Channels: 2}
	chunk, err := m.DecodeAudioRangeUS("a1", 0, 1_000_000, fmtOut)
	require.NoError(t, err)
	require.NotNil(t, chunk)
	assert.Greater(t, chunk.Frames(), int64(0))
	assert.Equal(t, int32(2), chunk.Channels())
}

func TestSetPlayheadTriggersPrebufferAcrossBoundary(t *testing.T) {
	m := newTMB(t, map[string]testmedia.Options{"a.mov": baseClipOpts(), "b.mov": baseClipOpts()})
	m.SetSeqRate(ratetime.Rate24)
	m.SetTrackClips("v1", []tmb.ClipInfo{
		{ClipID: "a", MediaPath: "a.mov", TimelineStart: 0, Duration: 20, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0},
		{ClipID: "b", MediaPath: "b.mov", TimelineStart: 20, Duration: 20, SourceIn: 0, Rate: ratetime.Rate24, SpeedRatio: 1.0},
	})

	// Near the boundary, forward playback should queue a prebuffer job for
	// clip b's first frame. This only exercises that SetPlayhead doesn't
	// block or panic; the job itself runs asynchronously on a worker.
	m.SetPlayhead("v1", 18, 1, 1.0)
}
