package tmb

import (
	"sort"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
)

// clipUSRange converts a clip's frame-first timeline placement to
// microseconds under the current sequence rate.
func clipUSRange(c ClipInfo, seqRate ratetime.Rate) (startUS, endUS ratetime.TimeUS) {
	startUS = ratetime.NewFrameTime(c.TimelineStart, seqRate).ToUS()
	endUS = ratetime.NewFrameTime(c.timelineEnd(), seqRate).ToUS()
	return
}

// findClipByUS returns the clip covering timeline microsecond t on
// trackID, in sequence-rate coordinates.
func (t *TMB) findClipByUS(trackID string, tUS ratetime.TimeUS) (ClipInfo, bool) {
	t.clipsMu.RLock()
	clips := t.clipsByTrack[trackID]
	seqRate := t.seqRate
	t.clipsMu.RUnlock()

	if len(clips) == 0 || !seqRate.Valid() {
		return ClipInfo{}, false
	}
	i := sort.Search(len(clips), func(i int) bool {
		start, _ := clipUSRange(clips[i], seqRate)
		return start > tUS
	})
	if i == 0 {
		return ClipInfo{}, false
	}
	c := clips[i-1]
	start, end := clipUSRange(c, seqRate)
	if c.Duration <= 0 || tUS < start || tUS >= end {
		return ClipInfo{}, false
	}
	return c, true
}

// DecodeAudioRangeUS decodes timeline audio for trackID over
// [t0US, t1US), resolving the clip covering t0US, converting to that
// clip's source coordinates, and conforming for speed_ratio. v1 does not
// span clip boundaries within a single call: callers issue one call per
// clip, same as the video path's per-frame clip resolution.
func (t *TMB) DecodeAudioRangeUS(trackID string, t0US, t1US ratetime.TimeUS, out frame.AudioFormat) (*frame.PcmChunk, error) {
	if t1US <= t0US {
		return nil, mediaerr.NewInvalidArg("DecodeAudioRangeUS: t1 must be greater than t0")
	}

	c, ok := t.findClipByUS(trackID, t0US)
	if !ok {
		return nil, mediaerr.NewInvalidArg("DecodeAudioRangeUS: no clip covers t0")
	}

	t.clipsMu.RLock()
	seqRate := t.seqRate
	t.clipsMu.RUnlock()
	_, clipEndUS := clipUSRange(c, seqRate)
	if t1US > clipEndUS {
		t1US = clipEndUS
	}

	path := canonicalPath(c.MediaPath)
	if err, offline := t.pool.isOffline(path); offline {
		return nil, err
	}
	r, err := t.readerFor(trackID, c)
	if err != nil {
		return nil, err
	}

	speedRatio := c.SpeedRatio
	if speedRatio <= 0 {
		speedRatio = 1.0
	}

	clipStartUS, _ := clipUSRange(c, seqRate)
	sourceInUS := ratetime.NewFrameTime(c.SourceIn, c.Rate).ToUS()
	sourceT0 := sourceInUS + ratetime.TimeUS(float64(t0US-clipStartUS)*speedRatio)
	sourceT1 := sourceInUS + ratetime.TimeUS(float64(t1US-clipStartUS)*speedRatio)
	if sourceT1 <= sourceT0 {
		sourceT1 = sourceT0 + 1
	}

	chunk, err := r.DecodeAudioRangeUS(sourceT0, sourceT1, out)
	if err != nil {
		return nil, err
	}

	if speedRatio != 1.0 {
		chunk, err = conformSpeedRatio(chunk, speedRatio, out)
		if err != nil {
			return nil, err
		}
	}

	return frame.NewPcmChunk(frame.AudioFormat{
		Format:     chunk.Format(),
		SampleRate: chunk.SampleRate(),
		Channels:   chunk.Channels(),
	}, t0US, chunk.Data()), nil
}

// conformSpeedRatio time-stretches chunk by speedRatio via pure resampling
// (v1 is resample-only: it changes pitch along with duration, matching
// the documented v1 allowance rather than a pitch-preserving stretch).
// Decoded source duration is speedRatio times the requested timeline
// duration, so resampling from sampleRate to sampleRate/speedRatio maps it
// back onto the timeline's duration.
func conformSpeedRatio(chunk *frame.PcmChunk, speedRatio float64, out frame.AudioFormat) (*frame.PcmChunk, error) {
	channels := int(chunk.Channels())
	if channels == 0 {
		return chunk, nil
	}

	cfg := &resampling.Config{
		InputRate:  float64(chunk.SampleRate()),
		OutputRate: float64(chunk.SampleRate()) / speedRatio,
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
	rs, err := resampling.New(cfg)
	if err != nil {
		return nil, mediaerr.NewDecodeFailed("conform: resampler init: " + err.Error())
	}

	src := chunk.Data()
	input := make([]float64, len(src))
	for i, s := range src {
		input[i] = float64(s)
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, mediaerr.NewDecodeFailed("conform: resample: " + err.Error())
	}

	result := make([]float32, len(output))
	for i, s := range output {
		result[i] = float32(s)
	}

	return frame.NewPcmChunk(frame.AudioFormat{
		Format:     out.Format,
		SampleRate: out.SampleRate,
		Channels:   chunk.Channels(),
	}, chunk.StartTimeUS(), result), nil
}
