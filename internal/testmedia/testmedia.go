// Package testmedia is a synthetic decoder.Demuxer used by reader and tmb
// tests. It generates deterministic solid-color BGRA frames and sine-wave
// PCM on a declared grid, with an optional GOP-shaped decode-order reorder
// so B-frame-lookahead logic can be exercised without a real media file.
package testmedia

import (
	"math"

	"github.com/e1z0/mediacore/decoder"
	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
)

// Options describes the synthetic stream a Demuxer serves.
type Options struct {
	Width, Height int
	Rate          ratetime.Rate
	FrameCount    int64
	// Rotation is reported verbatim as the stream's MediaFileInfo.Rotation.
	Rotation int

	// GOPSize > 1 makes DecodeNextFrame emit frames out of presentation
	// order within each GOP (I, last-of-GOP, then the rest in order),
	// mimicking a real B-frame reorder pattern. 0 or 1 means no reorder.
	GOPSize int

	HasAudio        bool
	AudioSampleRate int32
	AudioChannels   int32
	// AudioDurationUS bounds how much sine-wave audio exists; decoding
	// past it yields EOF.
	AudioDurationUS ratetime.TimeUS

	// FailOpen, if set, makes OpenFunc return this error instead of a
	// Demuxer - used to test offline/not-found handling.
	FailOpen error
}

type demuxer struct {
	opts Options
	info decoder.MediaFileInfo
}

// OpenFunc adapts Options into a decoder.OpenFunc for callers (Reader,
// TMB) that only know how to open by path.
func OpenFunc(opts Options) decoder.OpenFunc {
	return func(path string) (decoder.Demuxer, error) {
		if opts.FailOpen != nil {
			return nil, opts.FailOpen
		}
		return NewDemuxer(opts), nil
	}
}

// NewDemuxer builds a Demuxer directly from opts, bypassing OpenFunc's
// path argument - handy when a test wants the Demuxer itself.
func NewDemuxer(opts Options) decoder.Demuxer {
	d := &demuxer{opts: opts}
	d.info = decoder.MediaFileInfo{
		Path:            "synthetic",
		HasVideo:        opts.Width > 0 && opts.Height > 0 && opts.FrameCount > 0,
		VideoWidth:      opts.Width,
		VideoHeight:     opts.Height,
		VideoRate:       opts.Rate,
		Rotation:        opts.Rotation,
		HasAudio:        opts.HasAudio,
		AudioSampleRate: opts.AudioSampleRate,
		AudioChannels:   opts.AudioChannels,
		DurationUS:      ratetime.NewFrameTime(opts.FrameCount, opts.Rate).ToUS(),
	}
	if opts.HasAudio && opts.AudioDurationUS > d.info.DurationUS {
		d.info.DurationUS = opts.AudioDurationUS
	}
	return d
}

func (d *demuxer) Info() decoder.MediaFileInfo { return d.info }
func (d *demuxer) Close() error                { return nil }

func (d *demuxer) OpenVideo() (decoder.VideoDecodeSession, error) {
	if !d.info.HasVideo {
		return nil, mediaerr.NewUnsupported("synthetic stream has no video")
	}
	gop := d.opts.GOPSize
	if gop < 1 {
		gop = 1
	}
	vs := &videoSession{opts: d.opts, gop: gop}
	vs.order = decodeOrderForGOP(gop)
	return vs, nil
}

func (d *demuxer) OpenAudio(outSampleRate, outChannels int32) (decoder.AudioDecodeSession, error) {
	if !d.info.HasAudio {
		return nil, mediaerr.NewUnsupported("synthetic stream has no audio")
	}
	return &audioSession{opts: d.opts, outRate: outSampleRate, outCh: outChannels}, nil
}

// decodeOrderForGOP returns, for a GOP of size n, the presentation-index
// decode order: frame 0 (I) first, frame n-1 (P) second, then the
// remaining B-frames 1..n-2 in order. For n==2 this is just [0, 1]; for
// n<=1 it is [0].
func decodeOrderForGOP(n int) []int {
	if n <= 1 {
		return []int{0}
	}
	order := make([]int, 0, n)
	order = append(order, 0, n-1)
	for i := 1; i < n-1; i++ {
		order = append(order, i)
	}
	return order
}

type videoSession struct {
	opts  Options
	gop   int
	order []int

	// gopStart is the presentation index of the current GOP's first frame;
	// within a GOP, gopPos indexes into order.
	gopStart int64
	gopPos   int
}

func (v *videoSession) Seek(targetUS ratetime.TimeUS) error {
	ft := ratetime.FrameTimeFromUS(targetUS, v.opts.Rate)
	idx := ft.Frame
	if idx < 0 {
		idx = 0
	}
	// Past the end, the keyframe at or before the target is the last GOP's.
	if idx >= v.opts.FrameCount {
		idx = v.opts.FrameCount - 1
	}
	v.gopStart = (idx / int64(v.gop)) * int64(v.gop)
	v.gopPos = 0
	return nil
}

func (v *videoSession) DecodeNextFrame() (decoder.DecodedFrame, error) {
	for {
		if v.gopStart >= v.opts.FrameCount {
			return decoder.DecodedFrame{}, mediaerr.NewEOF()
		}
		if v.gopPos >= len(v.order) {
			v.gopStart += int64(v.gop)
			v.gopPos = 0
			continue
		}
		presentIdx := v.gopStart + int64(v.order[v.gopPos])
		v.gopPos++
		if presentIdx >= v.opts.FrameCount {
			continue
		}
		return v.synthFrame(presentIdx), nil
	}
}

func (v *videoSession) synthFrame(idx int64) decoder.DecodedFrame {
	w, h := v.opts.Width, v.opts.Height
	stride := w * 4
	data := make([]byte, stride*h)
	r := byte(idx * 13)
	g := byte(idx * 7)
	b := byte(idx)
	for i := 0; i < w*h; i++ {
		data[i*4+0] = b
		data[i*4+1] = g
		data[i*4+2] = r
		data[i*4+3] = 255
	}
	ptsUS := ratetime.NewFrameTime(idx, v.opts.Rate).ToUS()
	f, err := frame.NewCPU(w, h, stride, ptsUS, data)
	if err != nil {
		panic(err)
	}
	return decoder.DecodedFrame{
		Frame: f,
		PTSUS: ptsUS,
	}
}

func (v *videoSession) Close() error { return nil }

type audioSession struct {
	opts    Options
	outRate int32
	outCh   int32

	cursorUS ratetime.TimeUS
}

const defaultChunkFrames = 1024

func (a *audioSession) Seek(targetUS ratetime.TimeUS) error {
	if targetUS < 0 {
		targetUS = 0
	}
	a.cursorUS = targetUS
	return nil
}

func (a *audioSession) DecodeNextChunk() (*frame.PcmChunk, error) {
	if a.cursorUS >= a.opts.AudioDurationUS {
		return nil, mediaerr.NewEOF()
	}
	n := int64(defaultChunkFrames)
	samples := make([]float32, n*int64(a.outCh))
	freqHz := 440.0
	for i := int64(0); i < n; i++ {
		tSec := float64(a.cursorUS)/1e6 + float64(i)/float64(a.outRate)
		v := float32(math.Sin(2 * math.Pi * freqHz * tSec))
		for c := int32(0); c < a.outCh; c++ {
			samples[i*int64(a.outCh)+int64(c)] = v
		}
	}
	chunk := frame.NewPcmChunk(frame.AudioFormat{
		Format:     frame.SampleFormatF32,
		SampleRate: a.outRate,
		Channels:   a.outCh,
	}, a.cursorUS, samples)
	a.cursorUS += n * 1_000_000 / int64(a.outRate)
	return chunk, nil
}

func (a *audioSession) Flush() (*frame.PcmChunk, error) { return nil, nil }

func (a *audioSession) Close() error { return nil }
