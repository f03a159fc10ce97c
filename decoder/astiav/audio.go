package astiav

import (
	"fmt"
	"math"

	goastiav "github.com/asticode/go-astiav"
	"github.com/e1z0/mediacore/decoder"
	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
)

// audioSession decodes and resamples one audio stream to the requested
// output sample rate/channel count, interleaved F32. Grounded on the
// teacher's AAC re-encode resample path (video.go): a
// SoftwareResampleContext configures itself on first ConvertFrame() call,
// repurposed here from encode-side resampling to decode-side output
// normalization.
type audioSession struct {
	fc     *goastiav.FormatContext
	stream *goastiav.Stream
	idx    int
	cctx   *goastiav.CodecContext

	outRate int32
	outCh   int32

	pkt     *goastiav.Packet
	decFrm  *goastiav.Frame
	outFrm  *goastiav.Frame
	swr     *goastiav.SoftwareResampleContext
}

func (d *demuxer) OpenAudio(outSampleRate, outChannels int32) (decoder.AudioDecodeSession, error) {
	if !d.info.HasAudio {
		return nil, mediaerr.NewUnsupported("file has no audio stream")
	}

	fc := goastiav.AllocFormatContext()
	if fc == nil {
		return nil, mediaerr.NewInternal("AllocFormatContext failed")
	}
	if err := fc.OpenInput(d.path, nil, nil); err != nil {
		fc.Free()
		return nil, mediaerr.NewFileNotFound(d.path)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, mediaerr.NewDecodeFailed(fmt.Sprintf("FindStreamInfo: %v", err))
	}

	as := fc.Streams()[d.audioStreamIdx]
	apar := as.CodecParameters()
	adec := goastiav.FindDecoder(apar.CodecID())
	if adec == nil {
		fc.CloseInput()
		fc.Free()
		return nil, mediaerr.NewUnsupported("no decoder for audio codec")
	}

	actx := goastiav.AllocCodecContext(adec)
	if actx == nil {
		fc.CloseInput()
		fc.Free()
		return nil, mediaerr.NewInternal("AllocCodecContext(audio) failed")
	}
	if err := apar.ToCodecContext(actx); err != nil {
		actx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, mediaerr.NewDecodeFailed(fmt.Sprintf("ToCodecContext(audio): %v", err))
	}
	if err := actx.Open(adec, nil); err != nil {
		actx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, mediaerr.NewDecodeFailed(fmt.Sprintf("open audio decoder: %v", err))
	}

	return &audioSession{
		fc: fc, stream: as, idx: d.audioStreamIdx, cctx: actx,
		outRate: outSampleRate, outCh: outChannels,
		pkt: goastiav.AllocPacket(), decFrm: goastiav.AllocFrame(), outFrm: goastiav.AllocFrame(),
	}, nil
}

func (a *audioSession) Seek(targetUS ratetime.TimeUS) error {
	ts := usToStreamPTS(targetUS, a.stream)
	flags := goastiav.NewSeekFlags(goastiav.SeekFlagBackward)
	if err := a.fc.SeekFrame(a.idx, ts, flags); err != nil {
		// Fall back to stream start once; a second failure is surfaced.
		if ferr := a.fc.SeekFrame(a.idx, 0, flags); ferr != nil {
			return mediaerr.NewSeekFailed(fmt.Sprintf("seek audio to %d: %v (fallback: %v)", targetUS, err, ferr))
		}
	}
	a.cctx.FlushBuffers()
	if a.swr != nil {
		a.swr.Free()
		a.swr = nil
	}
	return nil
}

// ensureResampler allocates the resample context when none exists. Seek
// frees it, so the first conversion after every seek starts from an empty
// FIFO. The output rate is fixed for the session's lifetime.
func (a *audioSession) ensureResampler() {
	if a.swr == nil {
		a.swr = goastiav.AllocSoftwareResampleContext()
	}
}

func (a *audioSession) DecodeNextChunk() (*frame.PcmChunk, error) {
	for {
		err := a.cctx.ReceiveFrame(a.decFrm)
		if err == nil {
			return a.resampleAndWrap(a.decFrm)
		}
		if !isEAgain(err) {
			if isEOF(err) {
				return nil, mediaerr.NewEOF()
			}
			return nil, wrapFFmpegErr(err, "ReceiveFrame(audio)")
		}

		for {
			rerr := a.fc.ReadFrame(a.pkt)
			if rerr != nil {
				if isEOF(rerr) {
					_ = a.cctx.SendPacket(nil)
					if ferr := a.cctx.ReceiveFrame(a.decFrm); ferr == nil {
						return a.resampleAndWrap(a.decFrm)
					}
					return nil, mediaerr.NewEOF()
				}
				return nil, wrapFFmpegErr(rerr, "ReadFrame(audio)")
			}
			if a.pkt.StreamIndex() == a.idx {
				break
			}
			a.pkt.Unref()
		}

		serr := a.cctx.SendPacket(a.pkt)
		a.pkt.Unref()
		if serr != nil && !isEAgain(serr) {
			return nil, wrapFFmpegErr(serr, "SendPacket(audio)")
		}
	}
}

func (a *audioSession) resampleAndWrap(src *goastiav.Frame) (*frame.PcmChunk, error) {
	a.ensureResampler()

	a.outFrm.SetSampleFormat(goastiav.SampleFormatFlt)
	a.outFrm.SetChannelLayout(goastiav.ChannelLayoutStereo)
	a.outFrm.SetSampleRate(int(a.outRate))
	a.outFrm.SetNbSamples(src.NbSamples())

	if err := a.outFrm.AllocBuffer(0); err != nil {
		return nil, mediaerr.NewDecodeFailed(fmt.Sprintf("audio out frame AllocBuffer: %v", err))
	}
	if err := a.swr.ConvertFrame(src, a.outFrm); err != nil {
		return nil, mediaerr.NewDecodeFailed(fmt.Sprintf("resample ConvertFrame: %v", err))
	}

	ptsUS := streamPTSToUS(src.Pts(), a.stream)
	samples, err := interleavedF32(a.outFrm)
	if err != nil {
		return nil, mediaerr.NewDecodeFailed(fmt.Sprintf("audio Data().Bytes: %v", err))
	}

	a.outFrm.Unref()

	return frame.NewPcmChunk(frame.AudioFormat{
		Format:     frame.SampleFormatF32,
		SampleRate: a.outRate,
		Channels:   a.outCh,
	}, ptsUS, samples), nil
}

// Flush drains any samples buffered inside the resample FIFO once input is
// exhausted, by calling ConvertFrame with a nil source frame - the
// standard FFmpeg swr flush idiom.
func (a *audioSession) Flush() (*frame.PcmChunk, error) {
	if a.swr == nil {
		return nil, nil
	}
	a.outFrm.SetSampleFormat(goastiav.SampleFormatFlt)
	a.outFrm.SetChannelLayout(goastiav.ChannelLayoutStereo)
	a.outFrm.SetSampleRate(int(a.outRate))
	a.outFrm.SetNbSamples(1024)
	if err := a.outFrm.AllocBuffer(0); err != nil {
		return nil, mediaerr.NewDecodeFailed(fmt.Sprintf("flush AllocBuffer: %v", err))
	}
	if err := a.swr.ConvertFrame(nil, a.outFrm); err != nil {
		return nil, nil
	}
	samples, err := interleavedF32(a.outFrm)
	a.outFrm.Unref()
	if err != nil || len(samples) == 0 {
		return nil, nil
	}
	return frame.NewPcmChunk(frame.AudioFormat{
		Format:     frame.SampleFormatF32,
		SampleRate: a.outRate,
		Channels:   a.outCh,
	}, 0, samples), nil
}

func interleavedF32(f *goastiav.Frame) ([]float32, error) {
	raw, err := f.Data().Bytes(0)
	if err != nil {
		return nil, err
	}
	n := len(raw) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = bytesToFloat32LE(raw[i*4 : i*4+4])
	}
	return out, nil
}

func bytesToFloat32LE(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}

func (a *audioSession) Close() error {
	if a.swr != nil {
		a.swr.Free()
	}
	if a.outFrm != nil {
		a.outFrm.Free()
	}
	if a.decFrm != nil {
		a.decFrm.Free()
	}
	if a.pkt != nil {
		a.pkt.Free()
	}
	if a.cctx != nil {
		a.cctx.Free()
	}
	a.fc.CloseInput()
	a.fc.Free()
	return nil
}
