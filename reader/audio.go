package reader

import (
	"github.com/e1z0/mediacore/decoder"
	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
)

// DecodeAudioRange decodes audio for [t0, t1) at frame-first times,
// resampled to out.
func (r *Reader) DecodeAudioRange(t0, t1 ratetime.FrameTime, out frame.AudioFormat) (*frame.PcmChunk, error) {
	return r.DecodeAudioRangeUS(t0.ToUS(), t1.ToUS(), out)
}

// DecodeAudioRangeUS implements §4.2.H. The resampler always produces
// stereo regardless of the source channel layout; the seek-fallback-to-
// zero and FIFO reset on a discontinuous seek both happen inside the
// decoder.AudioDecodeSession implementation, not here.
func (r *Reader) DecodeAudioRangeUS(t0US, t1US ratetime.TimeUS, out frame.AudioFormat) (*frame.PcmChunk, error) {
	if !r.info.HasAudio {
		return nil, mediaerr.NewUnsupported("reader has no audio stream")
	}
	if t1US <= t0US {
		return nil, mediaerr.NewInvalidArg("DecodeAudioRangeUS: t1 must be greater than t0")
	}

	r.decodeMu.Lock()
	defer r.decodeMu.Unlock()

	sess, err := r.ensureAudioSession(out.SampleRate)
	if err != nil {
		return nil, err
	}
	if err := sess.Seek(t0US); err != nil {
		return nil, err
	}

	var samples []float32
	decodedStartUS := ratetime.TimeUS(-1)
	totalFrames := int64(0)

	for {
		chunk, err := sess.DecodeNextChunk()
		if err != nil {
			if mediaerr.CodeOf(err) == mediaerr.EOFReached {
				break
			}
			return nil, err
		}
		if chunk == nil || chunk.Frames() == 0 {
			continue
		}

		frameDurUS := chunk.Frames() * 1_000_000 / int64(chunk.SampleRate())
		frameEndUS := chunk.StartTimeUS() + frameDurUS

		// Skip frames that end before the range starts.
		if frameEndUS <= t0US {
			continue
		}
		// Stop once a frame starts at or after the range end.
		if chunk.StartTimeUS() >= t1US {
			break
		}

		if decodedStartUS < 0 {
			decodedStartUS = chunk.StartTimeUS()
		}
		samples = append(samples, chunk.Data()...)
		totalFrames += chunk.Frames()

		// Second, independent stopping condition: the accumulated output
		// already covers the requested range even though this frame's own
		// pts didn't cross t1.
		decodedDurUS := totalFrames * 1_000_000 / int64(out.SampleRate)
		if decodedStartUS >= 0 && decodedStartUS+decodedDurUS >= t1US {
			break
		}
	}

	if totalFrames > 0 {
		if tail, ferr := sess.Flush(); ferr == nil && tail != nil && tail.Frames() > 0 {
			samples = append(samples, tail.Data()...)
			totalFrames += tail.Frames()
		}
	}

	if decodedStartUS < 0 {
		decodedStartUS = t0US
	}

	return frame.NewPcmChunk(frame.AudioFormat{
		Format:     frame.SampleFormatF32,
		SampleRate: out.SampleRate,
		Channels:   resamplerOutputChannels,
	}, decodedStartUS, samples), nil
}

// ensureAudioSession lazily opens the main audio session, reopening it if
// the requested output sample rate changed - the rate-change resampler
// reinit gate, expressed here as "new session" rather than "reconfigure
// in place" since decoder.AudioDecodeSession bakes the output rate in at
// OpenAudio time.
func (r *Reader) ensureAudioSession(outRate int32) (decoder.AudioDecodeSession, error) {
	if r.mainAudio != nil && r.audioOutRate == outRate {
		return r.mainAudio, nil
	}
	if r.mainAudio != nil {
		r.mainAudio.Close()
		r.mainAudio = nil
	}
	sess, err := r.demuxer.OpenAudio(outRate, resamplerOutputChannels)
	if err != nil {
		return nil, err
	}
	r.mainAudio = sess
	r.audioOutRate = outRate
	return sess, nil
}
