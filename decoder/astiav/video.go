package astiav

import (
	"fmt"

	goastiav "github.com/asticode/go-astiav"
	"github.com/e1z0/mediacore/decoder"
	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
)

// videoSession owns its own AVFormatContext + AVCodecContext, independent
// of any other session opened from the same Demuxer. This is what lets a
// Reader run a main decode path and a prefetch worker against the same
// file without sharing decoder state (spec: "two decoder pipelines per
// Reader").
type videoSession struct {
	fc     *goastiav.FormatContext
	stream *goastiav.Stream
	idx    int
	cctx   *goastiav.CodecContext

	pkt    *goastiav.Packet
	frm    *goastiav.Frame
	scaler bgraScaler
}

func (d *demuxer) OpenVideo() (decoder.VideoDecodeSession, error) {
	if !d.info.HasVideo {
		return nil, mediaerr.NewUnsupported("file has no video stream")
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

	vst := fc.Streams()[d.videoStreamIdx]
	vpar := vst.CodecParameters()
	vdec := goastiav.FindDecoder(vpar.CodecID())
	if vdec == nil {
		fc.CloseInput()
		fc.Free()
		return nil, mediaerr.NewUnsupported("no decoder for video codec")
	}

	vctx := goastiav.AllocCodecContext(vdec)
	if vctx == nil {
		fc.CloseInput()
		fc.Free()
		return nil, mediaerr.NewInternal("AllocCodecContext(video) failed")
	}
	if err := vpar.ToCodecContext(vctx); err != nil {
		vctx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, mediaerr.NewDecodeFailed(fmt.Sprintf("ToCodecContext(video): %v", err))
	}

	// Force software decode, matching the teacher's stability choice of
	// never requesting hardware frames from FFmpeg.
	opts := goastiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("hwaccel", "none", 0)

	if err := vctx.Open(vdec, opts); err != nil {
		vctx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, mediaerr.NewDecodeFailed(fmt.Sprintf("open video decoder: %v", err))
	}

	return &videoSession{
		fc:     fc,
		stream: vst,
		idx:    d.videoStreamIdx,
		cctx:   vctx,
		pkt:    goastiav.AllocPacket(),
		frm:    goastiav.AllocFrame(),
	}, nil
}

// Seek repositions the stream at the keyframe at or before targetUS with
// zero extra backoff: AVSEEK_FLAG_BACKWARD already lands there, so there
// is nothing further to subtract. This is a deliberate redesign from
// original_source's 2-second SEEK_BACKOFF_US (see SPEC_FULL.md §9).
func (v *videoSession) Seek(targetUS ratetime.TimeUS) error {
	ts := usToStreamPTS(targetUS, v.stream)
	flags := goastiav.NewSeekFlags(goastiav.SeekFlagBackward)
	if err := v.fc.SeekFrame(v.idx, ts, flags); err != nil {
		return mediaerr.NewSeekFailed(fmt.Sprintf("seek to %d: %v", targetUS, err))
	}
	v.cctx.FlushBuffers()
	return nil
}

func (v *videoSession) DecodeNextFrame() (decoder.DecodedFrame, error) {
	for {
		err := v.cctx.ReceiveFrame(v.frm)
		if err == nil {
			return v.toDecodedFrame()
		}
		if !isEAgain(err) {
			if isEOF(err) {
				return decoder.DecodedFrame{}, mediaerr.NewEOF()
			}
			return decoder.DecodedFrame{}, wrapFFmpegErr(err, "ReceiveFrame(video)")
		}

		for {
			rerr := v.fc.ReadFrame(v.pkt)
			if rerr != nil {
				if isEOF(rerr) {
					_ = v.cctx.SendPacket(nil)
					if ferr := v.cctx.ReceiveFrame(v.frm); ferr == nil {
						return v.toDecodedFrame()
					}
					return decoder.DecodedFrame{}, mediaerr.NewEOF()
				}
				return decoder.DecodedFrame{}, wrapFFmpegErr(rerr, "ReadFrame")
			}
			if v.pkt.StreamIndex() == v.idx {
				break
			}
			v.pkt.Unref()
		}

		serr := v.cctx.SendPacket(v.pkt)
		v.pkt.Unref()
		if serr != nil && !isEAgain(serr) {
			return decoder.DecodedFrame{}, wrapFFmpegErr(serr, "SendPacket(video)")
		}
	}
}

func (v *videoSession) toDecodedFrame() (decoder.DecodedFrame, error) {
	ptsUS := streamPTSToUS(v.frm.Pts(), v.stream)
	w, h, data, err := v.scaler.toBGRA(v.frm)
	if err != nil {
		return decoder.DecodedFrame{}, mediaerr.NewDecodeFailed(fmt.Sprintf("scale to BGRA: %v", err))
	}
	stride := frame.AlignedStride(w)
	f, err := frame.NewCPU(w, h, stride, ptsUS, data)
	if err != nil {
		return decoder.DecodedFrame{}, err
	}
	return decoder.DecodedFrame{
		Frame: f,
		PTSUS: ptsUS,
	}, nil
}

func (v *videoSession) Close() error {
	v.scaler.close()
	if v.frm != nil {
		v.frm.Free()
	}
	if v.pkt != nil {
		v.pkt.Free()
	}
	if v.cctx != nil {
		v.cctx.Free()
	}
	v.fc.CloseInput()
	v.fc.Free()
	return nil
}

// bgraScaler is the generalization of the teacher's video.go bgraScaler:
// same lazy ensure()/recreate-on-format-change pattern, but handling
// arbitrary source pixel formats instead of the single RTSP camera case.
type bgraScaler struct {
	ssc        *goastiav.SoftwareScaleContext
	dst        *goastiav.Frame
	srcW, srcH int
	srcPix     goastiav.PixelFormat
}

func (s *bgraScaler) close() {
	if s.dst != nil {
		s.dst.Free()
		s.dst = nil
	}
	if s.ssc != nil {
		s.ssc.Free()
		s.ssc = nil
	}
}

func (s *bgraScaler) ensure(src *goastiav.Frame) error {
	sw, sh := src.Width(), src.Height()
	sp := src.PixelFormat()

	if s.ssc != nil && sw == s.srcW && sh == s.srcH && sp == s.srcPix {
		return nil
	}
	s.close()

	flags := goastiav.NewSoftwareScaleContextFlags()
	ssc, err := goastiav.CreateSoftwareScaleContext(sw, sh, sp, sw, sh, goastiav.PixelFormatBgra, flags)
	if err != nil {
		return fmt.Errorf("CreateSoftwareScaleContext(%dx%d %v -> BGRA): %w", sw, sh, sp, err)
	}

	dst := goastiav.AllocFrame()
	dst.SetWidth(sw)
	dst.SetHeight(sh)
	dst.SetPixelFormat(goastiav.PixelFormatBgra)
	// Align to 32 bytes, matching frame.AlignedStride - the Frame attribute
	// contract requires stride_bytes on a 32-byte boundary, and toBGRA below
	// copies out exactly this buffer's linesize.
	if err := dst.AllocBuffer(32); err != nil {
		dst.Free()
		ssc.Free()
		return fmt.Errorf("dst.AllocBuffer: %w", err)
	}

	s.ssc = ssc
	s.dst = dst
	s.srcW, s.srcH, s.srcPix = sw, sh, sp
	return nil
}

func (s *bgraScaler) toBGRA(src *goastiav.Frame) (int, int, []byte, error) {
	if err := s.ensure(src); err != nil {
		return 0, 0, nil, err
	}
	if err := s.ssc.ScaleFrame(src, s.dst); err != nil {
		return 0, 0, nil, fmt.Errorf("ScaleFrame: %w", err)
	}
	n, err := s.dst.ImageBufferSize(32)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("ImageBufferSize: %w", err)
	}
	out := make([]byte, n)
	if _, err := s.dst.ImageCopyToBuffer(out, 32); err != nil {
		return 0, 0, nil, fmt.Errorf("ImageCopyToBuffer: %w", err)
	}
	return s.srcW, s.srcH, out, nil
}
