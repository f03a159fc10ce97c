// Package decoder defines the abstraction boundary between codec-specific
// decode machinery and the Reader/TMB layers above it. No codec type
// (AVFrame, AVPacket, ...) crosses this boundary; everything the rest of
// the module sees is frame.Frame, frame.PcmChunk, ratetime types, and
// *mediaerr.Error. The only implementation of these interfaces lives in
// decoder/astiav.
package decoder

import (
	"github.com/e1z0/mediacore/frame"
	"github.com/e1z0/mediacore/ratetime"
)

// MediaFileInfo describes a media file's static properties, derived once
// at open time.
type MediaFileInfo struct {
	Path string

	HasVideo      bool
	VideoWidth    int
	VideoHeight   int
	VideoRate     ratetime.Rate
	IsVFR         bool
	Rotation      int // 0, 90, 180, or 270 degrees
	StartTCFrames int64

	HasAudio         bool
	AudioSampleRate  int32
	AudioChannels    int32

	DurationUS ratetime.TimeUS
}

// DecodedFrame is a single decoded video frame with its presentation time.
type DecodedFrame struct {
	Frame *frame.Frame
	PTSUS ratetime.TimeUS
}

// Demuxer opens a media file and hands out independent decode sessions.
// A Reader opens one Demuxer per file and two video sessions from it: one
// for the caller-driven main decode path, one for the prefetch worker.
// Sessions must never share decoder state.
type Demuxer interface {
	// Info returns the static file info discovered at Open.
	Info() MediaFileInfo

	// OpenVideo starts a video decode session at the beginning of the
	// stream. Returns mediaerr.Unsupported if the file has no video.
	OpenVideo() (VideoDecodeSession, error)

	// OpenAudio starts an audio decode session. Returns
	// mediaerr.Unsupported if the file has no audio.
	OpenAudio(outSampleRate int32, outChannels int32) (AudioDecodeSession, error)

	// Close releases resources held by this Demuxer itself. Sessions it
	// produced are not closed by it; each is released by its own Close.
	Close() error
}

// VideoDecodeSession decodes video frames from one open stream.
type VideoDecodeSession interface {
	// Seek positions the stream at the keyframe at or before targetUS,
	// with zero extra backoff (the backward seek flag already lands
	// there). Returns mediaerr.SeekFailed on failure.
	Seek(targetUS ratetime.TimeUS) error

	// DecodeNextFrame decodes and returns the single next frame in
	// decode order (NOT necessarily presentation order). Returns
	// mediaerr.EOFReached at end of stream.
	DecodeNextFrame() (DecodedFrame, error)

	Close() error
}

// AudioDecodeSession decodes audio frames from one open stream, resampled
// to the output format requested at OpenAudio time.
type AudioDecodeSession interface {
	// Seek positions the stream at or before targetUS. On failure, the
	// implementation falls back to seeking to stream start once before
	// surfacing the error.
	Seek(targetUS ratetime.TimeUS) error

	// DecodeNextChunk decodes and resamples the next available chunk of
	// audio. Returns mediaerr.EOFReached at end of stream.
	DecodeNextChunk() (*frame.PcmChunk, error)

	// Flush drains any samples buffered inside the resampler with no
	// corresponding input left, returning nil (no error, possibly empty
	// chunk) once fully drained.
	Flush() (*frame.PcmChunk, error)

	Close() error
}

// Open opens path and reads stream info, matching
// FFmpegFormatContext::open + find_video_stream/find_audio_stream in the
// original implementation. Returns mediaerr.FileNotFound if path cannot be
// opened, mediaerr.Unsupported if no decodable stream is found.
type OpenFunc func(path string) (Demuxer, error)
