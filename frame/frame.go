// Package frame defines the decoded video/audio data model shared by the
// decoder, reader, and tmb packages. Frame is always BGRA32 to callers;
// anything arriving in another pixel layout is converted before it leaves
// the decoder boundary.
package frame

import (
	"sync"

	"github.com/e1z0/mediacore/mediaerr"
	"github.com/e1z0/mediacore/ratetime"
)

// HardwareSource is implemented by a platform-specific decode surface that
// wants to defer its CPU realization until a caller actually asks for
// pixels. No implementation ships in this module (the decoder forces
// software decode, matching the teacher's own "hwaccel=none" choice), but
// Frame supports the contract so a platform integration can plug one in
// without changing the Frame API.
type HardwareSource interface {
	// Realize produces BGRA32 pixel data on demand.
	Realize() (data []byte, stride int, err error)
}

// Frame is a decoded video frame in BGRA32 format: B, G, R, A per pixel,
// alpha always 255. Immutable once constructed; safe to share across
// goroutines (the cache and the caller both hold references to the same
// Frame without copying pixel data).
type Frame struct {
	width       int
	height      int
	strideBytes int
	sourcePTSUS ratetime.TimeUS

	data []byte
	hw   HardwareSource

	realizeMu sync.Mutex
}

// NewCPU builds a CPU-backed Frame from raw BGRA32 pixel data. data must be
// at least stride*height bytes. Enforces the Frame attribute contract:
// width and height positive, stride at least 4*width (one BGRA32 pixel per
// column, no less), and data sized to cover stride*height.
func NewCPU(w, h, stride int, ptsUS ratetime.TimeUS, data []byte) (*Frame, error) {
	if w <= 0 || h <= 0 {
		return nil, mediaerr.NewInvalidArg("frame.NewCPU: width and height must be positive")
	}
	if stride < w*4 {
		return nil, mediaerr.NewInvalidArg("frame.NewCPU: stride must be at least 4*width")
	}
	if len(data) < stride*h {
		return nil, mediaerr.NewInvalidArg("frame.NewCPU: data shorter than stride*height")
	}
	return &Frame{
		width:       w,
		height:      h,
		strideBytes: stride,
		sourcePTSUS: ptsUS,
		data:        data,
	}, nil
}

// NewHardware builds a Frame whose pixel data is realized lazily via src.
func NewHardware(w, h int, ptsUS ratetime.TimeUS, src HardwareSource) (*Frame, error) {
	if w <= 0 || h <= 0 {
		return nil, mediaerr.NewInvalidArg("frame.NewHardware: width and height must be positive")
	}
	if src == nil {
		return nil, mediaerr.NewInvalidArg("frame.NewHardware: src must not be nil")
	}
	return &Frame{width: w, height: h, sourcePTSUS: ptsUS, hw: src}, nil
}

func (f *Frame) Width() int                     { return f.width }
func (f *Frame) Height() int                    { return f.height }
func (f *Frame) SourcePTSUS() ratetime.TimeUS    { return f.sourcePTSUS }

// StrideBytes returns bytes per row, realizing the hardware source on
// first access if this Frame was built from one.
func (f *Frame) StrideBytes() (int, error) {
	if err := f.ensureRealized(); err != nil {
		return 0, err
	}
	return f.strideBytes, nil
}

// Data returns the BGRA32 pixel buffer, realizing a hardware source on
// first access. The returned slice must not be mutated by the caller.
func (f *Frame) Data() ([]byte, error) {
	if err := f.ensureRealized(); err != nil {
		return nil, err
	}
	return f.data, nil
}

// DataSize returns stride_bytes * height once realized.
func (f *Frame) DataSize() (int, error) {
	if err := f.ensureRealized(); err != nil {
		return 0, err
	}
	return f.strideBytes * f.height, nil
}

func (f *Frame) ensureRealized() error {
	f.realizeMu.Lock()
	defer f.realizeMu.Unlock()
	if f.data != nil || f.hw == nil {
		return nil
	}
	data, stride, err := f.hw.Realize()
	if err != nil {
		return err
	}
	f.data = data
	f.strideBytes = stride
	f.hw = nil
	return nil
}
