package frame

import "github.com/e1z0/mediacore/ratetime"

// SampleFormat is the PCM sample representation. v1 only produces F32.
type SampleFormat int

const (
	SampleFormatF32 SampleFormat = iota
)

// AudioFormat describes a PCM stream's layout.
type AudioFormat struct {
	Format     SampleFormat
	SampleRate int32
	Channels   int32
}

// PcmChunk is an immutable chunk of interleaved float32 PCM audio,
// produced by Reader.DecodeAudioRange and conformed by the TMB's
// speed_ratio stage. Data is frames()*channels() float32 values,
// interleaved per sample-frame.
type PcmChunk struct {
	format      AudioFormat
	startTimeUS ratetime.TimeUS
	data        []float32
}

// NewPcmChunk constructs a chunk. len(data) must be a multiple of
// format.Channels.
func NewPcmChunk(format AudioFormat, startTimeUS ratetime.TimeUS, data []float32) *PcmChunk {
	return &PcmChunk{format: format, startTimeUS: startTimeUS, data: data}
}

func (c *PcmChunk) SampleRate() int32           { return c.format.SampleRate }
func (c *PcmChunk) Channels() int32             { return c.format.Channels }
func (c *PcmChunk) Format() SampleFormat        { return c.format.Format }
func (c *PcmChunk) StartTimeUS() ratetime.TimeUS { return c.startTimeUS }
func (c *PcmChunk) Data() []float32             { return c.data }

// Frames returns the number of sample-frames (samples per channel).
func (c *PcmChunk) Frames() int64 {
	if c.format.Channels == 0 {
		return 0
	}
	return int64(len(c.data)) / int64(c.format.Channels)
}
