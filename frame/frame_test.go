package frame_test

import (
	"testing"

	"github.com/e1z0/mediacore/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCPUFrame(t *testing.T) {
	data := make([]byte, 64*4*10)
	f, err := frame.NewCPU(64, 10, 64*4, 12345, data)
	require.NoError(t, err)
	assert.Equal(t, 64, f.Width())
	assert.Equal(t, 10, f.Height())
	assert.Equal(t, int64(12345), f.SourcePTSUS())

	stride, err := f.StrideBytes()
	require.NoError(t, err)
	assert.Equal(t, 256, stride)

	got, err := f.Data()
	require.NoError(t, err)
	assert.Len(t, got, len(data))
}

type fakeHW struct {
	calls int
	data  []byte
	stride int
}

func (h *fakeHW) Realize() ([]byte, int, error) {
	h.calls++
	return h.data, h.stride, nil
}

func TestHardwareFrameRealizesOnce(t *testing.T) {
	hw := &fakeHW{data: make([]byte, 16), stride: 4}
	f, err := frame.NewHardware(4, 4, 0, hw)
	require.NoError(t, err)

	_, err = f.Data()
	require.NoError(t, err)
	_, err = f.Data()
	require.NoError(t, err)
	stride, err := f.StrideBytes()
	require.NoError(t, err)

	assert.Equal(t, 1, hw.calls)
	assert.Equal(t, 4, stride)
}

func TestNewCPUInvalidInput(t *testing.T) {
	valid := make([]byte, 64*4*10)
	cases := []struct {
		name         string
		w, h, stride int
		data         []byte
	}{
		{"zero width", 0, 10, 64 * 4, valid},
		{"negative height", 64, -1, 64 * 4, valid},
		{"stride less than 4*width", 64, 10, 64*4 - 1, valid},
		{"data shorter than stride*height", 64, 10, 64 * 4, make([]byte, 64*4*5)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f, err := frame.NewCPU(c.w, c.h, c.stride, 0, c.data)
			require.Error(t, err)
			assert.Nil(t, f)
		})
	}
}

func TestNewHardwareInvalidInput(t *testing.T) {
	hw := &fakeHW{data: make([]byte, 16), stride: 4}
	cases := []struct {
		name string
		w, h int
		src  frame.HardwareSource
	}{
		{"zero width", 0, 4, hw},
		{"negative height", 4, -1, hw},
		{"nil source", 4, 4, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f, err := frame.NewHardware(c.w, c.h, 0, c.src)
			require.Error(t, err)
			assert.Nil(t, f)
		})
	}
}
