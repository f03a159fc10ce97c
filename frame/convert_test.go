package frame_test

import (
	"testing"

	"github.com/e1z0/mediacore/frame"
	"github.com/stretchr/testify/assert"
)

func TestRealizeNV12WhiteFullRange(t *testing.T) {
	// full-range, luma=255, chroma=128 (neutral) should produce near-white BGRA
	w, h := 2, 2
	y := []byte{255, 255, 255, 255}
	uv := []byte{128, 128}
	data, stride := frame.RealizeNV12(frame.NV12Planes{
		Y: y, UV: uv, YStride: w, UVStride: w, Width: w, Height: h, FullRange: true,
	})
	assert.True(t, stride >= w*4)
	px := data[0:4]
	assert.InDelta(t, 255, px[0], 2)
	assert.InDelta(t, 255, px[1], 2)
	assert.InDelta(t, 255, px[2], 2)
	assert.Equal(t, byte(255), px[3])
}

func TestRealizeNV12BlackVideoRange(t *testing.T) {
	w, h := 2, 2
	y := []byte{16, 16, 16, 16}
	uv := []byte{128, 128}
	data, _ := frame.RealizeNV12(frame.NV12Planes{
		Y: y, UV: uv, YStride: w, UVStride: w, Width: w, Height: h, FullRange: false,
	})
	px := data[0:4]
	assert.InDelta(t, 0, px[0], 3)
	assert.InDelta(t, 0, px[1], 3)
	assert.InDelta(t, 0, px[2], 3)
}

func TestRealizeP010MidGray(t *testing.T) {
	w, h := 2, 2
	mid := uint16(512 << 6)
	neutral := uint16(512 << 6)
	y := []uint16{mid, mid, mid, mid}
	uv := []uint16{neutral, neutral}
	data, stride := frame.RealizeP010(frame.P010Planes{
		Y: y, UV: uv, YStride: w, UVStride: w, Width: w, Height: h, FullRange: true,
	})
	assert.True(t, stride >= w*4)
	px := data[0:4]
	assert.InDelta(t, 128, px[0], 5)
	assert.InDelta(t, 128, px[1], 5)
	assert.InDelta(t, 128, px[2], 5)
}
