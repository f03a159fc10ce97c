package ratetime_test

import (
	"testing"

	"github.com/e1z0/mediacore/ratetime"
	"github.com/stretchr/testify/assert"
)

func TestFrameTimeRoundTrip(t *testing.T) {
	rate := ratetime.Rate29_97
	for frame := int64(0); frame < 200; frame++ {
		ft := ratetime.NewFrameTime(frame, rate)
		us := ft.ToUS()
		back := ratetime.FrameTimeFromUS(us, rate)
		assert.Equal(t, frame, back.Frame, "frame %d round trip", frame)
	}
}

func TestFrameTimeToUSExactValues(t *testing.T) {
	// 24 fps integer: frame 1 == 1_000_000/24 us floored
	ft := ratetime.NewFrameTime(1, ratetime.Rate24)
	assert.Equal(t, int64(41666), ft.ToUS())

	// 23.976 fps: frame 1 == floor(1*1_000_000*1001/24000)
	ft = ratetime.NewFrameTime(1, ratetime.Rate23_976)
	assert.Equal(t, int64(41708), ft.ToUS())
}

func TestFrameTimeFromUSFloorOnGrid(t *testing.T) {
	rate := ratetime.Rate24
	// one us before the frame-1 boundary must still floor to frame 0
	ft := ratetime.FrameTimeFromUS(41665, rate)
	assert.Equal(t, int64(0), ft.Frame)

	ft = ratetime.FrameTimeFromUS(41666, rate)
	assert.Equal(t, int64(1), ft.Frame)
}
