package frame

// Biplanar YUV 4:2:0 to BGRA32 conversion, used by HardwareSource
// implementations that hand back a raw platform surface instead of
// already-converted pixels. Ported from the VideoToolbox CVPixelBuffer
// path, replacing Accelerate/vImage calls with plain loops since there is
// no portable Go equivalent; the BT.709 matrix and range handling are
// unchanged.

// AlignedStride rounds w*4 up to the next 32-byte boundary, matching the
// dst_stride computation used for every realized CPU buffer (the Frame
// attribute contract requires stride_bytes aligned to 32 bytes).
func AlignedStride(w int) int {
	return ((w * 4) + 31) &^ 31
}

func clamp8(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// NV12Planes is a single-byte-per-component 4:2:0 biplanar surface: a full
// resolution Y plane and a half-resolution interleaved CbCr plane.
type NV12Planes struct {
	Y, UV             []byte
	YStride, UVStride int
	Width, Height     int
	FullRange         bool
}

// RealizeNV12 converts an 8-bit NV12 surface to BGRA32 with BT.709
// coefficients, honoring full-range vs. video-range scaling.
func RealizeNV12(p NV12Planes) (data []byte, stride int) {
	stride = AlignedStride(p.Width)
	data = make([]byte, stride*p.Height)

	for y := 0; y < p.Height; y++ {
		yRow := p.Y[y*p.YStride:]
		uvRow := p.UV[(y/2)*p.UVStride:]
		dstRow := data[y*stride:]

		for x := 0; x < p.Width; x++ {
			yVal := float64(yRow[x])
			cb := float64(uvRow[(x/2)*2]) - 128
			cr := float64(uvRow[(x/2)*2+1]) - 128

			if p.FullRange {
				yVal = yVal / 255.0
			} else {
				yVal = (yVal - 16.0) / 219.0
				cb = cb * (255.0 / 224.0)
				cr = cr * (255.0 / 224.0)
			}
			cb = cb / 255.0
			cr = cr / 255.0

			r := yVal + 1.5748*cr
			g := yVal - 0.1873*cb - 0.4681*cr
			b := yVal + 1.8556*cb

			px := dstRow[x*4 : x*4+4]
			px[0] = clamp8(b * 255.0)
			px[1] = clamp8(g * 255.0)
			px[2] = clamp8(r * 255.0)
			px[3] = 255
		}
	}
	return data, stride
}

// P010Planes is a 10-bit-in-16-bit 4:2:0 biplanar surface (HDR / 10-bit
// ProRes decode output), sample value held in the upper 10 bits.
type P010Planes struct {
	Y, UV             []uint16
	YStride, UVStride int // stride in uint16 elements per row
	Width, Height     int
	FullRange         bool
}

// RealizeP010 converts a 10-bit P010 surface to BGRA32 with BT.709
// coefficients and full/video range scaling.
func RealizeP010(p P010Planes) (data []byte, stride int) {
	stride = AlignedStride(p.Width)
	data = make([]byte, stride*p.Height)

	for row := 0; row < p.Height; row++ {
		yRow := p.Y[row*p.YStride:]
		uvRow := p.UV[(row/2)*p.UVStride:]
		dstRow := data[row*stride:]

		for col := 0; col < p.Width; col++ {
			yVal := float64(yRow[col]>>6) / 1023.0
			cb := float64(uvRow[(col/2)*2]>>6)/1023.0 - 0.5
			cr := float64(uvRow[(col/2)*2+1]>>6)/1023.0 - 0.5

			if !p.FullRange {
				yVal = (yVal - 16.0/255.0) * (255.0 / 219.0)
				cb = cb * (255.0 / 224.0)
				cr = cr * (255.0 / 224.0)
			}

			r := yVal + 1.5748*cr
			g := yVal - 0.1873*cb - 0.4681*cr
			b := yVal + 1.8556*cb

			px := dstRow[col*4 : col*4+4]
			px[0] = clamp8(b * 255.0)
			px[1] = clamp8(g * 255.0)
			px[2] = clamp8(r * 255.0)
			px[3] = 255
		}
	}
	return data, stride
}
