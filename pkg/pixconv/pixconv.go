// Package pixconv converts packed YUY2 (YUYV 4:2:2) pixel buffers to
// RGB24. Capture cards commonly deliver YUY2, and decoding it in the
// frame callback with integer arithmetic keeps the per-frame cost well
// below a floating-point conversion.
package pixconv

import (
	"errors"
	"fmt"
)

var (
	// ErrOddWidth is returned when the frame width is not even. YUY2
	// interleaves two luma samples per chroma pair, so odd widths have
	// no valid packing.
	ErrOddWidth = errors.New("pixconv: width must be even")

	// ErrShortBuffer is returned when the source buffer holds fewer than
	// width*height*2 bytes, or the destination fewer than width*height*3.
	ErrShortBuffer = errors.New("pixconv: buffer too small")
)

// RGBSize returns the number of bytes an RGB24 frame of the given
// dimensions occupies.
func RGBSize(width, height int) int {
	return width * height * 3
}

// YUY2Size returns the number of bytes a YUY2 frame of the given
// dimensions occupies.
func YUY2Size(width, height int) int {
	return width * height * 2
}

// YUY2ToRGB decodes a packed YUY2 buffer into dst as RGB24.
//
// Every 4 source bytes (y0, u, y1, v) produce two RGB pixels using a
// fixed-point BT.601 approximation: coefficients 1.164, 1.596, 0.813,
// 0.392 and 2.017 scaled by 1024, shifted right by 10, clamped to
// [0, 255].
//
// The conversion is pure: it writes only to dst and allocates nothing.
// A precondition violation (odd width, short buffer) aborts the whole
// frame with an error; partial conversion is never attempted.
func YUY2ToRGB(dst, src []byte, width, height int) error {
	if width%2 != 0 {
		return ErrOddWidth
	}
	if len(src) < YUY2Size(width, height) {
		return fmt.Errorf("%w: src %d < %d", ErrShortBuffer, len(src), YUY2Size(width, height))
	}
	if len(dst) < RGBSize(width, height) {
		return fmt.Errorf("%w: dst %d < %d", ErrShortBuffer, len(dst), RGBSize(width, height))
	}

	pairs := width * height / 2
	for i := 0; i < pairs; i++ {
		si := i * 4
		di := i * 6

		y0 := int(src[si]) - 16
		u := int(src[si+1]) - 128
		y1 := int(src[si+2]) - 16
		v := int(src[si+3]) - 128

		// 1.164*1024≈1192, 1.596*1024≈1634, 0.392*1024≈401,
		// 0.813*1024≈833, 2.017*1024≈2066
		rc := 1634 * v
		gc := -401*u - 833*v
		bc := 2066 * u

		l0 := 1192 * y0
		l1 := 1192 * y1

		dst[di] = clampByte((l0 + rc) >> 10)
		dst[di+1] = clampByte((l0 + gc) >> 10)
		dst[di+2] = clampByte((l0 + bc) >> 10)
		dst[di+3] = clampByte((l1 + rc) >> 10)
		dst[di+4] = clampByte((l1 + gc) >> 10)
		dst[di+5] = clampByte((l1 + bc) >> 10)
	}
	return nil
}

// YUY2ToRGBAlloc is YUY2ToRGB with a freshly allocated destination.
func YUY2ToRGBAlloc(src []byte, width, height int) ([]byte, error) {
	dst := make([]byte, RGBSize(width, height))
	if err := YUY2ToRGB(dst, src, width, height); err != nil {
		return nil, err
	}
	return dst, nil
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
