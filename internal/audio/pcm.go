package audio

import (
	"encoding/binary"
	"math"
)

// Samples are normalized float32 in [-1, 1] inside the pipeline.
// Device buffers arrive and leave in the stream's native format; these
// helpers convert at that boundary without allocating.

const maxInt16 = float32(math.MaxInt16)

// s16ToFloat decodes one little-endian int16 sample.
func s16ToFloat(b []byte) float32 {
	return float32(int16(binary.LittleEndian.Uint16(b))) / maxInt16
}

// floatToS16 encodes one sample as little-endian int16, clipping to the
// representable range.
func floatToS16(b []byte, s float32) {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	binary.LittleEndian.PutUint16(b, uint16(int16(s*maxInt16)))
}

// f32FromBytes decodes one little-endian float32 sample.
func f32FromBytes(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// f32ToBytes encodes one little-endian float32 sample.
func f32ToBytes(b []byte, s float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(s))
}
