package audio

import (
	"math"
	"testing"
)

func TestS16RoundTrip(t *testing.T) {
	buf := make([]byte, 2)
	for _, v := range []int16{-32767, -16384, -1, 0, 1, 16384, 32767} {
		floatToS16(buf, float32(v)/maxInt16)
		got := s16ToFloat(buf)
		want := float32(v) / maxInt16
		if math.Abs(float64(got-want)) > 1.0/32767 {
			t.Fatalf("v=%d: round trip %v != %v", v, got, want)
		}
	}
}

func TestFloatToS16Clips(t *testing.T) {
	buf := make([]byte, 2)

	floatToS16(buf, 2.5)
	if got := s16ToFloat(buf); got != 1.0 {
		t.Fatalf("positive clip: got %v", got)
	}

	floatToS16(buf, -2.5)
	if got := s16ToFloat(buf); got != -1.0 {
		t.Fatalf("negative clip: got %v", got)
	}
}

func TestF32BytesRoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	for _, v := range []float32{-1, -0.5, 0, 0.25, 1} {
		f32ToBytes(buf, v)
		if got := f32FromBytes(buf); got != v {
			t.Fatalf("round trip %v != %v", got, v)
		}
	}
}
