package video

import (
	"testing"
	"time"
)

func testFrame(fill byte) Frame {
	data := make([]byte, 2*2*3)
	for i := range data {
		data[i] = fill
	}
	return Frame{Width: 2, Height: 2, Data: data}
}

func TestTakeFrontEmpty(t *testing.T) {
	b := NewFrameBuffer()
	if _, ok := b.TakeFront(); ok {
		t.Fatal("empty buffer should yield no frame")
	}
}

func TestTakeFrontStableWithoutPush(t *testing.T) {
	b := NewFrameBuffer()
	b.PushBack(testFrame(1), time.Millisecond, true)

	f1, ok := b.TakeFront()
	if !ok {
		t.Fatal("expected a frame")
	}
	f2, ok := b.TakeFront()
	if !ok {
		t.Fatal("expected the same frame again")
	}
	if f1.Data[0] != f2.Data[0] {
		t.Fatalf("frames differ: %d vs %d", f1.Data[0], f2.Data[0])
	}
}

func TestPushBackThenTakeReturnsNewFrame(t *testing.T) {
	b := NewFrameBuffer()
	b.PushBack(testFrame(1), time.Millisecond, true)
	if f, _ := b.TakeFront(); f.Data[0] != 1 {
		t.Fatalf("expected frame 1, got %d", f.Data[0])
	}

	b.PushBack(testFrame(2), time.Millisecond, true)
	if f, _ := b.TakeFront(); f.Data[0] != 2 {
		t.Fatalf("expected frame 2, got %d", f.Data[0])
	}
}

func TestTakeFrontReturnsCopy(t *testing.T) {
	b := NewFrameBuffer()
	b.PushBack(testFrame(7), time.Millisecond, true)

	f, _ := b.TakeFront()
	f.Data[0] = 99

	again, _ := b.TakeFront()
	if again.Data[0] != 7 {
		t.Fatalf("mutating a returned frame leaked into the buffer: %d", again.Data[0])
	}
}

func TestLatestFrameWinsWhenConsumerIsSlow(t *testing.T) {
	b := NewFrameBuffer()
	for i := byte(1); i <= 5; i++ {
		b.PushBack(testFrame(i), time.Millisecond, true)
	}
	// Intermediate frames are coalesced; only the newest is observable.
	if f, _ := b.TakeFront(); f.Data[0] != 5 {
		t.Fatalf("expected frame 5, got %d", f.Data[0])
	}
}

func TestClearOldFramesKeepsDirtyBack(t *testing.T) {
	b := NewFrameBuffer()
	b.PushBack(testFrame(1), time.Millisecond, true)

	// Dirty back slot must survive ClearOldFrames.
	b.ClearOldFrames()
	if _, ok := b.TakeFront(); !ok {
		t.Fatal("dirty back frame was dropped")
	}

	// After the swap the stale back slot may be cleared; the front
	// frame stays available.
	b.ClearOldFrames()
	if _, ok := b.TakeFront(); !ok {
		t.Fatal("front frame should remain after ClearOldFrames")
	}
}

func TestStatsCountsPaths(t *testing.T) {
	b := NewFrameBuffer()
	b.PushBack(testFrame(1), 2*time.Millisecond, true)
	b.PushBack(testFrame(2), 3*time.Millisecond, false)
	b.PushBack(testFrame(3), 4*time.Millisecond, true)

	s := b.Stats()
	if s.FastFrames != 2 || s.FallbackFrames != 1 {
		t.Fatalf("path counts: fast=%d fallback=%d", s.FastFrames, s.FallbackFrames)
	}
	if s.LastDecodeMS != 4 {
		t.Fatalf("last decode: %v", s.LastDecodeMS)
	}
	if s.IntervalSamples != 2 {
		t.Fatalf("interval samples: %d", s.IntervalSamples)
	}
}

func TestIntervalWindowBounded(t *testing.T) {
	b := NewFrameBuffer()
	for i := 0; i < intervalWindow*2; i++ {
		b.PushBack(testFrame(byte(i)), time.Millisecond, true)
	}
	if s := b.Stats(); s.IntervalSamples != intervalWindow {
		t.Fatalf("window grew past %d: %d", intervalWindow, s.IntervalSamples)
	}
}
