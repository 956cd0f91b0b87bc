package video

import (
	"sync"
	"time"
)

// intervalWindow bounds the rolling inter-arrival history used for
// frame-rate diagnostics.
const intervalWindow = 120

// FrameBuffer is a double-buffered latest-frame store. The capture
// callback fills the back slot and marks it dirty; the consumer swaps
// front and back under the same lock and reads the front slot. A
// consumer therefore never observes a partially written frame, and the
// producer is never blocked for longer than the swap.
//
// At most two frames are resident at any time; ClearOldFrames drops a
// stale back slot so a paused consumer does not pin a third buffer.
type FrameBuffer struct {
	mu    sync.Mutex
	front *Frame
	back  *Frame
	dirty bool

	lastArrival  time.Time
	intervals    [intervalWindow]float64 // milliseconds
	intervalHead int
	intervalLen  int

	lastDecodeMS  float64
	fastCount     uint64
	fallbackCount uint64
}

// FrameStats is a diagnostic snapshot of the buffer.
type FrameStats struct {
	FastFrames     uint64
	FallbackFrames uint64
	LastDecodeMS   float64
	// MeanIntervalMS is the mean inter-arrival time over the rolling
	// window, 0 until at least one interval has been observed.
	MeanIntervalMS  float64
	IntervalSamples int
}

// NewFrameBuffer returns an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// PushBack stores frame into the back slot, marks it dirty and records
// decode timing and the inter-arrival interval. The previous back
// frame, if any, is dropped.
func (b *FrameBuffer) PushBack(frame Frame, decode time.Duration, fastPath bool) {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.back = &frame
	b.dirty = true
	b.lastDecodeMS = float64(decode) / float64(time.Millisecond)
	if fastPath {
		b.fastCount++
	} else {
		b.fallbackCount++
	}

	if !b.lastArrival.IsZero() {
		dt := float64(now.Sub(b.lastArrival)) / float64(time.Millisecond)
		b.intervals[(b.intervalHead+b.intervalLen)%intervalWindow] = dt
		if b.intervalLen < intervalWindow {
			b.intervalLen++
		} else {
			b.intervalHead = (b.intervalHead + 1) % intervalWindow
		}
	}
	b.lastArrival = now
}

// TakeFront returns a copy of the most recent complete frame. When the
// back slot is dirty it is swapped in first; repeated calls without an
// intervening PushBack return the same frame.
func (b *FrameBuffer) TakeFront() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dirty {
		b.front, b.back = b.back, b.front
		b.dirty = false
	}
	if b.front == nil {
		return Frame{}, false
	}
	return b.front.clone(), true
}

// ClearOldFrames drops a stale back slot. After a swap the back slot
// holds the previous front frame, which nothing will read again;
// releasing it bounds resident memory to the front frame plus whatever
// the capture callback is currently writing.
func (b *FrameBuffer) ClearOldFrames() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty {
		b.back = nil
	}
}

// Stats returns a snapshot of the diagnostic counters.
func (b *FrameBuffer) Stats() FrameStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := FrameStats{
		FastFrames:      b.fastCount,
		FallbackFrames:  b.fallbackCount,
		LastDecodeMS:    b.lastDecodeMS,
		IntervalSamples: b.intervalLen,
	}
	if b.intervalLen > 0 {
		var sum float64
		for i := 0; i < b.intervalLen; i++ {
			sum += b.intervals[(b.intervalHead+i)%intervalWindow]
		}
		s.MeanIntervalMS = sum / float64(b.intervalLen)
	}
	return s
}
