// Package ring provides a bounded single-producer/single-consumer
// sample queue for connecting an audio input callback to an output
// callback. Push and pop are lock-free, allocation-free and bounded in
// time, so both ends are safe to call from hardware audio callbacks.
//
// A full ring drops the pushed sample (overrun, audible as a glitch);
// an empty ring reports no sample (underrun, rendered as silence by the
// consumer). Neither condition blocks or fails loudly.
package ring

import "sync/atomic"

// Ring is the shared backing store. Exactly one goroutine may push and
// exactly one may pop; the two may run concurrently.
type Ring struct {
	buf []float32

	// Free-running indices; head is owned by the consumer, tail by the
	// producer. Reads of the opposite index are atomic.
	head atomic.Uint64
	tail atomic.Uint64
}

// Producer is the push-only end of a Ring.
type Producer struct {
	r *Ring
}

// Consumer is the pop-only end of a Ring.
type Consumer struct {
	r *Ring
}

// New creates a ring holding at most capacity samples and returns its
// producer and consumer ends. Capacity must be positive.
func New(capacity int) (*Producer, *Consumer) {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	r := &Ring{buf: make([]float32, capacity)}
	return &Producer{r: r}, &Consumer{r: r}
}

// Cap returns the fixed capacity of the ring.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of buffered samples. The value is exact when
// called from either endpoint's own goroutine and a snapshot otherwise.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Ring exposes the shared store, for capacity and fill queries.
func (p *Producer) Ring() *Ring { return p.r }

// Ring exposes the shared store, for capacity and fill queries.
func (c *Consumer) Ring() *Ring { return c.r }

// Push inserts one sample. It reports false, leaving the ring
// untouched, when the ring is full.
func (p *Producer) Push(s float32) bool {
	r := p.r
	tail := r.tail.Load()
	if tail-r.head.Load() >= uint64(len(r.buf)) {
		return false
	}
	r.buf[tail%uint64(len(r.buf))] = s
	r.tail.Store(tail + 1)
	return true
}

// PushSlice pushes as many samples from s as fit and returns how many
// were accepted. The remainder is dropped.
func (p *Producer) PushSlice(s []float32) int {
	r := p.r
	tail := r.tail.Load()
	free := uint64(len(r.buf)) - (tail - r.head.Load())
	n := uint64(len(s))
	if n > free {
		n = free
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(tail+i)%uint64(len(r.buf))] = s[i]
	}
	r.tail.Store(tail + n)
	return int(n)
}

// Pop removes and returns the oldest sample. The second result is false
// when the ring is empty.
func (c *Consumer) Pop() (float32, bool) {
	r := c.r
	head := r.head.Load()
	if head == r.tail.Load() {
		return 0, false
	}
	s := r.buf[head%uint64(len(r.buf))]
	r.head.Store(head + 1)
	return s, true
}
