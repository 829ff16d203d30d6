package fft

import "sync/atomic"

// Ring is a single-producer sample buffer. The producer appends with
// Write; the consumer copies the newest samples with Snapshot without
// ever blocking the producer. A snapshot is validated against the
// producer's position: if the producer lapped the region mid-copy the
// attempt is retried.
type Ring struct {
	buf  []float64
	mask int64
	pos  atomic.Int64
}

// NewRing returns a ring holding at least size samples. Capacity is
// rounded up to a power of two so offsets reduce to a mask.
func NewRing(size int) *Ring {
	capacity := 1
	for capacity < size {
		capacity <<= 1
	}
	return &Ring{
		buf:  make([]float64, capacity),
		mask: int64(capacity - 1),
	}
}

// Cap returns the ring's capacity in samples.
func (r *Ring) Cap() int { return len(r.buf) }

// Write appends samples, overwriting the oldest on wrap. Only one
// goroutine may call Write.
func (r *Ring) Write(samples []float64) {
	pos := r.pos.Load()
	for i, s := range samples {
		r.buf[(pos+int64(i))&r.mask] = s
	}
	r.pos.Store(pos + int64(len(samples)))
}

// Total returns how many samples have ever been written.
func (r *Ring) Total() int64 { return r.pos.Load() }

// Snapshot copies the most recent len(dst) samples into dst. It
// returns false when fewer samples have been written than dst holds,
// or when the producer outran the copy on every retry.
func (r *Ring) Snapshot(dst []float64) bool {
	n := int64(len(dst))
	if n == 0 || n > int64(len(r.buf)) {
		return false
	}
	for attempt := 0; attempt < 3; attempt++ {
		end := r.pos.Load()
		if end < n {
			return false
		}
		start := end - n
		for i := int64(0); i < n; i++ {
			dst[i] = r.buf[(start+i)&r.mask]
		}
		// Valid only if the producer has not wrapped past the
		// region we just read.
		if r.pos.Load()-start <= int64(len(r.buf)) {
			return true
		}
	}
	return false
}
