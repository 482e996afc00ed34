// Package ringbuf provides a fixed-capacity FIFO of float64 samples, used to
// hold the steering commands issued during the actuation delay window.
package ringbuf

// Buffer is a bounded FIFO. Pushing into a full buffer evicts the oldest
// sample, so the length is invariant once the buffer has filled.
type Buffer struct {
	data  []float64
	head  int // index of the oldest sample
	count int
}

// New returns a buffer with the given fixed capacity.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]float64, capacity)}
}

// NewFilled returns a buffer of the given capacity with every slot holding v.
func NewFilled(capacity int, v float64) *Buffer {
	b := New(capacity)
	for i := 0; i < capacity; i++ {
		b.Push(v)
	}
	return b
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Len returns the number of stored samples.
func (b *Buffer) Len() int { return b.count }

// Push appends v as the newest sample, evicting the oldest when full.
// Pushing into a zero-capacity buffer is a no-op.
func (b *Buffer) Push(v float64) {
	if len(b.data) == 0 {
		return
	}
	tail := (b.head + b.count) % len(b.data)
	b.data[tail] = v
	if b.count == len(b.data) {
		b.head = (b.head + 1) % len(b.data)
	} else {
		b.count++
	}
}

// At returns the i-th sample, oldest first.
func (b *Buffer) At(i int) float64 {
	return b.data[(b.head+i)%len(b.data)]
}

// Snapshot returns the samples oldest-first in a fresh slice.
func (b *Buffer) Snapshot() []float64 {
	out := make([]float64, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.At(i)
	}
	return out
}

// Fill overwrites every slot with v, keeping the buffer full.
func (b *Buffer) Fill(v float64) {
	for i := range b.data {
		b.data[i] = v
	}
	b.head = 0
	b.count = len(b.data)
}
