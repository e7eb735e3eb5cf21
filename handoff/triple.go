package handoff

import "sync/atomic"

const (
	indexMask uint32 = 0b011
	freshBit  uint32 = 0b100
)

// TripleBuffer hands the latest value from one writer to one reader. The
// writer never waits for the reader and the reader never observes a
// partially written value: each side owns one buffer exclusively and the
// third is exchanged through a single atomic word.
type TripleBuffer[T any] struct {
	bufs  [3]T
	state atomic.Uint32
	write uint32
	read  uint32
}

// NewTripleBuffer returns an empty buffer. Read reports false until the
// first Publish.
func NewTripleBuffer[T any]() *TripleBuffer[T] {
	b := &TripleBuffer[T]{write: 0, read: 1}
	b.state.Store(2)
	return b
}

// Publish stores v as the latest value. Writer side only.
func (b *TripleBuffer[T]) Publish(v T) {
	b.bufs[b.write] = v
	prev := b.state.Swap(b.write | freshBit)
	b.write = prev & indexMask
}

// Read returns the most recent value and whether it was published since the
// previous Read. Reader side only.
func (b *TripleBuffer[T]) Read() (T, bool) {
	if b.state.Load()&freshBit == 0 {
		return b.bufs[b.read], false
	}
	prev := b.state.Swap(b.read)
	b.read = prev & indexMask
	return b.bufs[b.read], true
}
