// Package logring implements the single-producer/single-consumer ring
// buffer that carries LogRecords from the hot thread to the cold thread.
// Push never blocks: a full ring silently drops the record. Pop never
// blocks either: an empty ring returns false. No mutex, no condition
// variable — head and tail are the only shared state, advanced with
// sync/atomic.
package logring

import (
	"sync/atomic"

	"hftmaker/pkg/types"
)

// Ring is a fixed-capacity SPSC queue of types.LogRecord. The zero value is
// not ready to use; call New.
type Ring struct {
	buf  [types.RingCapacity]types.LogRecord
	head atomic.Uint64 // next slot the consumer will read
	tail atomic.Uint64 // next slot the producer will write
}

// New returns an empty ring.
func New() *Ring {
	return &Ring{}
}

// Push is called only from the hot (producer) thread. It returns false
// without blocking if the ring is full.
func (r *Ring) Push(rec types.LogRecord) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head >= types.RingCapacity {
		return false
	}
	r.buf[tail%types.RingCapacity] = rec
	r.tail.Store(tail + 1)
	return true
}

// Pop is called only from the cold (consumer) thread. It returns
// (record, true) if one was available, or (zero, false) if the ring is
// empty.
func (r *Ring) Pop() (types.LogRecord, bool) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head == tail {
		return types.LogRecord{}, false
	}
	rec := r.buf[head%types.RingCapacity]
	r.head.Store(head + 1)
	return rec, true
}

// Len returns an approximate occupancy count, useful only for metrics —
// never for correctness, since it can be stale the instant it's read.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}
