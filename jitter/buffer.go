// Package jitter implements the bounded, ordered, lossy reorder buffer
// that sits between the reassembly table and the decoder for a single
// media kind (video or audio).
package jitter

import (
	"container/heap"
	"log/slog"
	"sync"

	"github.com/zsiec/vstream/media"
)

// DefaultCapacity is the default max-size of a new Buffer.
const DefaultCapacity = 300

// packetHeap is a container/heap.Interface ordering MediaPackets by Seq
// ascending, so the root is always the lowest pending sequence number.
type packetHeap []media.MediaPacket

func (h packetHeap) Len() int            { return len(h) }
func (h packetHeap) Less(i, j int) bool  { return h[i].Seq < h[j].Seq }
func (h packetHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *packetHeap) Push(x any)         { *h = append(*h, x.(media.MediaPacket)) }
func (h *packetHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Buffer is a bounded min-heap of MediaPacket ordered by Seq, guarding
// against out-of-order arrival and unbounded head-of-line blocking.
// Within a single Buffer, packets are delivered to the consumer in Seq
// order or not at all; losses surface as a Pop result with ok=false rather than
// being silently skipped.
type Buffer struct {
	log *slog.Logger

	mu           sync.Mutex
	heap         packetHeap
	expectedSeq  uint32
	haveExpected bool
	maxSize      int
	dropped      int64
}

// New creates an empty Buffer with the given max size. If maxSize <= 0,
// DefaultCapacity is used.
func New(maxSize int, log *slog.Logger) *Buffer {
	if maxSize <= 0 {
		maxSize = DefaultCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	return &Buffer{
		log:     log.With("component", "jitter"),
		maxSize: maxSize,
	}
}

// Push inserts pkt, establishing the expected sequence on the first call.
// Packets that are older than the expected sequence, or that arrive when
// the buffer is full, are dropped.
func (b *Buffer) Push(pkt media.MediaPacket) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.haveExpected {
		b.expectedSeq = pkt.Seq
		b.haveExpected = true
	}

	if pkt.Seq < b.expectedSeq {
		b.dropped++
		return
	}
	if len(b.heap) >= b.maxSize {
		b.dropped++
		return
	}

	heap.Push(&b.heap, pkt)
}

// Pop returns the next in-order packet, or ok=false if none is ready.
//
//   - empty heap                 -> ok=false
//   - top.Seq == expectedSeq     -> pop it, expectedSeq++, return it
//   - top.Seq <  expectedSeq     -> discard it and recurse
//   - top.Seq >  expectedSeq     -> advance expectedSeq by 1, ok=false
//     (this is the detected-loss signal; the caller compensates, e.g.
//     with silence for audio)
func (b *Buffer) Pop() (media.MediaPacket, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.popLocked()
}

func (b *Buffer) popLocked() (media.MediaPacket, bool) {
	if len(b.heap) == 0 {
		return media.MediaPacket{}, false
	}

	top := b.heap[0]

	switch {
	case top.Seq == b.expectedSeq:
		heap.Pop(&b.heap)
		b.expectedSeq++
		return top, true

	case top.Seq < b.expectedSeq:
		heap.Pop(&b.heap)
		return b.popLocked()

	default: // top.Seq > b.expectedSeq
		b.expectedSeq++
		return media.MediaPacket{}, false
	}
}

// Len returns the number of packets currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.heap)
}

// Dropped returns the count of packets dropped on push (stale or buffer full).
func (b *Buffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Reset clears all buffered packets and the expected-sequence state.
// Called by the session owner on stop/seek.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.heap = nil
	b.haveExpected = false
	b.expectedSeq = 0
}
