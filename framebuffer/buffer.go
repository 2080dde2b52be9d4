// Package framebuffer implements the Decoded Frame Buffer: a thread-safe,
// PTS-sorted store of decoded video pictures between the decoder and the
// renderer, with nearest-match and linear-interpolation fetch.
package framebuffer

import (
	"sort"
	"sync"

	"github.com/zsiec/vstream/media"
)

// Interpolator produces an in-between frame from two decoded neighbors and
// a factor in [0,1]. It must not mutate prev or next. The output's PTS is
// whatever the implementation sets; Render returns the result unchanged.
// An external collaborator (OpenCV-based or ONNX-based); the zero value
// here is never a usable implementation.
type Interpolator func(prev, next *media.DecodedFrame, factor float64) *media.DecodedFrame

// Enhancer is a pure super-resolution transform: it must not mutate its
// input and must preserve PTS. An external collaborator (ONNX-based).
type Enhancer func(frame *media.DecodedFrame) *media.DecodedFrame

// Buffer is a sorted-by-PTS store of *media.DecodedFrame, safe for
// concurrent use by a single producer (the decoder) and a single
// consumer (the renderer).
type Buffer struct {
	mu            sync.Mutex
	frames        []*media.DecodedFrame
	targetBufferMs int64
}

// New creates an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Push inserts frame, maintaining ascending PTS order.
func (b *Buffer) Push(frame *media.DecodedFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := sort.Search(len(b.frames), func(i int) bool {
		return b.frames[i].PTS >= frame.PTS
	})
	b.frames = append(b.frames, nil)
	copy(b.frames[i+1:], b.frames[i:])
	b.frames[i] = frame
}

// PopBest finds the frame with the largest PTS <= targetPTS, evicts all
// frames with PTS <= that frame's PTS (releasing them immediately), and
// returns it. If every buffered frame is newer than targetPTS, it
// returns (nil, false) and nothing is evicted.
func (b *Buffer) PopBest(targetPTS int64) (*media.DecodedFrame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Largest index with PTS <= targetPTS.
	idx := sort.Search(len(b.frames), func(i int) bool {
		return b.frames[i].PTS > targetPTS
	}) - 1
	if idx < 0 {
		return nil, false
	}

	best := b.frames[idx]
	b.frames = b.frames[idx+1:]
	return best, true
}

// InterpolationContext finds the adjacent pair (prev, next) such that
// prev.PTS < targetPTS < next.PTS, and returns them along with the
// interpolation factor (target-prev)/(next-prev). Returns ok=false if no
// such adjacent pair exists.
func (b *Buffer) InterpolationContext(targetPTS int64) (prev, next *media.DecodedFrame, factor float64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i+1 < len(b.frames); i++ {
		a, c := b.frames[i], b.frames[i+1]
		if a.PTS < targetPTS && targetPTS < c.PTS {
			factor = float64(targetPTS-a.PTS) / float64(c.PTS-a.PTS)
			return a, c, factor, true
		}
	}
	return nil, nil, 0, false
}

// Render implements the renderer-loop fetch policy from spec.md §4.H:
// find the best frame at or before targetPTS; if none is buffered yet,
// fall back to interpolating between the adjacent pair straddling
// targetPTS when an Interpolator is supplied. Returns ok=false if
// neither is possible.
func (b *Buffer) Render(targetPTS int64, interpolate Interpolator) (*media.DecodedFrame, bool) {
	if frame, ok := b.PopBest(targetPTS); ok {
		return frame, true
	}
	if interpolate == nil {
		return nil, false
	}
	prev, next, factor, ok := b.InterpolationContext(targetPTS)
	if !ok {
		return nil, false
	}
	return interpolate(prev, next, factor), true
}

// DurationMs returns back.PTS - front.PTS when there are at least two
// buffered frames, else 0.
func (b *Buffer) DurationMs() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) < 2 {
		return 0
	}
	return b.frames[len(b.frames)-1].PTS - b.frames[0].PTS
}

// Len returns the number of buffered frames.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Reset discards all buffered frames, releasing them immediately.
// Called by the session owner on stop/seek.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = nil
}

// SetTargetBufferMs records the desired buffering depth; exposed for the
// renderer/pacer to consult but not otherwise enforced by Buffer itself.
func (b *Buffer) SetTargetBufferMs(ms int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targetBufferMs = ms
}

// TargetBufferMs returns the last value set by SetTargetBufferMs.
func (b *Buffer) TargetBufferMs() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.targetBufferMs
}
