// Package clock implements the audio-driven master clock: the single
// authoritative media-time reference for a play session, with
// pause/resume/seek semantics.
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// defaultNowFunc is the real wall clock used by New; tests inject their own
// via newWithNowFunc to control time deterministically.
var defaultNowFunc = func() int64 { return time.Now().UnixMilli() }

// Clock is the audio-driven master clock described in spec §4.C. Mutating
// operations (Start, Seek, Pause, Resume) are serialized by mu; Now is
// lock-free, reading only atomics.
type Clock struct {
	nowFunc func() int64

	mu sync.Mutex

	started atomic.Bool
	paused  atomic.Bool

	startWallMs   atomic.Int64
	startPTSMs    atomic.Int64
	pausedAtPTSMs atomic.Int64
}

// New creates a Clock in the not-started state.
func New() *Clock {
	return &Clock{nowFunc: defaultNowFunc}
}

// newWithNowFunc is used by tests to inject a deterministic wall clock.
func newWithNowFunc(nowFunc func() int64) *Clock {
	c := New()
	c.nowFunc = nowFunc
	return c
}

// Start is idempotent: only the first caller establishes the wall/pts
// anchor; subsequent calls are no-ops.
func (c *Clock) Start(ptsMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started.Load() {
		return
	}
	c.startWallMs.Store(c.nowFunc())
	c.startPTSMs.Store(ptsMs)
	c.started.Store(true)
	c.paused.Store(false)
}

// Seek re-anchors the clock to ptsMs at the current wall time. If the
// clock is currently paused, the paused-at position is updated too so
// a subsequent Resume continues from the sought position.
func (c *Clock) Seek(ptsMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startWallMs.Store(c.nowFunc())
	c.startPTSMs.Store(ptsMs)
	c.started.Store(true)
	if c.paused.Load() {
		c.pausedAtPTSMs.Store(ptsMs)
	}
}

// Now returns the current media time in milliseconds: -1 if the clock
// has never been started, the frozen pause position while paused, or
// the live elapsed-since-start position otherwise.
func (c *Clock) Now() int64 {
	if !c.started.Load() {
		return -1
	}
	if c.paused.Load() {
		return c.pausedAtPTSMs.Load()
	}
	return (c.nowFunc() - c.startWallMs.Load()) + c.startPTSMs.Load()
}

// Pause freezes the clock at its current media-time position. A second
// call while already paused is a no-op.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused.Load() {
		return
	}
	c.pausedAtPTSMs.Store(c.nowNoLock())
	c.paused.Store(true)
}

// Resume re-anchors the clock to wall-now, continuing from the paused
// position. A call while not paused is a no-op.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused.Load() {
		return
	}
	c.startWallMs.Store(c.nowFunc())
	c.startPTSMs.Store(c.pausedAtPTSMs.Load())
	c.paused.Store(false)
}

// Paused reports whether the clock is currently paused.
func (c *Clock) Paused() bool { return c.paused.Load() }

// Started reports whether Start or Seek has ever been called.
func (c *Clock) Started() bool { return c.started.Load() }

// nowNoLock computes Now's value without taking mu; callers must already
// hold mu. Used by Pause, which must read the pre-freeze position.
func (c *Clock) nowNoLock() int64 {
	if !c.started.Load() {
		return -1
	}
	if c.paused.Load() {
		return c.pausedAtPTSMs.Load()
	}
	return (c.nowFunc() - c.startWallMs.Load()) + c.startPTSMs.Load()
}
