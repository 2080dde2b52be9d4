package clock

import "testing"

// fakeClock provides a controllable nowFunc for deterministic clock tests.
type fakeClock struct{ ms int64 }

func (f *fakeClock) now() int64 { return f.ms }
func (f *fakeClock) advance(d int64) { f.ms += d }

func TestClock_NotStartedReturnsMinusOne(t *testing.T) {
	t.Parallel()
	c := New()
	if got := c.Now(); got != -1 {
		t.Fatalf("Now() = %d, want -1", got)
	}
}

func TestClock_StartIsIdempotent(t *testing.T) {
	t.Parallel()
	fc := &fakeClock{ms: 1000}
	c := newWithNowFunc(fc.now)

	c.Start(500)
	fc.advance(10)
	c.Start(9999) // should be a no-op; anchor already set

	if got := c.Now(); got != 510 {
		t.Fatalf("Now() = %d, want 510", got)
	}
}

func TestClock_Monotonicity(t *testing.T) {
	t.Parallel()
	fc := &fakeClock{ms: 0}
	c := newWithNowFunc(fc.now)
	c.Start(0)

	var last int64 = -1
	for i := 0; i < 20; i++ {
		fc.advance(7)
		now := c.Now()
		if now < last {
			t.Fatalf("Now() went backwards: %d -> %d", last, now)
		}
		last = now
	}
	if last != 140 {
		t.Fatalf("final Now() = %d, want 140", last)
	}
}

func TestClock_PauseResumePreservesOffset(t *testing.T) {
	t.Parallel()
	fc := &fakeClock{ms: 0}
	c := newWithNowFunc(fc.now)
	c.Start(0)

	fc.advance(3000)
	c.Pause()
	atPause := c.Now()

	fc.advance(5000) // time passes while paused; Now() must not move
	if got := c.Now(); got != atPause {
		t.Fatalf("Now() while paused = %d, want %d", got, atPause)
	}

	c.Resume()
	if got := c.Now(); got != atPause {
		t.Fatalf("Now() immediately after resume = %d, want %d", got, atPause)
	}

	fc.advance(1000)
	if got := c.Now(); got != atPause+1000 {
		t.Fatalf("Now() after resume+1000 = %d, want %d", got, atPause+1000)
	}
}

func TestClock_SeekReanchors(t *testing.T) {
	t.Parallel()
	fc := &fakeClock{ms: 0}
	c := newWithNowFunc(fc.now)
	c.Start(0)
	fc.advance(2000)

	c.Seek(5000)
	if got := c.Now(); got != 5000 {
		t.Fatalf("Now() right after seek = %d, want 5000", got)
	}
	fc.advance(1000)
	if got := c.Now(); got != 6000 {
		t.Fatalf("Now() 1s after seek = %d, want 6000", got)
	}
}

func TestClock_SeekWhilePausedUpdatesPausedPosition(t *testing.T) {
	t.Parallel()
	fc := &fakeClock{ms: 0}
	c := newWithNowFunc(fc.now)
	c.Start(0)
	c.Pause()

	c.Seek(8000)
	if got := c.Now(); got != 8000 {
		t.Fatalf("Now() while paused after seek = %d, want 8000", got)
	}

	c.Resume()
	fc.advance(500)
	if got := c.Now(); got != 8500 {
		t.Fatalf("Now() after resume = %d, want 8500", got)
	}
}

func TestClock_DoublePauseIsNoOp(t *testing.T) {
	t.Parallel()
	fc := &fakeClock{ms: 0}
	c := newWithNowFunc(fc.now)
	c.Start(0)
	fc.advance(100)
	c.Pause()
	fc.advance(100)
	c.Pause() // must not re-capture at the later time
	if got := c.Now(); got != 100 {
		t.Fatalf("Now() = %d, want 100", got)
	}
}
