package pacer

import (
	"context"
	"testing"
	"time"
)

// fakeClock lets tests advance time deterministically instead of sleeping.
type fakeClock struct {
	now time.Time
}

func newTestPacer() (*Pacer, *fakeClock) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	p := &Pacer{
		nowFunc: func() time.Time { return fc.now },
		sleepFunc: func(d time.Duration) {
			fc.now = fc.now.Add(d)
		},
	}
	return p, fc
}

func TestPacer_FirstCallAnchorsWithoutWaiting(t *testing.T) {
	t.Parallel()

	p, _ := newTestPacer()
	start := time.Now()
	if err := p.WaitUntil(context.Background(), 5000); err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Fatal("first WaitUntil call should return immediately")
	}
}

func TestPacer_SubsequentCallSleepsUntilScheduledTime(t *testing.T) {
	t.Parallel()

	p, fc := newTestPacer()
	if err := p.WaitUntil(context.Background(), 0); err != nil {
		t.Fatalf("WaitUntil(anchor): %v", err)
	}

	before := fc.now
	if err := p.WaitUntil(context.Background(), 33); err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	elapsed := fc.now.Sub(before)
	if elapsed != 33*time.Millisecond {
		t.Fatalf("elapsed = %v, want 33ms", elapsed)
	}
}

func TestPacer_PauseResumeShiftsAnchor(t *testing.T) {
	t.Parallel()

	p, fc := newTestPacer()
	if err := p.WaitUntil(context.Background(), 0); err != nil {
		t.Fatalf("WaitUntil(anchor): %v", err)
	}

	p.Pause()
	fc.now = fc.now.Add(2 * time.Second) // time passes while paused
	p.Resume()

	before := fc.now
	if err := p.WaitUntil(context.Background(), 33); err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	elapsed := fc.now.Sub(before)
	if elapsed != 33*time.Millisecond {
		t.Fatalf("elapsed after pause/resume = %v, want 33ms (pause interval absorbed)", elapsed)
	}
}

func TestPacer_DoublePauseIsNoOp(t *testing.T) {
	t.Parallel()

	p, fc := newTestPacer()
	if err := p.WaitUntil(context.Background(), 0); err != nil {
		t.Fatalf("WaitUntil(anchor): %v", err)
	}

	p.Pause()
	firstPausedAt := p.pausedAt
	fc.now = fc.now.Add(time.Second)
	p.Pause() // no-op, should not move pausedAt
	if p.pausedAt != firstPausedAt {
		t.Fatal("second Pause moved pausedAt")
	}
}

func TestPacer_ResumeWithoutPauseIsNoOp(t *testing.T) {
	t.Parallel()

	p, _ := newTestPacer()
	p.Resume() // should not panic or misbehave
	if p.paused {
		t.Fatal("Resume without Pause left paused=true")
	}
}

func TestPacer_ResetReAnchorsOnNextCall(t *testing.T) {
	t.Parallel()

	p, fc := newTestPacer()
	if err := p.WaitUntil(context.Background(), 1000); err != nil {
		t.Fatalf("WaitUntil(anchor): %v", err)
	}
	p.Reset()

	anchorStart := fc.now
	if err := p.WaitUntil(context.Background(), 50); err != nil {
		t.Fatalf("WaitUntil after reset: %v", err)
	}
	if fc.now != anchorStart {
		t.Fatal("WaitUntil after Reset should anchor immediately, not sleep")
	}

	before := fc.now
	if err := p.WaitUntil(context.Background(), 83); err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	if fc.now.Sub(before) != 33*time.Millisecond {
		t.Fatalf("elapsed = %v, want 33ms relative to new anchor (50)", fc.now.Sub(before))
	}
}

func TestPacer_WaitUntilRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	p, _ := newTestPacer()
	p.sleepFunc = func(time.Duration) {} // avoid advancing fake clock in the cancel path
	if err := p.WaitUntil(context.Background(), 0); err != nil {
		t.Fatalf("WaitUntil(anchor): %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.WaitUntil(ctx, 500); err == nil {
		t.Fatal("expected context cancellation error")
	}
}
