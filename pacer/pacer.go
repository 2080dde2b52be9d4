// Package pacer implements the server-side wall-clock frame scheduler
// described in spec.md §4.L: sleep_until(start_wall + (pts - first_pts)),
// with pause/resume shifting the anchor and seek resetting it.
package pacer

import (
	"context"
	"sync"
	"time"
)

// Pacer anchors a stream of PTS-stamped packets to wall-clock time so
// they are sent at the rate they were captured/encoded, rather than as
// fast as the pipeline can produce them.
type Pacer struct {
	mu         sync.Mutex
	nowFunc    func() time.Time
	sleepFunc  func(time.Duration)
	started    bool
	firstPTSMs int64
	startWall  time.Time
	paused     bool
	pausedAt   time.Time
}

// New creates a Pacer using the real wall clock.
func New() *Pacer {
	return &Pacer{
		nowFunc: time.Now,
	}
}

// Reset clears the anchor; the next call to WaitUntil re-anchors
// first_pts to whatever PTS it is given. That is the next packet the
// caller paces, video or audio: the Pacer does not look at packet kind.
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
	p.paused = false
}

// Pause records the wall-clock entry time; WaitUntil blocks until
// Resume is called.
func (p *Pacer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.pausedAt = p.nowFunc()
}

// Resume shifts start_wall forward by the paused interval, so the
// elapsed-PTS-to-wall-clock mapping resumes where it left off.
func (p *Pacer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	if p.started {
		p.startWall = p.startWall.Add(p.nowFunc().Sub(p.pausedAt))
	}
}

// WaitUntil blocks until ptsMs's scheduled wall-clock send time, or
// until ctx is done. The first call after New/Reset anchors the
// schedule: ptsMs becomes first_pts and WaitUntil returns immediately.
func (p *Pacer) WaitUntil(ctx context.Context, ptsMs int64) error {
	p.mu.Lock()
	if !p.started {
		p.started = true
		p.firstPTSMs = ptsMs
		p.startWall = p.nowFunc()
		p.mu.Unlock()
		return nil
	}

	for p.paused {
		p.mu.Unlock()
		if err := sleepOrDone(ctx, 10*time.Millisecond, p.sleepFunc); err != nil {
			return err
		}
		p.mu.Lock()
	}

	target := p.startWall.Add(time.Duration(ptsMs-p.firstPTSMs) * time.Millisecond)
	p.mu.Unlock()

	delay := target.Sub(p.nowFunc())
	if delay <= 0 {
		return nil
	}
	return sleepOrDone(ctx, delay, p.sleepFunc)
}

func sleepOrDone(ctx context.Context, d time.Duration, sleep func(time.Duration)) error {
	if sleep != nil {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		sleep(d)
		return nil
	}
	if ctx == nil {
		time.Sleep(d)
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
