// Package session implements the hierarchical per-connection owner
// described in spec.md §3's "Relationships" paragraph: one Master
// Clock, one Jitter Buffer per kind, one Decoded Frame Buffer, one ABR
// Controller, and one Reassembly Table. Seek and Stop reset the
// delivery-path objects; the ABR Controller is left as it is. It is the
// direct analogue of the teacher's
// stream.Manager/Stream pair, scoped to one play session instead of
// one ingest stream.
package session

import (
	"log/slog"
	"sync"

	"github.com/zsiec/vstream/abr"
	"github.com/zsiec/vstream/apperr"
	"github.com/zsiec/vstream/clock"
	"github.com/zsiec/vstream/framebuffer"
	"github.com/zsiec/vstream/jitter"
	"github.com/zsiec/vstream/reassembly"
)

// Fault is sent on a Session's fault channel when a task reports a
// session-fatal error via ReportFault, mirroring how pipeline.Pipeline.Run returns a
// single error that the caller treats as stream-fatal.
type Fault struct {
	Kind apperr.Kind
	Err  error
}

// Session owns every per-connection object spec.md §3 lists. Global
// mutable state is forbidden outside of it; all play-session state
// lives here.
type Session struct {
	log *slog.Logger

	Clock       *clock.Clock
	VideoJitter *jitter.Buffer
	AudioJitter *jitter.Buffer
	Frames      *framebuffer.Buffer
	ABR         *abr.Controller
	Reassembly  *reassembly.Table

	mu      sync.Mutex
	stopped bool
	faultCh chan Fault
	stopCh  chan struct{}
}

// New constructs a Session with fresh, empty sub-objects and starts the
// Reassembly Table's background reaper goroutine (stopped by Stop).
func New(log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "session")

	s := &Session{
		log:         log,
		Clock:       clock.New(),
		VideoJitter: jitter.New(jitter.DefaultCapacity, log),
		AudioJitter: jitter.New(jitter.DefaultCapacity, log),
		Frames:      framebuffer.New(),
		ABR:         abr.New(log),
		Reassembly:  reassembly.New(log),
		faultCh:     make(chan Fault, 1),
		stopCh:      make(chan struct{}),
	}
	go s.Reassembly.Run(s.stopCh)
	return s
}

// Faults returns the channel Session signals on when a task reports a
// fatal error via ReportFault. It is closed by Stop.
func (s *Session) Faults() <-chan Fault {
	return s.faultCh
}

// ReportFault signals a session-fatal error without blocking; only the
// first fault per session is delivered (the channel has capacity 1),
// matching "stopping a play session" being a single decisive event.
func (s *Session) ReportFault(kind apperr.Kind, err error) {
	s.log.Error("session fault", "kind", kind, "error", err)
	select {
	case s.faultCh <- Fault{Kind: kind, Err: err}:
	default:
	}
}

// Seek resets every reassembly/delivery-path object (Reassembly Table,
// both Jitter Buffers, Decoded Frame Buffer) and re-anchors the Master
// Clock, resolving spec.md §9's pts-rollover open question: clearing
// reassembly on every seek means partial frames from before the seek
// never combine with fragments received after it. The
// ABR Controller's ladder/bitrate state is not reset — ABR tracks
// network conditions, which a seek does not change.
func (s *Session) Seek(ptsMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.Reassembly.Reset()
	s.VideoJitter.Reset()
	s.AudioJitter.Reset()
	s.Frames.Reset()
	s.Clock.Seek(ptsMs)
}

// Stop stops the Reassembly Table's reaper, resets the Reassembly Table,
// both Jitter Buffers and the Decoded Frame Buffer, and closes the fault
// channel. The Master Clock and ABR Controller are left as they are.
// Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	close(s.stopCh)
	s.Reassembly.Reset()
	s.VideoJitter.Reset()
	s.AudioJitter.Reset()
	s.Frames.Reset()
	close(s.faultCh)

	s.log.Info("session stopped")
}
