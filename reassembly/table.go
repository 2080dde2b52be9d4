// Package reassembly collects media datagram fragments keyed by PTS and
// emits complete MediaPacket values once every fragment for a frame has
// arrived. Incomplete frames are reaped after a fixed TTL by a periodic
// background sweep.
package reassembly

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/vstream/media"
	"github.com/zsiec/vstream/wire"
)

// TTL is the maximum age an incomplete frame may live before being reaped.
const TTL = 500 * time.Millisecond

// ReapInterval is how often the background reaper sweeps for expired entries.
const ReapInterval = 200 * time.Millisecond

// entry is a fragment collector for a single frame, keyed by PTS.
type entry struct {
	count      uint16
	generation uint32
	firstSeen  time.Time
	fragments  map[uint16][]byte
}

// Table reassembles fragmented datagrams into complete MediaPacket values.
// It is internally mutex-guarded; producers (the transport's receive
// callback) and the periodic reaper are distinct callers.
//
// Reassembly is keyed by PTS, which is assumed unique per frame within a
// session. Reset discards every partial frame, so fragments received
// before a Reset never combine with fragments received after it. The wire
// header carries no generation: a pre-seek fragment that arrives after
// Reset starts a new entry like any other fragment.
type Table struct {
	log *slog.Logger

	mu         sync.Mutex
	byPTS      map[int64]*entry
	generation uint32

	// nextSeq is kept per media.Kind: video and audio frames interleave
	// on the wire, but each kind has its own Jitter Buffer (§4.B) which
	// treats any gap in Seq as a detected loss, so a single shared
	// counter would make the video buffer see gaps at every audio frame
	// (and vice versa). The original keeps separate video_seq/audio_seq
	// counters for the same reason.
	nextSeq [2]atomic.Uint32

	droppedExpired atomic.Int64
	droppedMalformed atomic.Int64
}

// New creates an empty Table.
func New(log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	return &Table{
		log:   log.With("component", "reassembly"),
		byPTS: make(map[int64]*entry),
	}
}

// Push feeds one received fragment into the table. If this completes a
// frame, it returns the assembled MediaPacket with a freshly assigned
// monotonic Seq and true. Fragments whose count disagrees with an
// already-stored count for the same PTS are rejected as malformed/mixed.
func (t *Table) Push(h wire.Header, fragment []byte) (media.MediaPacket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byPTS[h.PTS]
	if !ok {
		e = &entry{
			count:      h.FragmentCount,
			generation: t.generation,
			firstSeen:  time.Now(),
			fragments:  make(map[uint16][]byte, h.FragmentCount),
		}
		t.byPTS[h.PTS] = e
	}

	if e.count != h.FragmentCount {
		t.droppedMalformed.Add(1)
		t.log.Warn("fragment count mismatch, dropping", "pts", h.PTS,
			"stored_count", e.count, "got_count", h.FragmentCount)
		return media.MediaPacket{}, false
	}

	// Only entries of the current generation accept fragments. Reset
	// replaces the whole map, so every stored entry is current.
	if e.generation != t.generation {
		return media.MediaPacket{}, false
	}

	// Copy: the caller's datagram buffer may be reused after this call
	// returns, per the transport adapter's receive-callback contract.
	buf := make([]byte, len(fragment))
	copy(buf, fragment)
	e.fragments[h.FragmentIndex] = buf

	if uint16(len(e.fragments)) != e.count {
		return media.MediaPacket{}, false
	}

	delete(t.byPTS, h.PTS)

	var payload []byte
	for i := uint16(0); i < e.count; i++ {
		payload = append(payload, e.fragments[i]...)
	}

	pkt := media.MediaPacket{
		Seq:     t.nextSeq[h.Kind].Add(1) - 1,
		TS:      h.PTS,
		Kind:    h.Kind,
		Payload: payload,
	}
	return pkt, true
}

// Reap evicts entries older than TTL, incrementing the dropped-expired
// counter for each. Intended to be called periodically (≈5 Hz) by a
// background goroutine.
func (t *Table) Reap(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	reaped := 0
	for pts, e := range t.byPTS {
		if now.Sub(e.firstSeen) > TTL {
			delete(t.byPTS, pts)
			reaped++
		}
	}
	if reaped > 0 {
		t.droppedExpired.Add(int64(reaped))
		t.log.Debug("reaped expired partial frames", "count", reaped)
	}
	return reaped
}

// Run periodically calls Reap at ReapInterval until stop is closed. Intended
// to be launched as its own goroutine by the session owner.
func (t *Table) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			t.Reap(now)
		}
	}
}

// Reset clears all in-flight partial frames and bumps the generation
// counter. A fragment that arrives after the reset starts a new entry,
// even if it was sent before it. Called by the session owner on every Seek.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byPTS = make(map[int64]*entry)
	t.generation++
}

// DroppedExpired returns the count of partial frames reaped past TTL.
func (t *Table) DroppedExpired() int64 { return t.droppedExpired.Load() }

// DroppedMalformed returns the count of fragments rejected for a fragment
// count mismatch.
func (t *Table) DroppedMalformed() int64 { return t.droppedMalformed.Load() }
