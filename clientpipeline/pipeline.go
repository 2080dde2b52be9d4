// Package clientpipeline implements the receiver-side tasks described
// in spec.md §4.H: a datagram receive callback, a video decode loop, an
// audio playback loop with a lateness policy, and a ~120Hz renderer
// loop, all driven off one session.Session's shared buffers.
package clientpipeline

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/zsiec/vstream/apperr"
	"github.com/zsiec/vstream/framebuffer"
	"github.com/zsiec/vstream/media"
	"github.com/zsiec/vstream/netmon"
	"github.com/zsiec/vstream/session"
	"github.com/zsiec/vstream/wire"
)

// audioLatenessThresholdMs is the drop threshold from spec.md §4.H's
// audio lateness policy: an audio packet more than this far behind the
// master clock is discarded rather than played late.
const audioLatenessThresholdMs = -80

// audioSilenceChunkBytes is one 20ms mono S16 chunk at 48kHz, submitted
// to the audio sink in place of a missing packet once the clock has
// started.
const audioSilenceChunkBytes = 48000 / 1000 * 20 * 2

const (
	jitterPollInterval = 5 * time.Millisecond
	renderInterval     = time.Second / 120
)

// Pipeline owns the receiver-side tasks for one play session. All tasks
// read and write through the injected session.Session's buffers, so a
// caller can run DecodeLoop, AudioLoop, and RenderLoop as independent
// goroutines (e.g. under one errgroup.Group per connection).
type Pipeline struct {
	log *slog.Logger

	sess        *session.Session
	decoder     media.Decoder
	videoSink   media.Sink
	audioSink   media.AudioSink
	interpolate framebuffer.Interpolator

	monitor  *netmon.Monitor
	gradient *netmon.GradientClassifier

	nowFunc   func() time.Time
	sleepFunc func(time.Duration)

	decodedFrames  fpsCounter
	renderedFrames fpsCounter
}

// New builds a Pipeline over sess. decoder, videoSink, and audioSink are
// the external collaborators spec.md §1 treats as black boxes; sink
// arguments may be nil in tests or headless operation. interpolate may
// be nil, in which case the renderer never falls back to interpolation.
func New(sess *session.Session, decoder media.Decoder, videoSink media.Sink, audioSink media.AudioSink, interpolate framebuffer.Interpolator, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		log:         log.With("component", "clientpipeline"),
		sess:        sess,
		decoder:     decoder,
		videoSink:   videoSink,
		audioSink:   audioSink,
		interpolate: interpolate,
		monitor:     netmon.New(),
		gradient:    netmon.NewGradientClassifier(),
		nowFunc:     time.Now,
		sleepFunc:   time.Sleep,
	}
}

// OnDatagram is the transport's receive callback: it parses the wire
// header, feeds the fragment to the Reassembly Table, and on a complete
// frame records network telemetry and pushes the packet into the
// matching Jitter Buffer.
func (p *Pipeline) OnDatagram(datagram []byte) error {
	h, fragment, err := wire.Parse(datagram)
	if err != nil {
		return err
	}

	pkt, ok := p.sess.Reassembly.Push(h, fragment)
	if !ok {
		return nil
	}

	p.monitor.Record(uint16(pkt.Seq), len(pkt.Payload))
	p.gradient.Observe(p.nowFunc(), pkt.TS)

	switch pkt.Kind {
	case media.KindVideo:
		p.sess.VideoJitter.Push(pkt)
	case media.KindAudio:
		p.sess.AudioJitter.Push(pkt)
	}
	return nil
}

// Trend returns the delay-gradient classifier's current verdict, for the
// control protocol's outgoing heartbeat.
func (p *Pipeline) Trend() media.Trend {
	return p.gradient.Classify()
}

// NetworkSnapshot returns the rolling loss-rate/bitrate window and
// resets it, for the stats side of the outgoing heartbeat.
func (p *Pipeline) NetworkSnapshot() netmon.Snapshot {
	return p.monitor.Snapshot()
}

// DecodeLoop drains the video Jitter Buffer, decodes each packet, and
// pushes the result into the Decoded Frame Buffer, until ctx is done.
// A packet the decoder rejects, or that yields no frame, is dropped and
// the loop continues.
func (p *Pipeline) DecodeLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, ok := p.sess.VideoJitter.Pop()
		if !ok {
			if err := p.sleep(ctx, jitterPollInterval); err != nil {
				return err
			}
			continue
		}
		if p.decoder == nil {
			continue
		}

		frame, err := p.decoder.Decode(pkt)
		if err != nil {
			p.log.Warn("dropping undecodable packet", "seq", pkt.Seq, "pts", pkt.TS,
				"error", apperr.New(apperr.MediaDecode, "clientpipeline.Decode", err))
			continue
		}
		if frame == nil {
			continue
		}
		p.sess.Frames.Push(frame)
		p.decodedFrames.tick(p.nowFunc())
	}
}

// AudioLoop drains the audio Jitter Buffer and drives playback,
// applying spec.md §4.H's lateness policy and starting the Master Clock
// on the first successful pop.
func (p *Pipeline) AudioLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, ok := p.sess.AudioJitter.Pop()
		if !ok {
			if p.sess.Clock.Started() && p.audioSink != nil {
				p.audioSink.Submit(make([]byte, audioSilenceChunkBytes))
			}
			if err := p.sleep(ctx, jitterPollInterval); err != nil {
				return err
			}
			continue
		}

		if !p.sess.Clock.Started() {
			p.sess.Clock.Start(pkt.TS)
		}

		delta := pkt.TS - p.sess.Clock.Now()
		if delta < audioLatenessThresholdMs {
			continue
		}
		if delta > 0 {
			if err := p.sleep(ctx, time.Duration(delta)*time.Millisecond); err != nil {
				return err
			}
		}

		if p.audioSink != nil {
			p.audioSink.Submit(pkt.Payload)
		}
	}
}

// RenderLoop ticks at spec.md §4.H's ~120Hz rate, fetching the best
// available frame (or an interpolated one) for the current clock
// position and submitting it to the display sink, until ctx is done.
func (p *Pipeline) RenderLoop(ctx context.Context) error {
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !p.sess.Clock.Started() {
			continue
		}

		target := p.sess.Clock.Now()
		frame, ok := p.sess.Frames.Render(target, p.interpolate)
		if !ok {
			continue
		}
		p.renderedFrames.tick(p.nowFunc())
		if p.videoSink != nil {
			p.videoSink.Submit(frame)
		}
	}
}

// Stats returns the decoded and rendered frame rates, tracked
// distinctly per spec.md §4.H.
func (p *Pipeline) Stats() (decodedFPS, renderedFPS float64) {
	return p.decodedFrames.value(), p.renderedFrames.value()
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fpsCounter is a rolling one-second rate counter, mirroring
// netmon.Monitor's windowed-counter-with-reset shape.
type fpsCounter struct {
	windowStart time.Time
	count       int64
	bits        atomic.Uint64
}

func (f *fpsCounter) tick(now time.Time) {
	if f.windowStart.IsZero() {
		f.windowStart = now
	}
	f.count++
	elapsed := now.Sub(f.windowStart)
	if elapsed >= time.Second {
		fps := float64(f.count) / elapsed.Seconds()
		f.bits.Store(math.Float64bits(fps))
		f.count = 0
		f.windowStart = now
	}
}

func (f *fpsCounter) value() float64 {
	return math.Float64frombits(f.bits.Load())
}
