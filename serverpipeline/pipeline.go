// Package serverpipeline drives a single ingest.Source through the
// pacer and Datagram Codec onto a transport connection. One Pipeline
// exists per play session; it is the server-side analogue of the
// teacher's pipeline.Pipeline, generalized from "one demuxed stream
// fanned out to viewers" to "one paced/encoded source sent to one
// client connection".
package serverpipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/zsiec/vstream/abr"
	"github.com/zsiec/vstream/apperr"
	"github.com/zsiec/vstream/ingest"
	"github.com/zsiec/vstream/media"
	"github.com/zsiec/vstream/pacer"
	"github.com/zsiec/vstream/wire"
)

// Sender is the subset of transport.Conn the pipeline needs, accepted as
// an interface so the pipeline is testable without a real QUIC
// connection.
type Sender interface {
	SendDatagram(b []byte) error
}

// Pipeline reads encoded packets from one ingest.Source, applies the ABR
// Controller's latest Decision to its encoder, paces output to wall
// clock, and hands fragmented datagrams to a Sender. It is identical
// regardless of the Source's concrete kind, per spec.md §9's
// "polymorphism over streamers" design note.
type Pipeline struct {
	log    *slog.Logger
	source ingest.Source
	abr    *abr.Controller
	pacer  *pacer.Pacer
	send   Sender

	sentVideo atomic.Int64
	sentAudio atomic.Int64
}

// New builds a Pipeline over an already-opened source.
func New(source ingest.Source, abrCtl *abr.Controller, pc *pacer.Pacer, send Sender, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		log:    log.With("component", "serverpipeline", "source", source.Kind().String()),
		source: source,
		abr:    abrCtl,
		pacer:  pc,
		send:   send,
	}
}

// Run drives the source until it ends, ctx is cancelled, or a fatal
// error occurs. It closes the source on return.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.source.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		decision := p.abr.Decision()
		if err := p.source.Reconfigure(decision.TargetHeight, decision.TargetFPS, decision.Bitrate); err != nil {
			return apperr.New(apperr.CodecInit, "serverpipeline.Reconfigure", err)
		}

		pkt, err := p.source.NextEncodedPacket(ctx)
		if errors.Is(err, ingest.ErrEndOfStream) {
			p.log.Info("source reached end of stream")
			return nil
		}
		if err != nil {
			return apperr.New(apperr.MediaDecode, "serverpipeline.NextEncodedPacket", err)
		}

		if err := p.pacer.WaitUntil(ctx, pkt.PTS); err != nil {
			return err
		}

		for _, datagram := range wire.Serialize(pkt.Kind, pkt.PTS, pkt.Payload) {
			if err := p.send.SendDatagram(datagram); err != nil {
				return apperr.New(apperr.Transport, "serverpipeline.SendDatagram", err)
			}
		}
		p.recordSent(pkt.Kind)
	}
}

func (p *Pipeline) recordSent(kind media.Kind) {
	switch kind {
	case media.KindVideo:
		p.sentVideo.Add(1)
	case media.KindAudio:
		p.sentAudio.Add(1)
	}
}

// Stats returns the running count of video/audio packets sent.
func (p *Pipeline) Stats() (video, audio int64) {
	return p.sentVideo.Load(), p.sentAudio.Load()
}

// Pause suspends pacing; in flight and future WaitUntil calls block
// until Resume.
func (p *Pipeline) Pause() {
	p.pacer.Pause()
}

// Resume un-suspends pacing, shifting the wall-clock anchor by the
// paused duration.
func (p *Pipeline) Resume() {
	p.pacer.Resume()
}

// Seek jumps the source to seconds and re-anchors the pacer, matching
// spec.md §4.G's pause/seek design note: codecs are flushed (Seek on
// the source tears down and recreates the black-box demux/decode state)
// and pacing is re-anchored to the first packet at the new position.
func (p *Pipeline) Seek(seconds float64) error {
	if err := p.source.Seek(seconds); err != nil {
		return err
	}
	p.pacer.Reset()
	return nil
}
