package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/vstream/media"
)

// srtReadBufferSize is the read buffer for SRT socket reads.
const srtReadBufferSize = 1316 * 10

// srtLatencyNs is the SRT latency setting in nanoseconds (120ms).
const srtLatencyNs = 120_000_000

// srtDialTimeout bounds how long SRTPull waits for the caller-mode
// handshake to complete.
const srtDialTimeout = 10 * time.Second

// NewDemuxer builds a Demuxer over a raw MPEG-TS byte stream. Injected
// so the container-demux/decode/re-encode black box can be swapped
// without SRTPullSource knowing about it.
type NewDemuxer func(r io.Reader) Demuxer

// NewMPEGTSDemuxer is the package-level NewDemuxer collaborator a server
// binary wires to a real MPEG-TS demuxer before offering the "srt"
// source; left nil, DialSRTPull is not attempted.
var NewMPEGTSDemuxer NewDemuxer

// SRTPullSource dials a remote SRT listener in caller mode and demuxes
// the MPEG-TS stream it delivers. It is live (Duration()==0) and does
// not support seeking; a single pull feeds a single play session, with
// no fan-out to other sessions.
type SRTPullSource struct {
	log     *slog.Logger
	conn    *srtgo.Conn
	demux   Demuxer
	control encoderControl

	pipeWriter *io.PipeWriter
	copyErrCh  chan error
}

// DialSRTPull connects to address in caller mode and starts demuxing
// the resulting MPEG-TS stream via newDemux.
func DialSRTPull(ctx context.Context, address, streamID string, newDemux NewDemuxer, log *slog.Logger) (*SRTPullSource, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "ingest-srt-pull")

	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs
	cfg.StreamID = streamID

	ch := make(chan srtDialResult, 1)
	go func() {
		conn, err := srtgo.Dial(address, cfg)
		ch <- srtDialResult{conn, err}
	}()

	timer := time.NewTimer(srtDialTimeout)
	defer timer.Stop()

	var conn *srtgo.Conn
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("ingest: SRT dial failed: %w", res.err)
		}
		conn = res.conn
	case <-timer.C:
		go drainDial(ch)
		return nil, fmt.Errorf("ingest: SRT dial timed out after %s", srtDialTimeout)
	case <-ctx.Done():
		go drainDial(ch)
		return nil, ctx.Err()
	}

	log.Info("connected", "address", address)

	pr, pw := io.Pipe()
	demux := newDemux(pr)

	s := &SRTPullSource{
		log:        log,
		conn:       conn,
		demux:      demux,
		pipeWriter: pw,
		copyErrCh:  make(chan error, 1),
	}
	go s.copyLoop()
	return s, nil
}

type srtDialResult struct {
	conn *srtgo.Conn
	err  error
}

func drainDial(ch <-chan srtDialResult) {
	if res := <-ch; res.conn != nil {
		res.conn.Close()
	}
}

func (s *SRTPullSource) copyLoop() {
	buf := make([]byte, srtReadBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			if _, werr := s.pipeWriter.Write(buf[:n]); werr != nil {
				s.copyErrCh <- werr
				return
			}
		}
		if err != nil {
			s.copyErrCh <- err
			s.pipeWriter.CloseWithError(err)
			return
		}
	}
}

func (s *SRTPullSource) Kind() media.SourceKind { return media.SourceSRTPull }

func (s *SRTPullSource) NextEncodedPacket(ctx context.Context) (media.EncodedPacket, error) {
	return s.demux.NextEncodedPacket(ctx)
}

func (s *SRTPullSource) Reconfigure(targetHeight, targetFPS int, bitrateBps int64) error {
	return s.control.apply(s.demux, targetHeight, targetFPS, bitrateBps)
}

func (s *SRTPullSource) Seek(seconds float64) error {
	return ErrSeekUnsupported
}

func (s *SRTPullSource) Duration() time.Duration { return 0 }

func (s *SRTPullSource) Close() error {
	s.conn.Close()
	err := s.demux.Close()
	s.pipeWriter.Close()
	return err
}
