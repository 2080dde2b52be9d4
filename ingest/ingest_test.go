package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/zsiec/vstream/media"
)

type fakeDemuxer struct {
	packets  []media.EncodedPacket
	i        int
	duration time.Duration
	seekErr  error
	lastSeek float64
	closed   bool

	reinits     int
	setBitrate  int
	lastHeight  int
	lastFPS     int
	lastBitrate int64
}

func (f *fakeDemuxer) NextEncodedPacket(ctx context.Context) (media.EncodedPacket, error) {
	if f.i >= len(f.packets) {
		return media.EncodedPacket{}, ErrEndOfStream
	}
	p := f.packets[f.i]
	f.i++
	return p, nil
}

func (f *fakeDemuxer) Reinit(targetHeight, targetFPS int, bitrateBps int64) error {
	f.reinits++
	f.lastHeight, f.lastFPS, f.lastBitrate = targetHeight, targetFPS, bitrateBps
	return nil
}

func (f *fakeDemuxer) SetBitrate(bitrateBps int64) error {
	f.setBitrate++
	f.lastBitrate = bitrateBps
	return nil
}

func (f *fakeDemuxer) Seek(seconds float64) error {
	f.lastSeek = seconds
	return f.seekErr
}

func (f *fakeDemuxer) Duration() time.Duration { return f.duration }

func (f *fakeDemuxer) Close() error {
	f.closed = true
	return nil
}

func TestFileSource_DelegatesToDemuxer(t *testing.T) {
	t.Parallel()

	demux := &fakeDemuxer{
		packets:  []media.EncodedPacket{{Kind: media.KindVideo, PTS: 0}, {Kind: media.KindVideo, PTS: 33}},
		duration: 12 * time.Second,
	}
	src := NewFileSource(demux)

	if src.Kind() != media.SourceFile {
		t.Fatalf("Kind() = %v, want SourceFile", src.Kind())
	}
	if src.Duration() != 12*time.Second {
		t.Fatalf("Duration() = %v, want 12s", src.Duration())
	}

	pkt, err := src.NextEncodedPacket(context.Background())
	if err != nil {
		t.Fatalf("NextEncodedPacket: %v", err)
	}
	if pkt.PTS != 0 {
		t.Fatalf("PTS = %d, want 0", pkt.PTS)
	}

	if err := src.Seek(5.0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if demux.lastSeek != 5.0 {
		t.Fatalf("lastSeek = %v, want 5.0", demux.lastSeek)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !demux.closed {
		t.Fatal("underlying demuxer was not closed")
	}
}

func TestFileSource_EndOfStream(t *testing.T) {
	t.Parallel()

	src := NewFileSource(&fakeDemuxer{})
	if _, err := src.NextEncodedPacket(context.Background()); err != ErrEndOfStream {
		t.Fatalf("err = %v, want ErrEndOfStream", err)
	}
}

func TestCameraSource_LiveAndSeekUnsupported(t *testing.T) {
	t.Parallel()

	demux := &fakeDemuxer{packets: []media.EncodedPacket{{Kind: media.KindVideo, PTS: 0}}}
	src := NewCameraSource(demux)

	if src.Kind() != media.SourceCamera {
		t.Fatalf("Kind() = %v, want SourceCamera", src.Kind())
	}
	if src.Duration() != 0 {
		t.Fatalf("Duration() = %v, want 0 (live)", src.Duration())
	}
	if err := src.Seek(1.0); err != ErrSeekUnsupported {
		t.Fatalf("Seek err = %v, want ErrSeekUnsupported", err)
	}
}

func TestReconfigure_FirstCallAlwaysReinits(t *testing.T) {
	t.Parallel()

	demux := &fakeDemuxer{}
	src := NewFileSource(demux)

	if err := src.Reconfigure(1080, 30, 4_000_000); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if demux.reinits != 1 || demux.setBitrate != 0 {
		t.Fatalf("reinits=%d setBitrate=%d, want 1/0", demux.reinits, demux.setBitrate)
	}
	if demux.lastHeight != 1080 || demux.lastFPS != 30 || demux.lastBitrate != 4_000_000 {
		t.Fatalf("Reinit args = %d/%d/%d, want 1080/30/4000000", demux.lastHeight, demux.lastFPS, demux.lastBitrate)
	}
}

func TestReconfigure_ResolutionChangeReinits(t *testing.T) {
	t.Parallel()

	demux := &fakeDemuxer{}
	src := NewFileSource(demux)

	_ = src.Reconfigure(1080, 30, 4_000_000)
	_ = src.Reconfigure(720, 30, 4_000_000)

	if demux.reinits != 2 {
		t.Fatalf("reinits = %d, want 2 (height change forces reinit)", demux.reinits)
	}
}

func TestReconfigure_FPSChangeReinits(t *testing.T) {
	t.Parallel()

	demux := &fakeDemuxer{}
	src := NewFileSource(demux)

	_ = src.Reconfigure(1080, 30, 4_000_000)
	_ = src.Reconfigure(1080, 60, 4_000_000)

	if demux.reinits != 2 {
		t.Fatalf("reinits = %d, want 2 (fps change forces reinit)", demux.reinits)
	}
}

func TestReconfigure_SmallBitrateChangeAppliesWithoutReinit(t *testing.T) {
	t.Parallel()

	demux := &fakeDemuxer{}
	src := NewFileSource(demux)

	_ = src.Reconfigure(1080, 30, 4_000_000)
	_ = src.Reconfigure(1080, 30, 4_100_000) // 2.5% change

	if demux.reinits != 1 {
		t.Fatalf("reinits = %d, want 1 (only the first call)", demux.reinits)
	}
	if demux.setBitrate != 0 {
		t.Fatalf("setBitrate = %d, want 0 (change is below the 5%% threshold)", demux.setBitrate)
	}
}

func TestReconfigure_LargeBitrateChangeAppliesWithoutReinit(t *testing.T) {
	t.Parallel()

	demux := &fakeDemuxer{}
	src := NewFileSource(demux)

	_ = src.Reconfigure(1080, 30, 4_000_000)
	_ = src.Reconfigure(1080, 30, 5_000_000) // 25% change

	if demux.reinits != 1 {
		t.Fatalf("reinits = %d, want 1 (bitrate-only change must not reinit)", demux.reinits)
	}
	if demux.setBitrate != 1 || demux.lastBitrate != 5_000_000 {
		t.Fatalf("setBitrate=%d lastBitrate=%d, want 1/5000000", demux.setBitrate, demux.lastBitrate)
	}
}
