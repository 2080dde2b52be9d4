package ingest

import (
	"context"
	"time"

	"github.com/zsiec/vstream/media"
)

// FileSource plays a finite local file through an injected black-box
// Demuxer (container demux + decode + rescale + encode).
type FileSource struct {
	demux   Demuxer
	control encoderControl
}

// NewFileSource wraps an already-opened Demuxer as a FileSource.
func NewFileSource(demux Demuxer) *FileSource {
	return &FileSource{demux: demux}
}

func (f *FileSource) Kind() media.SourceKind { return media.SourceFile }

func (f *FileSource) NextEncodedPacket(ctx context.Context) (media.EncodedPacket, error) {
	return f.demux.NextEncodedPacket(ctx)
}

func (f *FileSource) Reconfigure(targetHeight, targetFPS int, bitrateBps int64) error {
	return f.control.apply(f.demux, targetHeight, targetFPS, bitrateBps)
}

func (f *FileSource) Seek(seconds float64) error {
	return f.demux.Seek(seconds)
}

func (f *FileSource) Duration() time.Duration {
	return f.demux.Duration()
}

func (f *FileSource) Close() error {
	return f.demux.Close()
}
