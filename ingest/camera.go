package ingest

import (
	"context"
	"time"

	"github.com/zsiec/vstream/media"
)

// CameraFPS is the fixed capture rate for CameraSource.
const CameraFPS = 30

// CameraSource plays a live camera capture through an injected
// black-box Demuxer. It is unbounded (Duration()==0) and does not
// support seeking.
type CameraSource struct {
	demux   Demuxer
	control encoderControl
}

// NewCameraSource wraps an already-opened capture Demuxer as a
// CameraSource.
func NewCameraSource(demux Demuxer) *CameraSource {
	return &CameraSource{demux: demux}
}

func (c *CameraSource) Kind() media.SourceKind { return media.SourceCamera }

func (c *CameraSource) NextEncodedPacket(ctx context.Context) (media.EncodedPacket, error) {
	return c.demux.NextEncodedPacket(ctx)
}

func (c *CameraSource) Reconfigure(targetHeight, targetFPS int, bitrateBps int64) error {
	return c.control.apply(c.demux, targetHeight, targetFPS, bitrateBps)
}

func (c *CameraSource) Seek(seconds float64) error {
	return ErrSeekUnsupported
}

func (c *CameraSource) Duration() time.Duration { return 0 }

func (c *CameraSource) Close() error {
	return c.demux.Close()
}
