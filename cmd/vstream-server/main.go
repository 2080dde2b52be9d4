// Command vstream-server transcodes, paces, and transmits media over
// QUIC to a single connected vstream-client, per spec.md §1.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/vstream/apperr"
	"github.com/zsiec/vstream/certs"
	"github.com/zsiec/vstream/config"
	"github.com/zsiec/vstream/control"
	"github.com/zsiec/vstream/ingest"
	"github.com/zsiec/vstream/pacer"
	"github.com/zsiec/vstream/serverpipeline"
	"github.com/zsiec/vstream/session"
	"github.com/zsiec/vstream/transport"
)

// sourceResolution is the assumed width/height fed to the ABR
// Controller's ladder when a source is opened. Real per-file
// resolution comes from on-disk video probing, which spec.md §1 scopes
// out of this module as an external collaborator; a fixed assumption
// keeps the ladder usable without it.
const (
	sourceResolutionWidth  = 1920
	sourceResolutionHeight = 1080
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	configPath := flag.String("config", "config.json", "path to server config.json")
	videosDir := flag.String("videos-dir", "videos", "directory of video files playable by name")
	srtAddress := flag.String("srt-address", "", "SRT caller-mode address to pull a live feed from (enables the \"srt\" play source)")
	srtStreamID := flag.String("srt-stream-id", "", "SRT stream ID to present when dialing -srt-address")
	flag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	cert, err := certs.Generate(14 * 24 * time.Hour)
	if err != nil {
		slog.Error("failed to generate certificate", "error", err)
		os.Exit(1)
	}
	if !cert.MatchesFingerprint(cfg.CertificateFingerprint) {
		slog.Warn("generated certificate does not match config's certificate_fingerprint; update config.json and distribute the new value to clients",
			"configured", cfg.CertificateFingerprint, "generated", cert.FingerprintHex())
	}
	slog.Info("certificate generated", "fingerprint", cert.FingerprintHex(), "expires", cert.NotAfter.Format(time.RFC3339))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv, err := transport.Listen(addr, cert.TLSCert, transport.Config{PacingEnabled: cfg.PacingEnabled}, slog.Default())
	if err != nil {
		slog.Error("failed to start listener", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	a := &app{
		videosDir:   *videosDir,
		srtAddress:  *srtAddress,
		srtStreamID: *srtStreamID,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return srv.Close()
	})
	g.Go(func() error {
		for {
			conn, err := srv.Accept(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			g.Go(func() error {
				connErr := a.handleConnection(ctx, conn)
				if connErr != nil {
					slog.Error("connection ended", "remote", conn.RemoteAddr(), "error", connErr)
				}
				return nil // one connection's failure does not bring down the server
			})
		}
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

type app struct {
	videosDir   string
	srtAddress  string
	srtStreamID string
}

// handleConnection serves the control protocol and, once a play command
// arrives, drives a serverpipeline.Pipeline over the requested source
// until the connection closes.
func (a *app) handleConnection(ctx context.Context, conn *transport.Conn) error {
	defer conn.Close()
	log := slog.With("component", "server-session", "remote", conn.RemoteAddr())

	stream, err := conn.AcceptControlStream(ctx)
	if err != nil {
		return err
	}
	cs := control.NewStream(stream)

	sess := session.New(log)
	defer sess.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case f, ok := <-sess.Faults():
			if !ok {
				return nil
			}
			return fmt.Errorf("session fault (%s): %w", f.Kind, f.Err)
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	var pipe *serverpipeline.Pipeline
	var stopPipe context.CancelFunc
	defer func() {
		if stopPipe != nil {
			stopPipe()
		}
	}()

	for {
		req, err := cs.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return apperr.New(apperr.Transport, "server.ReadRequest", err)
		}

		switch m := req.(type) {
		case control.GetListRequest:
			if err := cs.WriteList(a.listSources()); err != nil {
				return err
			}

		case control.PlayRequest:
			if stopPipe != nil {
				stopPipe()
			}
			source, err := a.openSource(gctx, m.Source)
			if err != nil {
				log.Error("failed to open source", "source", m.Source, "error", err)
				continue
			}

			sess.ABR.SetSourceResolution(sourceResolutionWidth, sourceResolutionHeight)
			pipeCtx, cancel := context.WithCancel(gctx)
			stopPipe = cancel
			pipe = serverpipeline.New(source, sess.ABR, pacer.New(), conn, log)

			g.Go(func() error {
				if err := pipe.Run(pipeCtx); err != nil && pipeCtx.Err() == nil {
					sess.ReportFault(apperr.CodecInit, err)
					return err
				}
				return nil
			})

			if err := cs.WritePlayInfo(source.Duration().Seconds()); err != nil {
				return err
			}

		case control.SeekRequest:
			if pipe != nil {
				if err := pipe.Seek(m.Time); err != nil {
					log.Error("seek failed", "error", err)
				}
			}

		case control.PauseRequest:
			if pipe != nil {
				pipe.Pause()
			}

		case control.ResumeRequest:
			if pipe != nil {
				pipe.Resume()
			}

		case control.HeartbeatRequest:
			sess.ABR.Feedback(m.Trend.ToMedia())
			if err := cs.WriteHeartbeatReply(m.ClientTS); err != nil {
				return err
			}
		}
	}

	if stopPipe != nil {
		stopPipe()
	}
	return g.Wait()
}

// listSources enumerates playable names: every file under videosDir,
// plus the always-available "camera" pseudo-source and, when
// -srt-address is configured, "srt".
func (a *app) listSources() []string {
	var names []string
	entries, err := os.ReadDir(a.videosDir)
	if err != nil {
		slog.Warn("failed to list videos directory", "dir", a.videosDir, "error", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	names = append(names, "camera")
	if a.srtAddress != "" {
		names = append(names, "srt")
	}
	return names
}

// openSource resolves a play command's source name to a concrete
// ingest.Source.
func (a *app) openSource(ctx context.Context, name string) (ingest.Source, error) {
	switch {
	case name == "camera":
		if ingest.NewCameraDemuxer == nil {
			return nil, apperr.New(apperr.CodecInit, "openSource", errors.New("no camera demuxer collaborator registered"))
		}
		demux, err := ingest.NewCameraDemuxer()
		if err != nil {
			return nil, apperr.New(apperr.CodecInit, "openSource", err)
		}
		return ingest.NewCameraSource(demux), nil

	case name == "srt":
		if a.srtAddress == "" {
			return nil, apperr.New(apperr.CodecInit, "openSource", errors.New("srt source requested but -srt-address is not configured"))
		}
		if ingest.NewMPEGTSDemuxer == nil {
			return nil, apperr.New(apperr.CodecInit, "openSource", errors.New("no MPEG-TS demuxer collaborator registered"))
		}
		return ingest.DialSRTPull(ctx, a.srtAddress, a.srtStreamID, ingest.NewMPEGTSDemuxer, slog.Default())

	case strings.Contains(name, ".."):
		return nil, apperr.New(apperr.CodecInit, "openSource", fmt.Errorf("invalid source name %q", name))

	default:
		if ingest.NewFileDemuxer == nil {
			return nil, apperr.New(apperr.CodecInit, "openSource", errors.New("no file demuxer collaborator registered"))
		}
		demux, err := ingest.NewFileDemuxer(filepath.Join(a.videosDir, name))
		if err != nil {
			return nil, apperr.New(apperr.CodecInit, "openSource", err)
		}
		return ingest.NewFileSource(demux), nil
	}
}
