// Command vstream-client connects to a vstream-server, receives media
// over QUIC datagrams, and drives decode/audio/render loops against one
// session.Session, per spec.md §1.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/vstream/clientpipeline"
	"github.com/zsiec/vstream/config"
	"github.com/zsiec/vstream/control"
	"github.com/zsiec/vstream/session"
	"github.com/zsiec/vstream/transport"
)

// heartbeatInterval is how often the client reports its network trend
// estimate and measures round-trip latency, per spec.md §4.I.
const heartbeatInterval = time.Second

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	configPath := flag.String("config", "config.json", "path to client config.json")
	host := flag.String("host", "127.0.0.1", "server host")
	source := flag.String("source", "", "source name to play; empty lists available sources and exits")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	addr := fmt.Sprintf("%s:%d", *host, cfg.ServerPort)
	conn, err := transport.Dial(ctx, addr, transport.Config{PacingEnabled: true}, slog.Default())
	if err != nil {
		slog.Error("failed to connect", "addr", addr, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	stream, err := conn.OpenControlStream(ctx)
	if err != nil {
		slog.Error("failed to open control stream", "error", err)
		os.Exit(1)
	}
	cs := control.NewStream(stream)

	if *source == "" {
		if err := cs.WriteGetList(); err != nil {
			slog.Error("failed to request source list", "error", err)
			os.Exit(1)
		}
		resp, err := cs.ReadResponse()
		if err != nil {
			slog.Error("failed to read source list", "error", err)
			os.Exit(1)
		}
		list, ok := resp.(control.ListResponse)
		if !ok {
			slog.Error("unexpected response to get_list", "response", resp)
			os.Exit(1)
		}
		fmt.Println("available sources:")
		for _, name := range list {
			fmt.Println(" ", name)
		}
		return
	}

	if err := cs.WritePlay(*source); err != nil {
		slog.Error("failed to send play request", "error", err)
		os.Exit(1)
	}
	if resp, err := cs.ReadResponse(); err != nil {
		slog.Error("failed to read play_info", "error", err)
		os.Exit(1)
	} else if info, ok := resp.(control.PlayInfoResponse); ok {
		slog.Info("playing", "source", *source, "duration_seconds", info.Duration)
	}

	sess := session.New(slog.Default())
	defer sess.Stop()

	var decoder = newOrNil(clientpipeline.NewDecoder)
	var videoSink = newOrNil(clientpipeline.NewVideoSink)
	var audioSink = newOrNil(clientpipeline.NewAudioSink)

	pipe := clientpipeline.New(sess, decoder, videoSink, audioSink, nil, slog.Default())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return receiveLoop(ctx, conn, pipe) })
	g.Go(func() error { return pipe.DecodeLoop(ctx) })
	g.Go(func() error { return pipe.AudioLoop(ctx) })
	g.Go(func() error { return pipe.RenderLoop(ctx) })
	g.Go(func() error { return heartbeatLoop(ctx, cs, pipe) })
	g.Go(func() error {
		select {
		case f, ok := <-sess.Faults():
			if !ok {
				return nil
			}
			return fmt.Errorf("session fault (%s): %w", f.Kind, f.Err)
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("client stopped", "error", err)
		os.Exit(1)
	}
}

// newOrNil calls factory if non-nil, otherwise returns the zero value,
// so a collaborator left unwired degrades to "submit/decode is skipped"
// rather than a nil function-value panic.
func newOrNil[T any](factory func() T) T {
	if factory == nil {
		var zero T
		return zero
	}
	return factory()
}

// receiveLoop pulls datagrams off the connection and feeds them to the
// pipeline's reassembly/jitter-buffer path until ctx is done.
func receiveLoop(ctx context.Context, conn *transport.Conn, pipe *clientpipeline.Pipeline) error {
	for {
		datagram, err := conn.ReceiveDatagram(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := pipe.OnDatagram(datagram); err != nil {
			slog.Warn("dropping malformed datagram", "error", err)
		}
	}
}

// heartbeatLoop sends the current network-trend estimate once per
// heartbeatInterval and logs the measured one-way latency computed from
// each heartbeat_reply, per spec.md §4.I.
func heartbeatLoop(ctx context.Context, cs *control.Stream, pipe *clientpipeline.Pipeline) error {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		sendTS := time.Now().UnixMilli()
		trend := control.FromMedia(pipe.Trend())
		if err := cs.WriteHeartbeat(trend, sendTS); err != nil {
			return err
		}

		resp, err := cs.ReadResponse()
		if err != nil {
			return err
		}
		reply, ok := resp.(control.HeartbeatReplyResponse)
		if !ok {
			continue
		}
		oneWayMs := (time.Now().UnixMilli() - reply.ClientTS) / 2
		decodedFPS, renderedFPS := pipe.Stats()
		snap := pipe.NetworkSnapshot()
		slog.Debug("heartbeat",
			"trend", trend,
			"one_way_ms", oneWayMs,
			"decoded_fps", decodedFPS,
			"rendered_fps", renderedFPS,
			"loss_rate", snap.LossRate,
			"bitrate_bps", snap.BitrateBps)
	}
}
