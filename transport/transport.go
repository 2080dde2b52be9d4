// Package transport adapts raw quic-go (not HTTP/3 or WebTransport) to
// vstream's needs: unreliable datagrams for media and one reliable
// bidirectional stream per connection for control, per spec.md §4.J.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zsiec/vstream/apperr"
)

// ALPN is the application-layer protocol negotiated over TLS.
const ALPN = "vstream"

// IdleTimeout matches spec.md §4.J's 10s connection idle timeout.
const IdleTimeout = 10 * time.Second

// PacedInitialPacketSize is the fixed initial packet size applied when
// pacing is disabled; with pacing enabled quic-go's default is used.
const PacedInitialPacketSize = 1252

// UnpacedInitialWindowPackets is the initial congestion window, in
// packets, of the unpaced profile. It is only reported in the listener's
// log; quic.Config is not given it.
const UnpacedInitialWindowPackets = 100

// Config configures a Conn-producing endpoint.
type Config struct {
	// PacingEnabled keeps quic-go's defaults when true. When false, path
	// MTU discovery is disabled and the initial packet size is fixed at
	// PacedInitialPacketSize. HyStart and the initial congestion window
	// are not changed by either setting.
	PacingEnabled bool
}

// quicConfig builds the quic.Config for the given pacing setting.
// quic-go manages its congestion controller internally and does not
// expose a public initial-congestion-window knob (congestion control
// beyond what QUIC provides is out of scope per spec.md §1); disabling
// pacing here instead disables path MTU discovery and fixes the initial
// packet size, which is as close as the library's public Config gets to
// the "HyStart off, initial_window_packets=100" profile spec.md asks for.
func (c Config) quicConfig() *quic.Config {
	qc := &quic.Config{
		EnableDatagrams: true,
		MaxIdleTimeout:  IdleTimeout,
	}
	if !c.PacingEnabled {
		qc.InitialPacketSize = PacedInitialPacketSize
		qc.DisablePathMTUDiscovery = true
	}
	return qc
}

// Conn wraps a quic.Connection, exposing exactly the surface vstream
// needs: datagram send/receive and a single control stream.
type Conn struct {
	log  *slog.Logger
	conn quic.Connection
}

// SendDatagram sends one unreliable datagram (a single wire fragment).
func (c *Conn) SendDatagram(b []byte) error {
	if err := c.conn.SendDatagram(b); err != nil {
		return apperr.New(apperr.Transport, "transport.Conn.SendDatagram", err)
	}
	return nil
}

// ReceiveDatagram blocks until one datagram arrives or ctx is done.
func (c *Conn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	b, err := c.conn.ReceiveDatagram(ctx)
	if err != nil {
		return nil, apperr.New(apperr.Transport, "transport.Conn.ReceiveDatagram", err)
	}
	return b, nil
}

// OpenControlStream opens the single reliable bidirectional stream used
// for the control protocol. Called by the client side.
func (c *Conn) OpenControlStream(ctx context.Context) (quic.Stream, error) {
	s, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, apperr.New(apperr.Transport, "transport.Conn.OpenControlStream", err)
	}
	return s, nil
}

// AcceptControlStream accepts the peer-opened control stream. Called by
// the server side.
func (c *Conn) AcceptControlStream(ctx context.Context) (quic.Stream, error) {
	s, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, apperr.New(apperr.Transport, "transport.Conn.AcceptControlStream", err)
	}
	return s, nil
}

// RemoteAddr returns the peer's network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close tears down the connection with QUIC error code 0.
func (c *Conn) Close() error {
	return c.conn.CloseWithError(0, "session closed")
}

// Server listens for incoming vstream connections.
type Server struct {
	log      *slog.Logger
	listener *quic.Listener
}

// Listen binds addr (":4443"-shaped) and starts accepting QUIC
// connections using tlsCert for the handshake.
func Listen(addr string, tlsCert tls.Certificate, cfg Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "transport")

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{ALPN},
	}

	listener, err := quic.ListenAddr(addr, tlsConfig, cfg.quicConfig())
	if err != nil {
		return nil, apperr.New(apperr.Transport, "transport.Listen", err)
	}

	log.Info("listening", "addr", addr, "pacing_enabled", cfg.PacingEnabled, "unpaced_initial_window_packets", UnpacedInitialWindowPackets)
	return &Server{log: log, listener: listener}, nil
}

// Accept blocks until a client connects or ctx is done.
func (s *Server) Accept(ctx context.Context) (*Conn, error) {
	conn, err := s.listener.Accept(ctx)
	if err != nil {
		return nil, apperr.New(apperr.Transport, "transport.Server.Accept", err)
	}
	return &Conn{log: s.log, conn: conn}, nil
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Addr returns the bound local address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Dial connects to a vstream server at addr. Certificate validation is
// disabled, matching the lab/demo client profile in spec.md §4.J.
func Dial(ctx context.Context, addr string, cfg Config, log *slog.Logger) (*Conn, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "transport")

	tlsConfig := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{ALPN},
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, cfg.quicConfig())
	if err != nil {
		return nil, apperr.New(apperr.Transport, "transport.Dial", fmt.Errorf("dial %s: %w", addr, err))
	}
	return &Conn{log: log, conn: conn}, nil
}
