package transport

import (
	"context"
	"testing"
	"time"

	"github.com/zsiec/vstream/certs"
)

func TestListenDialDatagramRoundTrip(t *testing.T) {
	t.Parallel()

	cert, err := certs.Generate(14 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("certs.Generate: %v", err)
	}

	srv, err := Listen("127.0.0.1:0", cert.TLSCert, Config{PacingEnabled: true}, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverConnCh := make(chan *Conn, 1)
	serverErrCh := make(chan error, 1)
	go func() {
		conn, err := srv.Accept(ctx)
		if err != nil {
			serverErrCh <- err
			return
		}
		serverConnCh <- conn
	}()

	clientConn, err := Dial(ctx, srv.Addr().String(), Config{PacingEnabled: true}, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	var serverConn *Conn
	select {
	case serverConn = <-serverConnCh:
	case err := <-serverErrCh:
		t.Fatalf("Accept: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for server to accept")
	}
	defer serverConn.Close()

	want := []byte("hello-datagram")
	if err := clientConn.SendDatagram(want); err != nil {
		t.Fatalf("SendDatagram: %v", err)
	}

	got, err := serverConn.ReceiveDatagram(ctx)
	if err != nil {
		t.Fatalf("ReceiveDatagram: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOpenAcceptControlStreamRoundTrip(t *testing.T) {
	t.Parallel()

	cert, err := certs.Generate(14 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("certs.Generate: %v", err)
	}

	srv, err := Listen("127.0.0.1:0", cert.TLSCert, Config{PacingEnabled: false}, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverConnCh := make(chan *Conn, 1)
	go func() {
		conn, err := srv.Accept(ctx)
		if err == nil {
			serverConnCh <- conn
		}
	}()

	clientConn, err := Dial(ctx, srv.Addr().String(), Config{PacingEnabled: false}, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	clientStream, err := clientConn.OpenControlStream(ctx)
	if err != nil {
		t.Fatalf("OpenControlStream: %v", err)
	}

	// The peer only learns of a new stream once data is sent on it, so
	// write before accepting.
	want := []byte(`{"command":"get_list"}`)
	if _, err := clientStream.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	serverStream, err := serverConn.AcceptControlStream(ctx)
	if err != nil {
		t.Fatalf("AcceptControlStream: %v", err)
	}

	got := make([]byte, len(want))
	if _, err := serverStream.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}
