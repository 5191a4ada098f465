package launch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func listenerPort(t *testing.T, addr net.Addr) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return port
}

func TestProbeHTTPService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	status, err := Probe(context.Background(), listenerPort(t, srv.Listener.Addr()), 5*time.Second)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if status != StatusHTTP {
		t.Errorf("status = %q, want %q", status, StatusHTTP)
	}
}

func TestProbeReadyOnAnyStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	status, err := Probe(context.Background(), listenerPort(t, srv.Listener.Addr()), 5*time.Second)
	if err != nil {
		t.Fatalf("probe must treat any status line as ready: %v", err)
	}
	if status != StatusHTTP {
		t.Errorf("status = %q, want %q", status, StatusHTTP)
	}
}

func TestProbeTCPOnlyService(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close() // accept, never speak HTTP
		}
	}()

	status, err := Probe(context.Background(), listenerPort(t, ln.Addr()), 10*time.Second)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if status != StatusTCP {
		t.Errorf("status = %q, want %q", status, StatusTCP)
	}
}

func TestProbeClosedPort(t *testing.T) {
	// Grab a port and release it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := listenerPort(t, ln.Addr())
	ln.Close()

	_, err = Probe(context.Background(), port, 500*time.Millisecond)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestProbeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := listenerPort(t, ln.Addr())
	ln.Close()

	_, err = Probe(ctx, port, 5*time.Second)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}
