package client

import (
	"bufio"
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/slipwayhq/slipway/internal/protocol"
)

// Runs a single-exchange fake daemon on a Unix socket. For each connection
// it reads the request and replies with the given envelopes.
func fakeDaemon(t *testing.T, respond func(req *protocol.Envelope, write func(protocol.Command, any))) string {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "slipwayd.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()

				line, err := bufio.NewReader(conn).ReadBytes('\n')
				if err != nil {
					return
				}
				env, _, err := protocol.Decode(line)
				if err != nil {
					return
				}

				respond(env, func(cmd protocol.Command, payload any) {
					data, err := protocol.Encode(cmd, payload)
					if err != nil {
						return
					}
					conn.Write(append(data, '\n'))
				})
			}(conn)
		}
	}()

	return socket
}

func TestBuildStreamsEventsThenResult(t *testing.T) {
	socket := fakeDaemon(t, func(req *protocol.Envelope, write func(protocol.Command, any)) {
		if req.Command != protocol.CmdBuild {
			write(protocol.CmdError, &protocol.ErrorResult{Message: "wrong command"})
			return
		}
		write(protocol.CmdEvent, &protocol.Event{Kind: "base", Message: "acquiring base image"})
		write(protocol.CmdEvent, &protocol.Event{Kind: "source", Message: "copying source"})
		write(protocol.CmdOK, &protocol.BuildResult{Output: "/var/out", Cached: true})
	})

	var events []protocol.Event
	c := New(WithSocketPath(socket), WithEvents(func(e protocol.Event) { events = append(events, e) }))

	result, err := c.Build(context.Background(), &protocol.BuildRequest{Context: "."})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.Output != "/var/out" || !result.Cached {
		t.Errorf("result = %+v", result)
	}
	if len(events) != 2 || events[0].Kind != "base" {
		t.Errorf("events = %v", events)
	}
}

func TestDaemonErrorSurfaces(t *testing.T) {
	socket := fakeDaemon(t, func(_ *protocol.Envelope, write func(protocol.Command, any)) {
		write(protocol.CmdError, &protocol.ErrorResult{Message: "no such profile"})
	})

	c := New(WithSocketPath(socket))
	_, err := c.Build(context.Background(), &protocol.BuildRequest{Context: "."})
	if !errors.Is(err, ErrDaemon) {
		t.Fatalf("err = %v, want ErrDaemon", err)
	}
}

func TestDialFailureMeansNotRunning(t *testing.T) {
	c := New(WithSocketPath(filepath.Join(t.TempDir(), "absent.sock")))

	_, err := c.Status(context.Background())
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
	if c.Running(context.Background()) {
		t.Error("Running reported true with no daemon")
	}
}

func TestUpExitCodePassthrough(t *testing.T) {
	socket := fakeDaemon(t, func(_ *protocol.Envelope, write func(protocol.Command, any)) {
		write(protocol.CmdEvent, &protocol.Event{Kind: "ready", Message: "service ready (http)"})
		write(protocol.CmdOK, &protocol.UpResult{ExitCode: 7})
	})

	c := New(WithSocketPath(socket))
	result, err := c.Up(context.Background(), &protocol.UpRequest{Context: "."})
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if result.ExitCode != 7 {
		t.Errorf("exit code = %d, want passthrough", result.ExitCode)
	}
}
