package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/slipwayhq/slipway/internal/paths"
	"github.com/slipwayhq/slipway/internal/protocol"
)

// Talks to the slipway daemon over its Unix socket.
//
// Each call dials a fresh connection, sends one envelope, consumes any
// streamed events, and returns the terminal payload. This mirrors the
// daemon's one-exchange connection model.
type Client struct {
	socketPath string
	onEvent    func(protocol.Event)
}

// Option configures a client.
type Option func(*Client)

// WithSocketPath overrides the daemon socket path.
func WithSocketPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.socketPath = path
		}
	}
}

// WithEvents registers a callback for streamed progress and log events.
func WithEvents(fn func(protocol.Event)) Option {
	return func(c *Client) { c.onEvent = fn }
}

// Creates a client against the default daemon socket.
func New(opts ...Option) *Client {
	c := &Client{socketPath: paths.Socket()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sends one command and blocks until the terminal response arrives.
//
// Events streamed before the terminal response are delivered to the
// client's event callback. An error response from the daemon comes back as
// an error wrapping [ErrDaemon].
func (c *Client) do(ctx context.Context, cmd protocol.Command, payload any) (json.RawMessage, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotRunning, err)
	}
	defer conn.Close()

	// Closing the connection on cancellation unblocks the read below and
	// tells the daemon the client went away.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClient, err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrClient, ctx.Err())
			}
			return nil, fmt.Errorf("%w: connection closed before a response: %w", ErrClient, err)
		}

		env, body, err := protocol.Decode(line)
		if err != nil {
			return nil, err
		}

		switch env.Command {
		case protocol.CmdEvent:
			event, err := protocol.DecodePayload[protocol.Event](body)
			if err != nil {
				return nil, err
			}
			if c.onEvent != nil {
				c.onEvent(*event)
			}

		case protocol.CmdOK:
			return body, nil

		case protocol.CmdError:
			result, err := protocol.DecodePayload[protocol.ErrorResult](body)
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", ErrDaemon, result.Message)

		default:
			return nil, fmt.Errorf("%w: unexpected response %q", ErrClient, env.Command)
		}
	}
}

// Requests a build and returns where the image landed.
func (c *Client) Build(ctx context.Context, req *protocol.BuildRequest) (*protocol.BuildResult, error) {
	body, err := c.do(ctx, protocol.CmdBuild, req)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[protocol.BuildResult](body)
}

// Builds (unless given a prebuilt image) and launches a service, blocking
// until it exits. The result carries the service's exit code.
func (c *Client) Up(ctx context.Context, req *protocol.UpRequest) (*protocol.UpResult, error) {
	body, err := c.do(ctx, protocol.CmdUp, req)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[protocol.UpResult](body)
}

// Stops a running service.
func (c *Client) Down(ctx context.Context, service string, purge bool) error {
	_, err := c.do(ctx, protocol.CmdDown, &protocol.DownRequest{Service: service, Purge: purge})
	return err
}

// Probes a port for readiness.
func (c *Client) Probe(ctx context.Context, req *protocol.ProbeRequest) (*protocol.ProbeResult, error) {
	body, err := c.do(ctx, protocol.CmdProbe, req)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[protocol.ProbeResult](body)
}

// Queries daemon status.
func (c *Client) Status(ctx context.Context) (*protocol.StatusResult, error) {
	body, err := c.do(ctx, protocol.CmdStatus, nil)
	if err != nil {
		return nil, err
	}
	return protocol.DecodePayload[protocol.StatusResult](body)
}

// Asks the daemon to shut down.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.do(ctx, protocol.CmdShutdown, nil)
	return err
}

// Whether the daemon appears reachable.
func (c *Client) Running(ctx context.Context) bool {
	_, err := c.Status(ctx)
	return err == nil
}
