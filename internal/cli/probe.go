package cli

import (
	"context"
	"log/slog"

	"github.com/slipwayhq/slipway/internal/protocol"
)

// Represents the 'slipway probe' command.
type ProbeCmd struct {
	Port    int `arg:"" help:"TCP port to probe on the loopback interface."`
	Timeout int `help:"Probe timeout in seconds." default:"30"`
}

// Executes the probe command.
func (c *ProbeCmd) Run(ctx context.Context) error {
	result, err := newClient().Probe(ctx, &protocol.ProbeRequest{
		Port:    c.Port,
		Timeout: c.Timeout,
	})
	if err != nil {
		return err
	}

	slog.Info("service ready", "port", c.Port, "status", result.Status)
	return nil
}
