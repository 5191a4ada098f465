package cli

import (
	"context"
	"log/slog"
)

// Represents the 'slipway down' command.
type DownCmd struct {
	Service string `arg:"" help:"Service name from the bootstrap definition."`
	Purge   bool   `help:"Also remove the service's built images."`
}

// Executes the down command.
func (c *DownCmd) Run(ctx context.Context) error {
	if err := newClient().Down(ctx, c.Service, c.Purge); err != nil {
		return err
	}

	slog.Info("service stopped", "service", c.Service)
	return nil
}
