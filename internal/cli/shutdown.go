package cli

import (
	"context"
	"log/slog"
)

// Represents the 'slipway shutdown' command.
type ShutdownCmd struct{}

// Executes the shutdown command.
func (c *ShutdownCmd) Run(ctx context.Context) error {
	if err := newClient().Shutdown(ctx); err != nil {
		return err
	}

	slog.Info("daemon shutting down")
	return nil
}
