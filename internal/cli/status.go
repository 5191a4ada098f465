package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/slipwayhq/slipway/internal/client"
)

// Represents the 'slipway status' command.
type StatusCmd struct{}

// Executes the status command.
func (c *StatusCmd) Run(ctx context.Context) error {
	status, err := newClient().Status(ctx)
	if errors.Is(err, client.ErrNotRunning) {
		fmt.Println("daemon: not running")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println("daemon:  running")
	fmt.Printf("version: %s\n", status.Version)
	fmt.Printf("pid:     %d\n", status.Pid)
	fmt.Printf("uptime:  %s\n", status.Uptime)
	fmt.Printf("builds:  %d\n", status.Builds)

	if len(status.Attempts) > 0 {
		fmt.Println("\nrecent attempts:")
		for _, a := range status.Attempts {
			line := fmt.Sprintf("  %s  %s/%s %s %s", a.FinishedAt, a.Service, a.Profile, a.Phase, a.Outcome)
			if a.Detail != "" {
				line += ": " + a.Detail
			}
			fmt.Println(line)
		}
	}
	return nil
}
