package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/slipwayhq/slipway/internal/protocol"
)

// Represents the 'slipway up' command.
type UpCmd struct {
	Context string   `arg:"" optional:"" default:"." help:"Build context: a local directory or a git URL."`
	Profile string   `help:"Profile to launch. Selecting slim is a one-way fallback." enum:",full,slim" default:""`
	Image   string   `help:"Launch a prebuilt image archive instead of building." placeholder:"PATH"`
	EnvFile string   `help:"Env file layered over the image environment." placeholder:"PATH"`
	Env     []string `short:"e" help:"KEY=VALUE overrides, highest precedence. Bare KEY forwards the daemon's variable."`
	NoWait  bool     `help:"Skip the readiness gate."`
	Timeout int      `help:"Readiness timeout in seconds." default:"30"`
}

// Executes the up command.
//
// Blocks for the service's whole run, relaying its output, and exits with
// the service's own exit code.
func (c *UpCmd) Run(ctx context.Context) error {
	result, err := newClient().Up(ctx, &protocol.UpRequest{
		Context: c.Context,
		Profile: c.Profile,
		Image:   c.Image,
		EnvFile: c.EnvFile,
		Env:     c.Env,
		NoWait:  c.NoWait,
		Timeout: c.Timeout,
	})
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		slog.Warn("service exited", "code", result.ExitCode)
		os.Exit(result.ExitCode)
	}
	return nil
}
