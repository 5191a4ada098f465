package cli

import (
	"context"
	"log/slog"

	"github.com/slipwayhq/slipway/internal/protocol"
)

// Represents the 'slipway build' command.
type BuildCmd struct {
	Context string `arg:"" optional:"" default:"." help:"Build context: a local directory or a git URL."`
	Profile string `help:"Profile to build. Defaults to the service's current selection." enum:",full,slim" default:""`
	Output  string `help:"Directory for the exported image." placeholder:"DIR"`
	NoCache bool   `help:"Skip the build prefix cache."`
}

// Executes the build command.
func (c *BuildCmd) Run(ctx context.Context) error {
	result, err := newClient().Build(ctx, &protocol.BuildRequest{
		Context: c.Context,
		Profile: c.Profile,
		Output:  c.Output,
		NoCache: c.NoCache,
	})
	if err != nil {
		return err
	}

	slog.Info("build complete", "output", result.Output, "cached", result.Cached)
	return nil
}
