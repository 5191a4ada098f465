package cli

import (
	"context"
	"log/slog"

	"github.com/slipwayhq/slipway/internal/cache"
	"github.com/slipwayhq/slipway/internal/paths"
)

// Represents the 'slipway cache' command group.
type CacheCmd struct {
	Prune CachePruneCmd `cmd:"" help:"Remove all cached build prefixes."`
}

// Represents the 'slipway cache prune' command.
type CachePruneCmd struct{}

// Executes the cache prune command.
//
// The cache is content-addressed and local, so pruning only costs the next
// build a rebuild of its pre-source prefix.
func (c *CachePruneCmd) Run(ctx context.Context) error {
	if err := cache.NewStore("").Prune(); err != nil {
		return err
	}

	slog.Info("cache pruned", "dir", paths.Cache())
	return nil
}
