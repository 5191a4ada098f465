package cli

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/slipwayhq/slipway/internal/server"
)

// Represents the 'slipway daemon' command.
type DaemonCmd struct {
	Containerd string `help:"Containerd socket address." placeholder:"PATH"`
	Namespace  string `help:"Containerd namespace for images and containers." placeholder:"NAME"`
}

// Executes the daemon command.
//
// Starts the server on a Unix domain socket and blocks until a signal
// arrives or a client requests shutdown.
func (c *DaemonCmd) Run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		SocketPath:          RootCmd.Socket,
		ContainerdAddress:   c.Containerd,
		ContainerdNamespace: c.Namespace,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("slipway daemon is running")

	// Two ways out: a signal cancels ctx, or a shutdown command stops the
	// server from inside. Either one releases the other goroutine.
	stopCtx, stopped := context.WithCancel(ctx)

	g := new(errgroup.Group)
	g.Go(func() error {
		srv.Wait()
		stopped()
		return nil
	})
	g.Go(func() error {
		<-stopCtx.Done()
		slog.Info("shutting down")
		return srv.Stop()
	})

	return g.Wait()
}
