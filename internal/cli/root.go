package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"github.com/slipwayhq/slipway/internal"
	"github.com/slipwayhq/slipway/internal/client"
	"github.com/slipwayhq/slipway/internal/protocol"
)

// Represents the root command for the slipway CLI.
var RootCmd struct {
	Quiet   bool   `short:"q" help:"Suppress informational output."`
	Verbose bool   `short:"v" help:"Enable verbose output."`
	Debug   bool   `short:"d" help:"Enable debug output."`
	Socket  string `short:"s" help:"Override the default Unix socket path." placeholder:"PATH"`

	Daemon   DaemonCmd   `cmd:"" help:"Run the slipway daemon."`
	Init     InitCmd     `cmd:"" help:"Write a starter bootstrap definition."`
	Build    BuildCmd    `cmd:"" help:"Build a service image from its bootstrap definition."`
	Up       UpCmd       `cmd:"" help:"Build and launch a service, blocking until it exits."`
	Down     DownCmd     `cmd:"" help:"Stop a running service."`
	Probe    ProbeCmd    `cmd:"" help:"Probe a service port for readiness."`
	Status   StatusCmd   `cmd:"" help:"Show daemon status and recent attempts."`
	Shutdown ShutdownCmd `cmd:"" help:"Ask the daemon to shut down."`
	Cache    CacheCmd    `cmd:"" help:"Manage the build prefix cache."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Bootstraps services from a single definition into containerd-built images.\n\nThe daemon builds and supervises; every other command talks to it over a Unix socket."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	debug := RootCmd.Debug || internal.IsDebug()
	quiet := RootCmd.Quiet || internal.IsQuiet()
	verbose := RootCmd.Verbose || internal.IsVerbose()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else if quiet {
		level = slog.LevelWarn
	}

	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		AddSource:  verbose,
		NoColor:    !isatty(os.Stderr),
		TimeFormat: time.Kitchen,
	})

	slog.SetDefault(slog.New(handler))
}

// Whether the given file is an interactive terminal.
func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Creates a daemon client wired to the socket flag and the shared event
// printer.
func newClient() *client.Client {
	return client.New(
		client.WithSocketPath(RootCmd.Socket),
		client.WithEvents(printEvent),
	)
}

// Renders a streamed daemon event. Service output goes to stdout verbatim;
// progress events go through the logger.
func printEvent(e protocol.Event) {
	if e.Kind == "log" {
		fmt.Println(e.Message)
		return
	}
	slog.Info(e.Message, "stage", e.Kind)
}
