package launch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"time"

	containerd "github.com/containerd/containerd/v2/client"
)

// How long a signaled service gets to exit before it is killed.
const defaultStopGrace = 10 * time.Second

// The runtime surface launching needs. Satisfied by the containerd runtime
// via [Containerd] and by fakes in tests.
type Runtime interface {
	ImportImage(ctx context.Context, path, tag string) error
	LaunchContainer(ctx context.Context, tag, id string, env []string, stdout, stderr io.Writer) (Service, error)
}

// A running service container.
type Service interface {
	Exit() <-chan containerd.ExitStatus
	Signal(ctx context.Context, sig syscall.Signal) error
	Destroy(ctx context.Context)
}

// Controls one service launch.
type Options struct {
	Archive      string        // Exported image archive to import.
	Tag          string        // Image tag the archive is imported under.
	Service      string        // Container ID, which is the service name.
	Port         int           // Declared port, probed for readiness.
	Env          []string      // Merged KEY=VALUE environment for the task.
	StopSignal   string        // Signal name for graceful stop. Empty means SIGTERM.
	NoWait       bool          // Skip the readiness probe.
	ProbeTimeout time.Duration // Readiness budget. Zero means the default.
	StopGrace    time.Duration // Grace between stop signal and kill. Zero means the default.

	Stdout, Stderr io.Writer                  // Service output streams.
	Events         func(kind, message string) // Optional progress callback.
}

// Imports the built image, launches it, and supervises it until exit.
//
// The service's exit code is passed through as the return value; the error
// is reserved for launch and supervision failures. Unless NoWait is set,
// the declared port is probed and a probe failure stops the service.
// Cancelling the context stops the service gracefully: the stop signal
// first, SIGKILL after the grace period.
func Run(ctx context.Context, rt Runtime, opts Options) (int, error) {
	sig, err := StopSignal(opts.StopSignal)
	if err != nil {
		return 0, err
	}

	if err := rt.ImportImage(ctx, opts.Archive, opts.Tag); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	event(opts, "import", fmt.Sprintf("image imported as %s", opts.Tag))

	svc, err := rt.LaunchContainer(ctx, opts.Tag, opts.Service, opts.Env, opts.Stdout, opts.Stderr)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	event(opts, "start", fmt.Sprintf("service %s started", opts.Service))

	// Cleanup must survive the cancellation that triggers it.
	cleanup := context.WithoutCancel(ctx)
	defer svc.Destroy(cleanup)

	var probe chan probeResult
	if !opts.NoWait {
		probe = make(chan probeResult, 1)
		go func() {
			status, err := Probe(ctx, opts.Port, opts.ProbeTimeout)
			probe <- probeResult{status: status, err: err}
		}()
	}

	for {
		select {
		case status := <-svc.Exit():
			return exitCode(opts, status)

		case res := <-probe:
			if res.err != nil {
				stop(cleanup, svc, sig, opts.StopGrace)
				return 0, res.err
			}
			event(opts, "ready", fmt.Sprintf("service ready (%s)", res.status))
			probe = nil

		case <-ctx.Done():
			event(opts, "stop", "stopping service")
			status, ok := stop(cleanup, svc, sig, opts.StopGrace)
			if !ok {
				return 0, fmt.Errorf("%w: %w", ErrLaunch, ctx.Err())
			}
			return exitCode(opts, status)
		}
	}
}

type probeResult struct {
	status string
	err    error
}

// Resolves a task exit status into its code, logging abnormal endings.
func exitCode(opts Options, status containerd.ExitStatus) (int, error) {
	code, _, err := status.Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	slog.Info("service exited", "service", opts.Service, "code", code)
	event(opts, "exit", fmt.Sprintf("service exited with code %d", code))
	return int(code), nil
}

// Stops the service: the configured signal first, SIGKILL once the grace
// period runs out. Returns the exit status when one was collected.
func stop(ctx context.Context, svc Service, sig syscall.Signal, grace time.Duration) (containerd.ExitStatus, bool) {
	if grace <= 0 {
		grace = defaultStopGrace
	}

	if err := svc.Signal(ctx, sig); err != nil {
		slog.Warn("stop signal failed", "signal", sig, "error", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case status := <-svc.Exit():
		return status, true
	case <-timer.C:
	}

	slog.Warn("service ignored stop signal, killing", "signal", sig)
	if err := svc.Signal(ctx, syscall.SIGKILL); err != nil {
		slog.Warn("kill failed", "error", err)
		return containerd.ExitStatus{}, false
	}

	timer.Reset(grace)
	select {
	case status := <-svc.Exit():
		return status, true
	case <-timer.C:
		return containerd.ExitStatus{}, false
	}
}

func event(opts Options, kind, message string) {
	if opts.Events != nil {
		opts.Events(kind, message)
	}
}
