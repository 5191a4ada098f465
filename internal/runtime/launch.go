package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// A launched service container.
//
// Unlike a build container, a service container's task runs the image's own
// entrypoint as its primary process: the process is the container, and its
// exit ends the task. Stdout and stderr are streamed to the writers supplied
// at launch.
type Service struct {
	ctr  containerd.Container
	task containerd.Task
	exit <-chan containerd.ExitStatus
	id   string
}

// Starts a service container from an image tag already present in the
// namespace.
//
// The task's process is the image entrypoint, with env entries overlaid on
// the image config's environment. The container shares the host network
// namespace, so the service's port binds directly on the host. Any stale
// container with the same ID is removed first.
func (rt *Runtime) LaunchContainer(ctx context.Context, tag, id string, env []string, stdout, stderr io.Writer) (*Service, error) {
	handle := &Container{client: rt.client, id: id, platform: defaultPlatform()}
	handle.remove(ctx)

	image, err := rt.resolveImage(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	opts := []oci.SpecOpts{
		oci.WithDefaultSpecForPlatform(defaultPlatform()),
		oci.WithImageConfig(image),
		oci.WithHostNamespace(specs.NetworkNamespace),
		oci.WithHostResolvconf,
	}
	if len(env) > 0 {
		opts = append(opts, oci.WithEnv(env))
	}

	ctr, err := rt.client.NewContainer(ctx, id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	task, err := ctr.NewTask(ctx, cio.NewCreator(cio.WithStreams(nil, stdout, stderr)))
	if err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	// Register the wait before starting so the exit status can never be
	// missed.
	exit, err := task.Wait(ctx)
	if err != nil {
		task.Delete(ctx)
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w", ErrRuntime, err)
	}

	slog.Info("service started", "id", id, "image", tag, "pid", task.Pid())

	return &Service{ctr: ctr, task: task, exit: exit, id: id}, nil
}

// Returns the channel that delivers the primary process's exit status.
func (s *Service) Exit() <-chan containerd.ExitStatus {
	return s.exit
}

// Sends a signal to the service's primary process.
func (s *Service) Signal(ctx context.Context, sig syscall.Signal) error {
	if err := s.task.Kill(ctx, sig); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("%w: %w", ErrRuntime, err)
	}
	return nil
}

// Removes the service container and its resources.
//
// The task is deleted (killing the process if still running) and the
// container is removed along with its snapshot.
func (s *Service) Destroy(ctx context.Context) {
	if _, err := s.task.Delete(ctx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to delete service task", "id", s.id, "error", err)
	}
	if err := s.ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to delete service container", "id", s.id, "error", err)
	}
}
