package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/slipwayhq/slipway/internal/cache"
	"github.com/slipwayhq/slipway/internal/manifest"
	"github.com/slipwayhq/slipway/internal/paths"
	"github.com/slipwayhq/slipway/internal/runtime"
)

// Default shell for in-container stage commands.
const defaultShell = "/bin/sh"

// The container substrate the engine drives. Satisfied by the containerd
// runtime via [Containerd] and by fakes in tests.
type Runtime interface {
	PullImage(ctx context.Context, ref string) (string, error)
	StartFromRef(ctx context.Context, ref, id string) (Container, error)
	StartFromArchive(ctx context.Context, path, id string) (Container, error)
}

// One build container.
type Container interface {
	Exec(ctx context.Context, shell, command string, env []string, workdir string) (*runtime.ExecResult, error)
	MkdirAll(ctx context.Context, path string) error
	CopyTo(ctx context.Context, r io.Reader, destDir string) error
	Stop(ctx context.Context) error
	Export(ctx context.Context, output string, cfg runtime.ImageConfig) error
	Destroy(ctx context.Context)
}

// Adapts the containerd runtime to the engine's [Runtime] interface.
func Containerd(rt *runtime.Runtime) Runtime {
	return containerdRuntime{rt: rt}
}

type containerdRuntime struct {
	rt *runtime.Runtime
}

func (c containerdRuntime) PullImage(ctx context.Context, ref string) (string, error) {
	return c.rt.PullImage(ctx, ref)
}

func (c containerdRuntime) StartFromRef(ctx context.Context, ref, id string) (Container, error) {
	return c.rt.StartFromRef(ctx, ref, id)
}

func (c containerdRuntime) StartFromArchive(ctx context.Context, path, id string) (Container, error) {
	return c.rt.StartFromArchive(ctx, path, id)
}

// Controls plan execution.
type Options struct {
	Plan    *manifest.Plan            // Compiled stage plan to execute.
	Context string                    // Build context directory, root for resolving copy sources.
	Output  string                    // Directory for the exported image.
	Cache   *cache.Store              // Prefix cache. Nil disables caching.
	Events  func(stage, message string) // Optional progress callback.
}

// Returned after successful plan execution.
type Result struct {
	Output string // Directory containing the exported image.
	Cached bool   // Whether the pre-source prefix came from cache.
}

// Executes a compiled plan against the container runtime.
//
// Stages run in plan order. The pre-source prefix (base acquisition, OS
// packages, dependency install) is served from the cache when an entry
// matches; otherwise it is built and stored. The source copy and the image
// configuration always run. No image is exported on failure.
func Run(ctx context.Context, rt Runtime, opts Options) (*Result, error) {
	slog.Info("executing plan",
		"service", opts.Plan.Service,
		"profile", opts.Plan.Profile,
		"output", opts.Output,
		"stages", len(opts.Plan.Stages),
	)

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	e := &engine{rt: rt, opts: opts}
	defer e.destroyContainers(ctx)

	return e.run(ctx)
}

// Holds shared state for one plan execution.
type engine struct {
	rt         Runtime
	opts       Options
	containers []Container // All containers started by this build, destroyed when it completes.
}

// Runs the plan end-to-end: materialize the pre-source prefix, copy the
// source, export the configured image.
func (e *engine) run(ctx context.Context) (*Result, error) {
	plan := e.opts.Plan

	ctr, cached, err := e.prefixContainer(ctx)
	if err != nil {
		return nil, err
	}

	if err := e.sourceStage(ctx, ctr); err != nil {
		return nil, err
	}

	e.event(string(manifest.StageEntrypoint), "exporting image")

	if err := ctr.Stop(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}
	if err := ctr.Export(ctx, e.opts.Output, e.imageConfig()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	slog.Info("plan executed", "service", plan.Service, "profile", plan.Profile, "cached", cached)
	return &Result{Output: e.opts.Output, Cached: cached}, nil
}

// Returns a container whose filesystem holds the plan's pre-source prefix.
//
// With caching enabled, a hit starts the container directly from the cached
// archive; a miss builds the prefix, stores it, and restarts from the stored
// archive so that the cached entry and the continuing build share identical
// content. With caching disabled the prefix stages run in place.
func (e *engine) prefixContainer(ctx context.Context) (Container, bool, error) {
	plan := e.opts.Plan
	pre := plan.PreSource()

	if e.opts.Cache == nil {
		ctr, err := e.buildPrefix(ctx, pre)
		return ctr, false, err
	}

	key, err := e.prefixKey(pre)
	if err != nil {
		return nil, false, err
	}

	if archive, ok := e.opts.Cache.Get(key); ok {
		slog.Info("prefix cache hit", "key", key)
		e.event("cache", "pre-source prefix restored from cache")

		ctr, err := e.startFromArchive(ctx, archive)
		return ctr, true, err
	}

	ctr, err := e.buildPrefix(ctx, pre)
	if err != nil {
		return nil, false, err
	}

	archive, err := e.storePrefix(ctx, ctr, key)
	if err != nil {
		return nil, false, err
	}

	next, err := e.startFromArchive(ctx, archive)
	return next, false, err
}

// Runs the pre-source stages in a fresh container from the base image.
func (e *engine) buildPrefix(ctx context.Context, pre []manifest.Stage) (Container, error) {
	var ctr Container

	for _, stage := range pre {
		switch stage.Kind {
		case manifest.StageBase:
			started, err := e.baseStage(ctx, stage)
			if err != nil {
				return nil, err
			}
			ctr = started

		case manifest.StagePackages:
			if err := e.packagesStage(ctx, ctr, stage); err != nil {
				return nil, err
			}

		case manifest.StageManifest:
			if err := e.manifestStage(ctx, ctr, stage); err != nil {
				return nil, err
			}
		}
	}

	return ctr, nil
}

// Acquires the base image and starts the build container.
func (e *engine) baseStage(ctx context.Context, stage manifest.Stage) (Container, error) {
	e.event(string(stage.Kind), fmt.Sprintf("acquiring base image %s", stage.Ref))

	ref, err := e.rt.PullImage(ctx, stage.Ref)
	if err != nil {
		return nil, fmt.Errorf("%w: base image %s: %w", ErrBuild, stage.Ref, err)
	}

	ctr, err := e.rt.StartFromRef(ctx, ref, e.containerID("build"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}
	e.containers = append(e.containers, ctr)

	if err := ctr.MkdirAll(ctx, e.opts.Plan.Workdir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	return ctr, nil
}

// Installs OS packages and prunes the package manager's lists in a single
// command, so the pruning lands in the same layer as the install.
func (e *engine) packagesStage(ctx context.Context, ctr Container, stage manifest.Stage) error {
	e.event(string(stage.Kind), fmt.Sprintf("installing OS packages %v", stage.Packages))

	return e.exec(ctx, ctr, manifest.PackageCommand(stage.Packages), "")
}

// Copies the dependency manifest into the image under its install name and
// runs the installer.
//
// A manifest missing from the build context fails here, at the copy, before
// the installer is ever invoked.
func (e *engine) manifestStage(ctx context.Context, ctr Container, stage manifest.Stage) error {
	e.event(string(stage.Kind), fmt.Sprintf("installing dependencies from %s", stage.Manifest))

	src, err := e.contextPath(stage.Manifest)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: dependency manifest %s: %w", ErrMissingInput, stage.Manifest, err)
	}

	workdir := e.opts.Plan.Workdir
	if err := copyFileTo(ctx, ctr, src, workdir, stage.InstallName); err != nil {
		return fmt.Errorf("%w: %w", ErrBuild, err)
	}

	return e.exec(ctx, ctr, stage.Installer, workdir)
}

// Copies the configured source path into the working directory.
//
// A named subtree keeps its base name under the workdir; "." sweeps the
// entire context in, stray files included.
func (e *engine) sourceStage(ctx context.Context, ctr Container) error {
	stage, err := e.findStage(manifest.StageSource)
	if err != nil {
		return err
	}

	e.event(string(stage.Kind), fmt.Sprintf("copying source %s", stage.Source))

	src, err := e.contextPath(stage.Source)
	if err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: source %s not found: %w", ErrMissingInput, stage.Source, err)
	}

	workdir := e.opts.Plan.Workdir
	if !info.IsDir() {
		return copyFileTo(ctx, ctr, src, workdir, stage.Source)
	}

	if stage.Source == "." {
		return copyDirContentsTo(ctx, ctr, src, workdir)
	}
	return copyDirTo(ctx, ctr, src, workdir)
}

// Composes the exported image's configuration from the post-source stages.
func (e *engine) imageConfig() runtime.ImageConfig {
	var cfg runtime.ImageConfig

	for _, stage := range e.opts.Plan.Stages {
		switch stage.Kind {
		case manifest.StageRuntimeConfig:
			cfg.Env = stage.Env
			cfg.WorkingDir = stage.Workdir
		case manifest.StageExpose:
			cfg.ExposedPorts = []string{fmt.Sprintf("%d/tcp", stage.Port)}
		case manifest.StageEntrypoint:
			cfg.Entrypoint = stage.Command
			cfg.StopSignal = stage.StopSignal
		}
	}

	return cfg
}

// Computes the cache key for the plan's pre-source prefix.
func (e *engine) prefixKey(pre []manifest.Stage) (string, error) {
	key, err := cache.PrefixKey(pre, func(path string) ([]byte, error) {
		src, err := e.contextPath(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("%w: dependency manifest %s: %w", ErrMissingInput, path, err)
		}
		return data, nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Exports the container's current filesystem into the cache and returns the
// stored archive path.
func (e *engine) storePrefix(ctx context.Context, ctr Container, key string) (string, error) {
	tmp, err := os.MkdirTemp("", "slipway-prefix-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	defer os.RemoveAll(tmp)

	if err := ctr.Stop(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuild, err)
	}
	if err := ctr.Export(ctx, tmp, runtime.ImageConfig{}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuild, err)
	}

	archive := filepath.Join(tmp, runtime.ExportFilename)
	meta := cache.Metadata{
		CreatedAt: time.Now(),
		BaseRef:   e.opts.Plan.Stages[0].Ref,
		Stages:    stageLabels(e.opts.Plan.PreSource()),
	}
	if err := e.opts.Cache.Put(key, archive, meta); err != nil {
		return "", err
	}

	stored, ok := e.opts.Cache.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: stored prefix %s not readable", ErrBuild, key)
	}
	return stored, nil
}

// Starts a continuation container from a prefix archive.
func (e *engine) startFromArchive(ctx context.Context, archive string) (Container, error) {
	ctr, err := e.rt.StartFromArchive(ctx, archive, e.containerID("source"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}
	e.containers = append(e.containers, ctr)
	return ctr, nil
}

// Runs a shell command in the container, failing on a non-zero exit.
func (e *engine) exec(ctx context.Context, ctr Container, command, workdir string) error {
	slog.Debug("run", "command", command, "workdir", workdir)

	result, err := ctr.Exec(ctx, defaultShell, command, nil, workdir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuild, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: exit code %d: %s", ErrCommandFailed, result.ExitCode, result.Stderr)
	}
	return nil
}

// Resolves a copy source inside the build context.
func (e *engine) contextPath(rel string) (string, error) {
	return resolveContextPath(e.opts.Context, rel)
}

// Returns the plan stage of the given kind.
func (e *engine) findStage(kind manifest.StageKind) (manifest.Stage, error) {
	for _, s := range e.opts.Plan.Stages {
		if s.Kind == kind {
			return s, nil
		}
	}
	return manifest.Stage{}, fmt.Errorf("%w: plan has no %s stage", ErrBuild, kind)
}

// Emits a progress event when a callback is configured.
func (e *engine) event(stage, message string) {
	if e.opts.Events != nil {
		e.opts.Events(stage, message)
	}
}

// Destroys all containers started by this build.
func (e *engine) destroyContainers(ctx context.Context) {
	for _, ctr := range e.containers {
		ctr.Destroy(ctx)
	}
}

// Returns a unique container ID for a build phase, scoped to the service and
// profile.
func (e *engine) containerID(phase string) string {
	return fmt.Sprintf("%s-%s-%s", e.opts.Plan.Service, e.opts.Plan.Profile, phase)
}

// Returns the stage kinds as strings, for cache metadata.
func stageLabels(stages []manifest.Stage) []string {
	labels := make([]string, len(stages))
	for i, s := range stages {
		labels[i] = string(s.Kind)
	}
	return labels
}
