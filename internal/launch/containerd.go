package launch

import (
	"context"
	"io"

	"github.com/slipwayhq/slipway/internal/runtime"
)

// Adapts the containerd runtime to the launcher's [Runtime] interface.
func Containerd(rt *runtime.Runtime) Runtime {
	return containerdRuntime{rt: rt}
}

type containerdRuntime struct {
	rt *runtime.Runtime
}

func (c containerdRuntime) ImportImage(ctx context.Context, path, tag string) error {
	return c.rt.ImportImage(ctx, path, tag)
}

func (c containerdRuntime) LaunchContainer(ctx context.Context, tag, id string, env []string, stdout, stderr io.Writer) (Service, error) {
	return c.rt.LaunchContainer(ctx, tag, id, env, stdout, stderr)
}
