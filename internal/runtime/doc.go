// Package runtime manages containers backed by containerd.
//
// A [Runtime] connects to a containerd daemon and provides image
// acquisition and container creation. Base images are pulled from a
// registry when absent; OCI archives are imported, tagged with a
// deterministic content hash, unpacked, and used to create containers
// with overlayfs snapshots.
//
// Two container shapes exist. A build [Container] runs a long-lived idle
// task so that commands can be executed and files copied in and out as tar
// streams; its final filesystem state is committed and exported as a new
// OCI archive with the image configuration applied. A [Service] runs the
// image's own entrypoint as the task's primary process, with output
// streamed and the exit status delivered on a channel. Both share the host
// network namespace.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "slipway")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	ref, err := rt.PullImage(ctx, "python:3.11")
//	if err != nil {
//	    return err
//	}
//
//	ctr, err := rt.StartFromRef(ctx, ref, "build-1")
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(ctx)
//
//	result, err := ctr.Exec(ctx, "/bin/sh", "pip install -r requirements.txt", nil, "/app")
//	if err != nil {
//	    return err
//	}
//
//	err = ctr.Export(ctx, "dist", runtime.ImageConfig{
//	    Entrypoint: []string{"python", "main.py"},
//	})
package runtime
