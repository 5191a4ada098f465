// Package build executes compiled stage plans against container runtimes.
//
// A plan's pre-source prefix (base image acquisition, OS package install,
// dependency install) runs in a build container started from the base
// image, then is exported and stored in the prefix cache. Later builds with
// an unchanged prefix start their source-copy container directly from the
// cached archive, skipping every pre-source stage. The source copy and the
// image configuration stages always run, and the final image is exported as
// an OCI archive to the output directory.
//
// Container operations are delegated through the [Runtime] and [Container]
// interfaces, satisfied by the containerd runtime via [Containerd]. Copy
// sources resolve inside the build context only; a context may be a local
// directory or a git URL cloned for the duration of the build.
//
// Example usage:
//
//	plan, err := recipe.Plan(manifest.ProfileFull)
//	if err != nil {
//	    return err
//	}
//
//	result, err := build.Run(ctx, build.Containerd(rt), build.Options{
//	    Plan:    plan,
//	    Context: ".",
//	    Output:  "dist",
//	    Cache:   cache.NewStore(""),
//	})
//	if err != nil {
//	    return err
//	}
package build
