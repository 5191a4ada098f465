// Package launch runs built service images and supervises them to exit.
//
// A launch imports the exported image archive into the containerd
// namespace, starts a container on the image's own entrypoint with the
// merged environment, probes the declared port for readiness, and passes
// the service's exit code back through. Environment merging layers the
// image config under an optional env file under explicit overrides.
package launch
