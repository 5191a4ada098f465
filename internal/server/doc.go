// Package server implements the slipway daemon.
//
// The daemon listens on a Unix domain socket for JSON-encoded commands
// from the slipway CLI. Each connection carries a single request-response
// exchange: the client sends a newline-delimited JSON envelope, the
// server dispatches the command, and writes the result back before
// closing the connection. Long commands stream event envelopes first; an
// up command keeps the connection open for the service's whole run and
// relays its output.
//
// Build commands are delegated to the build package, launches to the
// launch package, and both use the runtime package for container
// operations against containerd. The daemon also keeps the durable bits
// of deployment state: the per-service profile selection and a bounded
// history of build and launch attempts.
//
// Example usage:
//
//	srv, err := server.New(server.Config{
//	    ContainerdAddress:   "/run/containerd/containerd.sock",
//	    ContainerdNamespace: "slipway",
//	})
//	if err != nil {
//	    return err
//	}
//
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//
//	srv.Wait()
package server
