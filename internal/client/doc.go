// Package client implements the CLI side of the daemon protocol.
//
// A client dials the daemon's Unix socket, sends a single newline-delimited
// JSON envelope, relays any streamed event envelopes to its callback, and
// returns the terminal payload. Typed helpers cover each daemon command.
package client
