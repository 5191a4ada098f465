// Package protocol defines the wire format between the slipway CLI and
// daemon.
//
// Each connection carries a single exchange of newline-delimited JSON
// envelopes. The client sends one command envelope; the daemon replies with
// zero or more event envelopes followed by exactly one terminal ok or error
// envelope. Events relay build stage progress and service log output while
// a long-running command executes.
package protocol
