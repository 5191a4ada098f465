// Parses flags and dispatches slipway subcommands.
//
// One binary carries both sides: 'slipway daemon' runs the server, and the
// remaining commands are thin clients that talk to it over the Unix socket.
//
// Global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//	-s, --socket    Unix socket path.
//
// Flags override build-time defaults set via linker flags. After parsing,
// the global logger is reconfigured to reflect the final level before the
// selected command runs.
package cli
