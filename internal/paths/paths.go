package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	daemonName = "slipway"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/slipway or /run/user/<uid>/slipway
//	macOS:   ~/Library/Caches/slipway/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, daemonName)
	}
	return filepath.Join(xdg.CacheHome, daemonName, "run")
}

// Default path to the Unix domain socket for CLI-to-daemon communication.
//
//	Linux:   $XDG_RUNTIME_DIR/slipway/slipwayd.sock
//	macOS:   ~/Library/Caches/slipway/run/slipwayd.sock
func Socket() string {
	return filepath.Join(Runtime(), "slipwayd.sock")
}

// Default path to the PID file.
//
//	Linux:   $XDG_RUNTIME_DIR/slipway/slipwayd.pid
//	macOS:   ~/Library/Caches/slipway/run/slipwayd.pid
func PIDFile() string {
	return filepath.Join(Runtime(), "slipwayd.pid")
}

// Path to the layer prefix cache directory.
//
//	Linux:   $XDG_CACHE_HOME/slipway/prefixes
//	macOS:   ~/Library/Caches/slipway/prefixes
func Cache() string {
	return filepath.Join(xdg.CacheHome, daemonName, "prefixes")
}

// Path to the state directory holding deployment attempt records.
//
//	Linux:   $XDG_STATE_HOME/slipway
//	macOS:   ~/Library/Application Support/slipway/state
func State() string {
	return filepath.Join(xdg.StateHome, daemonName)
}
