package launch

import (
	"fmt"
	"syscall"

	"github.com/moby/sys/signal"
)

// Resolves a recipe's stop signal name, defaulting to SIGTERM.
func StopSignal(name string) (syscall.Signal, error) {
	if name == "" {
		return syscall.SIGTERM, nil
	}
	sig, err := signal.ParseSignal(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	return sig, nil
}
