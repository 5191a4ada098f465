package launch

import "errors"

var (
	ErrLaunch   = errors.New("launch failed")
	ErrNotReady = errors.New("service not ready")
)
