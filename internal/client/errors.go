package client

import "errors"

var (
	ErrClient     = errors.New("client error")
	ErrDaemon     = errors.New("daemon error")
	ErrNotRunning = errors.New("daemon not running")
)
