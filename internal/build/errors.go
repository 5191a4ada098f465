package build

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrCommandFailed       = errors.New("command failed")
	ErrMissingInput        = errors.New("missing input")
	ErrContext             = errors.New("invalid build context")
	ErrFileSystemOperation = errors.New("file system operation failed")
)
