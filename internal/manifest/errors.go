package manifest

import "errors"

var (
	ErrManifest  = errors.New("invalid bootstrap definition")
	ErrNotFound  = errors.New("bootstrap definition not found")
	ErrSelection = errors.New("invalid profile selection")
)
