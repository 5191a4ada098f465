package dockerfile

import "errors"

var (
	ErrParse  = errors.New("dockerfile parse failed")
	ErrImport = errors.New("dockerfile import failed")
)
