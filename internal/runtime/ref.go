package runtime

import (
	"github.com/distribution/reference"
)

// Normalizes an image reference to its fully qualified form.
//
// Short references gain the default registry and library namespace
// ("python:3.11" becomes "docker.io/library/python:3.11"); bare names gain
// the "latest" tag. Digest references pass through with their digest intact.
func NormalizeRef(ref string) (string, error) {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "", err
	}
	return reference.TagNameOnly(named).String(), nil
}
