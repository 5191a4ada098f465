package dockerfile

import (
	"fmt"

	"github.com/slipwayhq/slipway/internal/manifest"
)

// Assembles a bootstrap definition from imported Dockerfiles keyed by the
// profile each one should become.
//
// All imports must agree on the base image and version; variants are what
// distinguish profiles. The service port and working directory come from
// the full profile's Dockerfile when present, otherwise from any import
// that declares them.
func BuildRecipe(service string, imports map[manifest.ProfileName]*Import) (*manifest.Recipe, error) {
	if len(imports) == 0 {
		return nil, fmt.Errorf("%w: no Dockerfiles to import", ErrImport)
	}

	r := &manifest.Recipe{
		Schema:   1,
		Service:  manifest.Service{Name: service},
		Profiles: map[string]manifest.Profile{},
	}

	for _, name := range []manifest.ProfileName{manifest.ProfileFull, manifest.ProfileSlim} {
		imp, ok := imports[name]
		if !ok {
			continue
		}

		if r.Runtime.Image == "" {
			r.Runtime = imp.Runtime
		} else if imp.Runtime.Image != r.Runtime.Image || imp.Runtime.Version != r.Runtime.Version {
			return nil, fmt.Errorf("%w: profile %s uses %s:%s, expected %s:%s",
				ErrImport, name, imp.Runtime.Image, imp.Runtime.Version, r.Runtime.Image, r.Runtime.Version)
		}

		if r.Service.Port == 0 {
			r.Service.Port = imp.Port
		}
		if r.Service.Workdir == "" {
			r.Service.Workdir = imp.Workdir
		}
		if r.Service.StopSignal == "" {
			r.Service.StopSignal = imp.StopSignal
		}

		profile := imp.Profile
		profile.Variant = imp.Variant
		r.Profiles[string(name)] = profile
	}

	if r.Service.Port == 0 {
		return nil, fmt.Errorf("%w: no Dockerfile exposes a port; set service.port by hand", ErrImport)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
