package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/opencontainers/go-digest"
)

const (

	// Filename of the bootstrap definition, discovered at the context root.
	Filename = "Bootstrapfile"

	// The only schema version this build understands.
	schemaVersion = 1

	// Working directory applied when the definition does not set one.
	defaultWorkdir = "/app"
)

// DNS-label-safe service names: lowercase alphanumerics and inner hyphens.
var serviceNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// A bootstrap definition: one service, one base runtime, and the set of
// profiles that can build and launch it.
type Recipe struct {
	Schema   int                     `toml:"schema"`
	Service  Service                 `toml:"service"`
	Runtime  Runtime                 `toml:"runtime"`
	Profiles map[string]Profile      `toml:"profiles"`
}

// Identifies the deployable unit and its declared network surface.
type Service struct {
	Name       string `toml:"name"`
	Port       int    `toml:"port"`
	Workdir    string `toml:"workdir"`
	StopSignal string `toml:"stop_signal"`
}

// Selects the base runtime image. An optional digest pins the base to
// immutable content; without it the tag floats at the patch level.
type Runtime struct {
	Image   string `toml:"image"`
	Version string `toml:"version"`
	Digest  string `toml:"digest"`
}

// One build path through the definition. A profile owns the optional stages:
// OS packages (full only), the base variant (slim only), and runtime env.
type Profile struct {
	Variant    string            `toml:"variant"`
	Packages   []string          `toml:"packages"`
	Manifest   string            `toml:"manifest"`
	ManifestAs string            `toml:"manifest_as"`
	Source     string            `toml:"source"`
	Env        map[string]string `toml:"env"`
	Command    []string          `toml:"command"`
}

// Reads and validates a bootstrap definition from the given path.
//
// A missing file is reported as [ErrNotFound] so callers can distinguish it
// from a malformed definition.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}

	var r Recipe
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return &r, nil
}

// Locates and loads the bootstrap definition at the root of a context
// directory.
func Discover(dir string) (*Recipe, error) {
	return Load(filepath.Join(dir, Filename))
}

// Checks the definition against its structural invariants and applies
// defaults.
//
// The working directory defaults to /app, and each profile's install name
// defaults to the manifest's base name.
func (r *Recipe) Validate() error {
	if r.Schema != schemaVersion {
		return fmt.Errorf("%w: unsupported schema version %d", ErrManifest, r.Schema)
	}

	if !serviceNamePattern.MatchString(r.Service.Name) {
		return fmt.Errorf("%w: service name %q is not a valid DNS label", ErrManifest, r.Service.Name)
	}
	if r.Service.Port <= 0 || r.Service.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrManifest, r.Service.Port)
	}
	if r.Service.Workdir == "" {
		r.Service.Workdir = defaultWorkdir
	}

	if r.Runtime.Image == "" || r.Runtime.Version == "" {
		return fmt.Errorf("%w: runtime image and version are required", ErrManifest)
	}
	if r.Runtime.Digest != "" {
		if _, err := digest.Parse(r.Runtime.Digest); err != nil {
			return fmt.Errorf("%w: invalid digest: %w", ErrManifest, err)
		}
	}

	if len(r.Profiles) == 0 {
		return fmt.Errorf("%w: at least one profile is required", ErrManifest)
	}

	for name, p := range r.Profiles {
		if _, err := ParseProfile(name); err != nil {
			return err
		}
		if err := validateProfile(name, p); err != nil {
			return err
		}
		if p.ManifestAs == "" {
			p.ManifestAs = filepath.Base(p.Manifest)
			r.Profiles[name] = p
		}
	}

	return nil
}

// Checks a single profile's invariants.
func validateProfile(name string, p Profile) error {
	if p.Manifest == "" {
		return fmt.Errorf("%w: profile %q: dependency manifest is required", ErrManifest, name)
	}
	if p.Source == "" {
		return fmt.Errorf("%w: profile %q: source is required", ErrManifest, name)
	}
	if len(p.Command) == 0 {
		return fmt.Errorf("%w: profile %q: launch command is required", ErrManifest, name)
	}
	for k := range p.Env {
		if k == "" {
			return fmt.Errorf("%w: profile %q: empty env key", ErrManifest, name)
		}
	}
	return nil
}

// Returns the base image reference for a profile.
//
// A digest pin takes precedence and yields an immutable reference. Otherwise
// the tag is image:version, with the profile's variant appended when set
// (e.g., python:3.11-slim).
func (r *Recipe) BaseRef(profile ProfileName) (string, error) {
	p, err := r.Profile(profile)
	if err != nil {
		return "", err
	}

	if r.Runtime.Digest != "" {
		return fmt.Sprintf("%s@%s", r.Runtime.Image, r.Runtime.Digest), nil
	}

	tag := r.Runtime.Version
	if p.Variant != "" {
		tag += "-" + p.Variant
	}
	return fmt.Sprintf("%s:%s", r.Runtime.Image, tag), nil
}

// Returns the named profile.
func (r *Recipe) Profile(profile ProfileName) (Profile, error) {
	p, ok := r.Profiles[string(profile)]
	if !ok {
		return Profile{}, fmt.Errorf("%w: profile %q not declared", ErrManifest, profile)
	}
	return p, nil
}
