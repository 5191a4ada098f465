package manifest

import (
	"fmt"
	"strings"
)

// Identifies one kind of build stage.
type StageKind string

const (
	StageBase          StageKind = "base"           // Resolve and acquire the base image.
	StagePackages      StageKind = "packages"       // Install OS packages, prune caches.
	StageManifest      StageKind = "manifest"       // Copy the dependency manifest, install dependencies.
	StageSource        StageKind = "source"         // Copy the application source tree.
	StageRuntimeConfig StageKind = "runtime-config" // Set image env and working directory.
	StageExpose        StageKind = "expose"         // Declare the service port.
	StageEntrypoint    StageKind = "entrypoint"     // Set the launch command.
)

// One stage of a compiled plan. The populated fields depend on the kind.
type Stage struct {
	Kind StageKind

	Ref         string            // base: image reference to acquire.
	Packages    []string          // packages: OS packages to install.
	Manifest    string            // manifest: path in the build context.
	InstallName string            // manifest: name inside the image.
	Installer   string            // manifest: dependency install command.
	Source      string            // source: path in the build context ("." for the whole context).
	Env         map[string]string // runtime-config: image environment.
	Workdir     string            // runtime-config: image working directory.
	Port        int               // expose: declared TCP port.
	Command     []string          // entrypoint: launch command.
	StopSignal  string            // entrypoint: signal used to stop the service.
}

// An ordered stage sequence compiled from one profile of a definition.
//
// Stage order is fixed: rarely-changing stages (base, packages, manifest)
// strictly precede the source copy, so a rebuild with an unchanged manifest
// reuses every pre-source layer.
type Plan struct {
	Service string
	Profile ProfileName
	Workdir string
	Stages  []Stage
}

// Compiles the ordered stage plan for a profile.
func (r *Recipe) Plan(profile ProfileName) (*Plan, error) {
	p, err := r.Profile(profile)
	if err != nil {
		return nil, err
	}

	ref, err := r.BaseRef(profile)
	if err != nil {
		return nil, err
	}

	stages := []Stage{
		{Kind: StageBase, Ref: ref},
	}

	if len(p.Packages) > 0 {
		stages = append(stages, Stage{Kind: StagePackages, Packages: p.Packages})
	}

	installName := p.ManifestAs
	if installName == "" {
		installName = p.Manifest
	}
	stages = append(stages,
		Stage{
			Kind:        StageManifest,
			Manifest:    p.Manifest,
			InstallName: installName,
			Installer:   installCommand(installName),
		},
		Stage{Kind: StageSource, Source: p.Source},
		Stage{Kind: StageRuntimeConfig, Env: p.Env, Workdir: r.Service.Workdir},
		Stage{Kind: StageExpose, Port: r.Service.Port},
		Stage{Kind: StageEntrypoint, Command: p.Command, StopSignal: r.Service.StopSignal},
	)

	plan := &Plan{
		Service: r.Service.Name,
		Profile: profile,
		Workdir: r.Service.Workdir,
		Stages:  stages,
	}

	if err := plan.checkOrder(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Returns the stages that run strictly before the source copy. These are
// the cacheable prefix of the plan.
func (p *Plan) PreSource() []Stage {
	for i, s := range p.Stages {
		if s.Kind == StageSource {
			return p.Stages[:i]
		}
	}
	return p.Stages
}

// Verifies the layer-order invariant: base first, exactly one source stage,
// and no filesystem stage after it.
func (p *Plan) checkOrder() error {
	if len(p.Stages) == 0 || p.Stages[0].Kind != StageBase {
		return fmt.Errorf("%w: plan must begin with the base stage", ErrManifest)
	}

	sourceAt := -1
	for i, s := range p.Stages {
		switch s.Kind {
		case StageSource:
			if sourceAt != -1 {
				return fmt.Errorf("%w: multiple source stages", ErrManifest)
			}
			sourceAt = i
		case StagePackages, StageManifest:
			if sourceAt != -1 {
				return fmt.Errorf("%w: %s stage after source breaks layer caching", ErrManifest, s.Kind)
			}
		}
	}

	if sourceAt == -1 {
		return fmt.Errorf("%w: plan has no source stage", ErrManifest)
	}
	return nil
}

// Returns the shell command that installs the dependency manifest.
//
// The installer skips its local cache, trading install time for a smaller
// image.
func installCommand(installName string) string {
	return fmt.Sprintf("pip install --no-cache-dir -r %s", installName)
}

// Returns the shell command that installs OS packages and prunes the package
// manager's lists in the same layer.
func PackageCommand(packages []string) string {
	return fmt.Sprintf(
		"apt-get update && apt-get install -y --no-install-recommends %s && rm -rf /var/lib/apt/lists/*",
		strings.Join(packages, " "),
	)
}
