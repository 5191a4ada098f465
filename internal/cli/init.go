package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/slipwayhq/slipway/internal/dockerfile"
	"github.com/slipwayhq/slipway/internal/manifest"
	"github.com/slipwayhq/slipway/internal/paths"
)

// Starter definition written by a plain init.
const starterRecipe = `schema = 1

[service]
name = %q
port = %d

[runtime]
image = "python"
version = "3.11"

[profiles.full]
packages = ["curl"]
manifest = "requirements.txt"
source = "app"
command = ["python", "-m", "uvicorn", "app.main:app", "--host", "0.0.0.0", "--port", "%d"]

[profiles.slim]
variant = "slim"
manifest = "requirements.txt"
source = "."
command = ["python", "main.py"]

[profiles.slim.env]
PYTHONPATH = "/app"
PYTHONUNBUFFERED = "1"
`

// Represents the 'slipway init' command.
type InitCmd struct {
	Dir            string   `arg:"" optional:"" default:"." help:"Directory to initialize."`
	Name           string   `help:"Service name. Defaults to the directory name." placeholder:"NAME"`
	Port           int      `help:"Service port." default:"8000"`
	FromDockerfile []string `help:"Import existing Dockerfiles instead of writing the starter. A -slim base tag becomes the slim profile." placeholder:"PATH"`
	Force          bool     `help:"Overwrite an existing definition."`
}

// Executes the init command.
//
// Writes a bootstrap definition into the target directory: one imported
// from Dockerfiles when any are given or detected, otherwise the starter
// template.
func (c *InitCmd) Run(ctx context.Context) error {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return err
	}

	target := filepath.Join(dir, manifest.Filename)
	if _, err := os.Stat(target); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", target)
	}

	name := c.Name
	if name == "" {
		name = filepath.Base(dir)
	}

	files := c.FromDockerfile
	if len(files) == 0 {
		files = detectDockerfiles(dir)
	}

	var data []byte
	if len(files) > 0 {
		data, err = importDockerfiles(name, files)
	} else {
		data = []byte(fmt.Sprintf(starterRecipe, name, c.Port, c.Port))
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(target, data, paths.DefaultFileMode); err != nil {
		return err
	}

	slog.Info("definition written", "path", target)
	return nil
}

// Returns any conventionally named Dockerfiles in dir, in import order.
func detectDockerfiles(dir string) []string {
	var found []string
	for _, name := range []string{"Dockerfile", "Dockerfile.simple"} {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			slog.Info("importing detected Dockerfile", "path", path)
			found = append(found, path)
		}
	}
	return found
}

// Converts the given Dockerfiles into one definition. Each file's base tag
// variant decides which profile it becomes: a -slim (or otherwise suffixed)
// tag is the slim profile, a plain tag the full one.
func importDockerfiles(name string, files []string) ([]byte, error) {
	imports := map[manifest.ProfileName]*dockerfile.Import{}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		imp, err := dockerfile.Parse(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, warning := range imp.Warnings {
			slog.Warn("not imported", "file", path, "detail", warning.String())
		}

		profile := manifest.ProfileFull
		if imp.Variant != "" {
			profile = manifest.ProfileSlim
		}
		if _, taken := imports[profile]; taken {
			return nil, fmt.Errorf("two Dockerfiles map to the %s profile", profile)
		}
		imports[profile] = imp
	}

	recipe, err := dockerfile.BuildRecipe(name, imports)
	if err != nil {
		return nil, err
	}

	return encodeRecipe(recipe)
}

// Renders a definition as TOML.
func encodeRecipe(r *manifest.Recipe) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
