package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const validDefinition = `
schema = 1

[service]
name    = "graphiti-gemini"
port    = 8000
workdir = "/app"

[runtime]
image   = "python"
version = "3.11"

[profiles.full]
packages    = ["curl"]
manifest    = "requirements.simple.txt"
manifest_as = "requirements.txt"
source      = "app"
command     = ["python", "-m", "uvicorn", "app.main:app", "--host", "0.0.0.0", "--port", "8000"]

[profiles.slim]
variant  = "slim"
manifest = "requirements.txt"
source   = "."
command  = ["python", "main.py"]

[profiles.slim.env]
PYTHONPATH       = "/app"
PYTHONUNBUFFERED = "1"
`

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, Filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write definition: %v", err)
	}
	return dir
}

func TestDiscover(t *testing.T) {
	dir := writeDefinition(t, validDefinition)

	r, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	if r.Service.Name != "graphiti-gemini" {
		t.Errorf("service name = %q", r.Service.Name)
	}
	if r.Service.Port != 8000 {
		t.Errorf("port = %d, want 8000", r.Service.Port)
	}
	if len(r.Profiles) != 2 {
		t.Fatalf("len(profiles) = %d, want 2", len(r.Profiles))
	}

	slim := r.Profiles["slim"]
	if slim.Env["PYTHONUNBUFFERED"] != "1" {
		t.Errorf("slim env = %v, want PYTHONUNBUFFERED=1", slim.Env)
	}
	if slim.ManifestAs != "requirements.txt" {
		t.Errorf("slim install name = %q, want default to base name", slim.ManifestAs)
	}
}

func TestDiscoverMissing(t *testing.T) {
	_, err := Discover(t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := writeDefinition(t, "schema = [not toml")
	_, err := Discover(dir)
	if !errors.Is(err, ErrManifest) {
		t.Fatalf("err = %v, want ErrManifest", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Recipe {
		return &Recipe{
			Schema:  1,
			Service: Service{Name: "svc", Port: 8000},
			Runtime: Runtime{Image: "python", Version: "3.11"},
			Profiles: map[string]Profile{
				"full": {Manifest: "requirements.txt", Source: "app", Command: []string{"python", "main.py"}},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Recipe)
	}{
		{"wrong schema", func(r *Recipe) { r.Schema = 2 }},
		{"empty service name", func(r *Recipe) { r.Service.Name = "" }},
		{"uppercase service name", func(r *Recipe) { r.Service.Name = "Svc" }},
		{"trailing hyphen", func(r *Recipe) { r.Service.Name = "svc-" }},
		{"zero port", func(r *Recipe) { r.Service.Port = 0 }},
		{"port too large", func(r *Recipe) { r.Service.Port = 70000 }},
		{"missing image", func(r *Recipe) { r.Runtime.Image = "" }},
		{"missing version", func(r *Recipe) { r.Runtime.Version = "" }},
		{"bad digest", func(r *Recipe) { r.Runtime.Digest = "sha256:nope" }},
		{"no profiles", func(r *Recipe) { r.Profiles = nil }},
		{"unknown profile", func(r *Recipe) { r.Profiles["fat"] = r.Profiles["full"] }},
		{"missing manifest", func(r *Recipe) {
			p := r.Profiles["full"]
			p.Manifest = ""
			r.Profiles["full"] = p
		}},
		{"missing source", func(r *Recipe) {
			p := r.Profiles["full"]
			p.Source = ""
			r.Profiles["full"] = p
		}},
		{"missing command", func(r *Recipe) {
			p := r.Profiles["full"]
			p.Command = nil
			r.Profiles["full"] = p
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base()
			tt.mutate(r)
			if err := r.Validate(); !errors.Is(err, ErrManifest) {
				t.Fatalf("err = %v, want ErrManifest", err)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid recipe rejected: %v", err)
	}
}

func TestValidateDefaults(t *testing.T) {
	r := &Recipe{
		Schema:  1,
		Service: Service{Name: "svc", Port: 8000},
		Runtime: Runtime{Image: "python", Version: "3.11"},
		Profiles: map[string]Profile{
			"full": {Manifest: "deps/requirements.simple.txt", Source: "app", Command: []string{"python", "main.py"}},
		},
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if r.Service.Workdir != "/app" {
		t.Errorf("workdir = %q, want default /app", r.Service.Workdir)
	}
	if got := r.Profiles["full"].ManifestAs; got != "requirements.simple.txt" {
		t.Errorf("install name = %q, want manifest base name", got)
	}
}

func TestBaseRef(t *testing.T) {
	dir := writeDefinition(t, validDefinition)
	r, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	tests := []struct {
		name    string
		profile ProfileName
		digest  string
		want    string
	}{
		{"full floats at the tag", ProfileFull, "", "python:3.11"},
		{"slim appends the variant", ProfileSlim, "", "python:3.11-slim"},
		{
			"digest pin wins",
			ProfileFull,
			"sha256:50019ae4b3854bcc83969275fa4c448d3d595eee45e478a08e4c916aa7582732",
			"python@sha256:50019ae4b3854bcc83969275fa4c448d3d595eee45e478a08e4c916aa7582732",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r.Runtime.Digest = tt.digest
			got, err := r.BaseRef(tt.profile)
			if err != nil {
				t.Fatalf("base ref: %v", err)
			}
			if got != tt.want {
				t.Errorf("ref = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBaseRefUnknownProfile(t *testing.T) {
	dir := writeDefinition(t, validDefinition)
	r, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	r.Profiles = map[string]Profile{"full": r.Profiles["full"]}

	if _, err := r.BaseRef(ProfileSlim); !errors.Is(err, ErrManifest) {
		t.Fatalf("err = %v, want ErrManifest", err)
	}
}
