package dockerfile

import (
	"errors"
	"strings"
	"testing"

	"github.com/slipwayhq/slipway/internal/manifest"
)

const primaryDockerfile = `FROM python:3.11

RUN apt-get update && apt-get install -y curl && rm -rf /var/lib/apt/lists/*

WORKDIR /app

COPY requirements.simple.txt requirements.txt
RUN pip install --no-cache-dir -r requirements.txt

COPY app ./app

EXPOSE 8000

CMD ["python", "-m", "uvicorn", "app.main:app", "--host", "0.0.0.0", "--port", "8000"]
`

const fallbackDockerfile = `FROM python:3.11-slim

WORKDIR /app

COPY . .
RUN pip install --no-cache-dir -r requirements.txt

ENV PYTHONPATH=/app
ENV PYTHONUNBUFFERED=1

CMD ["python", "main.py"]
`

func TestParsePrimary(t *testing.T) {
	imp, err := Parse([]byte(primaryDockerfile))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if imp.Runtime.Image != "python" || imp.Runtime.Version != "3.11" {
		t.Errorf("runtime = %+v, want python 3.11", imp.Runtime)
	}
	if imp.Variant != "" {
		t.Errorf("variant = %q, want none", imp.Variant)
	}
	if len(imp.Profile.Packages) != 1 || imp.Profile.Packages[0] != "curl" {
		t.Errorf("packages = %v, want [curl]", imp.Profile.Packages)
	}
	if imp.Profile.Manifest != "requirements.simple.txt" {
		t.Errorf("manifest = %q", imp.Profile.Manifest)
	}
	if imp.Profile.ManifestAs != "requirements.txt" {
		t.Errorf("manifest_as = %q", imp.Profile.ManifestAs)
	}
	if imp.Profile.Source != "app" {
		t.Errorf("source = %q, want app", imp.Profile.Source)
	}
	if imp.Port != 8000 {
		t.Errorf("port = %d, want 8000", imp.Port)
	}
	if imp.Workdir != "/app" {
		t.Errorf("workdir = %q", imp.Workdir)
	}
	want := []string{"python", "-m", "uvicorn", "app.main:app", "--host", "0.0.0.0", "--port", "8000"}
	if len(imp.Profile.Command) != len(want) {
		t.Fatalf("command = %v, want %v", imp.Profile.Command, want)
	}
	for i := range want {
		if imp.Profile.Command[i] != want[i] {
			t.Errorf("command[%d] = %q, want %q", i, imp.Profile.Command[i], want[i])
		}
	}
	if len(imp.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", imp.Warnings)
	}
}

func TestParseFallback(t *testing.T) {
	imp, err := Parse([]byte(fallbackDockerfile))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if imp.Runtime.Version != "3.11" || imp.Variant != "slim" {
		t.Errorf("runtime = %+v variant = %q, want 3.11 slim", imp.Runtime, imp.Variant)
	}
	if imp.Profile.Source != "." {
		t.Errorf("source = %q, want whole-context copy", imp.Profile.Source)
	}
	if imp.Profile.Manifest != "requirements.txt" || imp.Profile.ManifestAs != "requirements.txt" {
		t.Errorf("manifest = %q as %q, want requirements.txt from the context copy",
			imp.Profile.Manifest, imp.Profile.ManifestAs)
	}
	if imp.Profile.Env["PYTHONPATH"] != "/app" || imp.Profile.Env["PYTHONUNBUFFERED"] != "1" {
		t.Errorf("env = %v", imp.Profile.Env)
	}
	if len(imp.Profile.Packages) != 0 {
		t.Errorf("packages = %v, want none", imp.Profile.Packages)
	}
	if imp.Port != 0 {
		t.Errorf("port = %d, want none declared", imp.Port)
	}
}

func TestParseDigestPin(t *testing.T) {
	content := "FROM python:3.11@sha256:cefd1c9e490a8e08f2b52e2dca124e29c75e24b7cfe9e4b15e406e0a4b2e87fe\nEXPOSE 8000\n"
	imp, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasPrefix(imp.Runtime.Digest, "sha256:") {
		t.Errorf("digest = %q, want sha256 pin", imp.Runtime.Digest)
	}
	if imp.Runtime.Version != "3.11" {
		t.Errorf("version = %q", imp.Runtime.Version)
	}
}

func TestParseShellFormCommand(t *testing.T) {
	imp, err := Parse([]byte("FROM python:3.11\nCMD python main.py\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"/bin/sh", "-c", "python main.py"}
	if len(imp.Profile.Command) != 3 || imp.Profile.Command[2] != want[2] {
		t.Errorf("command = %v, want %v", imp.Profile.Command, want)
	}
}

func TestParseWarnsOnUnmappable(t *testing.T) {
	content := `FROM python:3.11
USER nobody
HEALTHCHECK CMD curl -f http://localhost:8000/health
RUN echo hello
`
	imp, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	instructions := map[string]bool{}
	for _, w := range imp.Warnings {
		instructions[w.Instruction] = true
	}
	for _, want := range []string{"USER", "HEALTHCHECK", "RUN"} {
		if !instructions[want] {
			t.Errorf("no warning for %s: %v", want, imp.Warnings)
		}
	}
}

func TestParseEnvLegacyForm(t *testing.T) {
	imp, err := Parse([]byte("FROM python:3.11\nENV PYTHONPATH /app\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if imp.Profile.Env["PYTHONPATH"] != "/app" {
		t.Errorf("env = %v", imp.Profile.Env)
	}
}

func TestBuildRecipe(t *testing.T) {
	full, err := Parse([]byte(primaryDockerfile))
	if err != nil {
		t.Fatalf("parse primary: %v", err)
	}
	slim, err := Parse([]byte(fallbackDockerfile))
	if err != nil {
		t.Fatalf("parse fallback: %v", err)
	}

	r, err := BuildRecipe("graphiti-gemini", map[manifest.ProfileName]*Import{
		manifest.ProfileFull: full,
		manifest.ProfileSlim: slim,
	})
	if err != nil {
		t.Fatalf("build recipe: %v", err)
	}

	if r.Service.Port != 8000 {
		t.Errorf("port = %d, want 8000 from the full profile", r.Service.Port)
	}
	if r.Runtime.Image != "python" || r.Runtime.Version != "3.11" {
		t.Errorf("runtime = %+v", r.Runtime)
	}
	if r.Profiles["slim"].Variant != "slim" {
		t.Errorf("slim variant = %q", r.Profiles["slim"].Variant)
	}
	if r.Profiles["full"].Variant != "" {
		t.Errorf("full variant = %q, want none", r.Profiles["full"].Variant)
	}

	plan, err := r.Plan(manifest.ProfileSlim)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if got := plan.Stages[0].Ref; got != "python:3.11-slim" {
		t.Errorf("slim base ref = %q, want python:3.11-slim", got)
	}
}

func TestBuildRecipeRuntimeMismatch(t *testing.T) {
	full, _ := Parse([]byte("FROM python:3.11\nEXPOSE 8000\nCMD [\"python\", \"main.py\"]\nCOPY app ./app\n"))
	slim, _ := Parse([]byte("FROM python:3.12-slim\nCMD [\"python\", \"main.py\"]\nCOPY . .\n"))

	_, err := BuildRecipe("svc", map[manifest.ProfileName]*Import{
		manifest.ProfileFull: full,
		manifest.ProfileSlim: slim,
	})
	if !errors.Is(err, ErrImport) {
		t.Fatalf("err = %v, want ErrImport on version mismatch", err)
	}
}

func TestBuildRecipeNoPort(t *testing.T) {
	slim, _ := Parse([]byte(fallbackDockerfile))
	_, err := BuildRecipe("svc", map[manifest.ProfileName]*Import{
		manifest.ProfileSlim: slim,
	})
	if !errors.Is(err, ErrImport) {
		t.Fatalf("err = %v, want ErrImport when no port is exposed", err)
	}
}
