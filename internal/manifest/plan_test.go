package manifest

import (
	"strings"
	"testing"
)

func testRecipe(t *testing.T) *Recipe {
	t.Helper()
	dir := writeDefinition(t, validDefinition)
	r, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	return r
}

func TestPlanFullOrder(t *testing.T) {
	r := testRecipe(t)

	plan, err := r.Plan(ProfileFull)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	want := []StageKind{
		StageBase,
		StagePackages,
		StageManifest,
		StageSource,
		StageRuntimeConfig,
		StageExpose,
		StageEntrypoint,
	}
	assertStageOrder(t, plan, want)

	base := plan.Stages[0]
	if base.Ref != "python:3.11" {
		t.Errorf("base ref = %q", base.Ref)
	}

	pkgs := plan.Stages[1]
	if len(pkgs.Packages) != 1 || pkgs.Packages[0] != "curl" {
		t.Errorf("packages = %v, want [curl]", pkgs.Packages)
	}

	m := plan.Stages[2]
	if m.Manifest != "requirements.simple.txt" || m.InstallName != "requirements.txt" {
		t.Errorf("manifest stage = %+v, want rename honored", m)
	}
	if !strings.Contains(m.Installer, "--no-cache-dir") {
		t.Errorf("installer %q must skip the local cache", m.Installer)
	}

	if plan.Stages[3].Source != "app" {
		t.Errorf("source = %q, want app subtree", plan.Stages[3].Source)
	}
	if plan.Stages[5].Port != 8000 {
		t.Errorf("expose port = %d, want 8000", plan.Stages[5].Port)
	}
	if got := plan.Stages[6].Command; len(got) == 0 || got[0] != "python" {
		t.Errorf("entrypoint = %v", got)
	}
}

func TestPlanSlimOrder(t *testing.T) {
	r := testRecipe(t)

	plan, err := r.Plan(ProfileSlim)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	want := []StageKind{
		StageBase,
		StageManifest,
		StageSource,
		StageRuntimeConfig,
		StageExpose,
		StageEntrypoint,
	}
	assertStageOrder(t, plan, want)

	if plan.Stages[0].Ref != "python:3.11-slim" {
		t.Errorf("base ref = %q, want slim variant", plan.Stages[0].Ref)
	}
	if plan.Stages[2].Source != "." {
		t.Errorf("source = %q, want whole context", plan.Stages[2].Source)
	}

	cfg := plan.Stages[3]
	if cfg.Env["PYTHONPATH"] != "/app" || cfg.Env["PYTHONUNBUFFERED"] != "1" {
		t.Errorf("runtime env = %v", cfg.Env)
	}
	if cfg.Workdir != "/app" {
		t.Errorf("workdir = %q, want /app", cfg.Workdir)
	}
}

func assertStageOrder(t *testing.T, plan *Plan, want []StageKind) {
	t.Helper()
	if len(plan.Stages) != len(want) {
		t.Fatalf("len(stages) = %d, want %d", len(plan.Stages), len(want))
	}
	for i, kind := range want {
		if plan.Stages[i].Kind != kind {
			t.Fatalf("stage %d = %s, want %s", i, plan.Stages[i].Kind, kind)
		}
	}
}

func TestPreSource(t *testing.T) {
	r := testRecipe(t)

	plan, err := r.Plan(ProfileFull)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	pre := plan.PreSource()
	if len(pre) != 3 {
		t.Fatalf("len(pre) = %d, want 3", len(pre))
	}
	for _, s := range pre {
		if s.Kind == StageSource {
			t.Fatal("source stage leaked into the pre-source prefix")
		}
	}
}

func TestPackageCommand(t *testing.T) {
	cmd := PackageCommand([]string{"curl", "ca-certificates"})

	if !strings.Contains(cmd, "apt-get install -y --no-install-recommends curl ca-certificates") {
		t.Errorf("command = %q, missing install", cmd)
	}
	if !strings.Contains(cmd, "rm -rf /var/lib/apt/lists/*") {
		t.Errorf("command = %q, must prune lists in the same layer", cmd)
	}
}
