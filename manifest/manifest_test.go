package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a morph.toml
	dir := t.TempDir()
	tomlContent := `
[project]
name = "test-app"
version = "0.1.0"

[modules]
paths = ["lib", "vendor"]
extensions = [".mvm"]

[runtime]
max-frames = 500
trace = true

[dependencies]
helper = { path = "../helper" }
`
	if err := os.WriteFile(filepath.Join(dir, TOMLName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Modules.Paths) != 2 {
		t.Errorf("module paths count = %d, want 2", len(m.Modules.Paths))
	}
	if len(m.Modules.Extensions) != 1 || m.Modules.Extensions[0] != ".mvm" {
		t.Errorf("extensions = %v, want [.mvm]", m.Modules.Extensions)
	}
	if m.Runtime.MaxFrames != 500 {
		t.Errorf("max-frames = %d, want 500", m.Runtime.MaxFrames)
	}
	if !m.Runtime.Trace {
		t.Error("trace = false, want true")
	}
	if dep, ok := m.Dependencies["helper"]; !ok || dep.Path != "../helper" {
		t.Errorf("helper dep = %v, want path ../helper", m.Dependencies["helper"])
	}
}

func TestLoadManifestYAML(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
project:
  name: yaml-app
modules:
  paths: [src]
runtime:
  max-frames: 64
dependencies:
  helper:
    path: ../helper
`
	if err := os.WriteFile(filepath.Join(dir, YAMLName), []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Name != "yaml-app" {
		t.Errorf("project name = %q, want yaml-app", m.Project.Name)
	}
	if len(m.Modules.Paths) != 1 || m.Modules.Paths[0] != "src" {
		t.Errorf("module paths = %v, want [src]", m.Modules.Paths)
	}
	if m.Runtime.MaxFrames != 64 {
		t.Errorf("max-frames = %d, want 64", m.Runtime.MaxFrames)
	}
	if m.Dependencies["helper"].Path != "../helper" {
		t.Errorf("helper dep = %v, want path ../helper", m.Dependencies["helper"])
	}
}

func TestLoadPrefersTOML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, TOMLName), []byte("[project]\nname = \"from-toml\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, YAMLName), []byte("project:\n  name: from-yaml\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Name != "from-toml" {
		t.Errorf("project name = %q, want from-toml", m.Project.Name)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, TOMLName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Modules.Paths) != 1 || m.Modules.Paths[0] != "." {
		t.Errorf("default module paths = %v, want [.]", m.Modules.Paths)
	}
	if len(m.Modules.Extensions) != 2 || m.Modules.Extensions[0] != ".mvm" || m.Modules.Extensions[1] != ".fox.mvm" {
		t.Errorf("default extensions = %v, want [.mvm .fox.mvm]", m.Modules.Extensions)
	}
	if m.Runtime.MaxFrames != 0 {
		t.Errorf("default max-frames = %d, want 0", m.Runtime.MaxFrames)
	}
}

func TestLoadManifestParseError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, TOMLName), []byte("[project\nname ="), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[project]
name = "found-project"
`
	if err := os.WriteFile(filepath.Join(dir, TOMLName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no morph.toml exists")
	}
}

func TestModulePaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Modules: Modules{
			Paths: []string{"lib", "/opt/morph"},
		},
	}

	paths := m.ModulePaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/lib" {
		t.Errorf("paths[0] = %q, want /app/lib", paths[0])
	}
	if paths[1] != "/opt/morph" {
		t.Errorf("paths[1] = %q, want /opt/morph", paths[1])
	}
}
