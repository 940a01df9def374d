package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeForgeToml(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "forge.toml"), []byte(contents), 0o600); err != nil {
		t.Fatalf("write forge.toml: %v", err)
	}
}

func TestLoadForgeProjectDefaults(t *testing.T) {
	dir := t.TempDir()
	project, err := loadForgeProject(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.cacheDir() != filepath.Join(project.Root, "cache") {
		t.Fatalf("unexpected cache dir: %s", project.cacheDir())
	}
	if project.manifestPath() != filepath.Join(project.Root, "grammars.json") {
		t.Fatalf("unexpected manifest path: %s", project.manifestPath())
	}
	if project.windowsHeaders() != "" {
		t.Fatalf("expected no windows headers by default, got %s", project.windowsHeaders())
	}
}

func TestLoadForgeProjectOverrides(t *testing.T) {
	dir := t.TempDir()
	writeForgeToml(t, dir, `
[paths]
cache = ".grammars"
dist = "out"
windows_headers = "toolchains/winsdk"

[build]
jobs = 4
zig = "/opt/zig/zig"

[manifest]
path = "config/grammars.json"
`)
	project, err := loadForgeProject(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.cacheDir() != filepath.Join(dir, ".grammars") {
		t.Fatalf("unexpected cache dir: %s", project.cacheDir())
	}
	if project.distDir() != filepath.Join(dir, "out") {
		t.Fatalf("unexpected dist dir: %s", project.distDir())
	}
	if project.windowsHeaders() != filepath.Join(dir, "toolchains", "winsdk") {
		t.Fatalf("unexpected windows headers: %s", project.windowsHeaders())
	}
	if project.Config.Build.Jobs != 4 {
		t.Fatalf("unexpected jobs: %d", project.Config.Build.Jobs)
	}
	if project.Config.Build.Zig != "/opt/zig/zig" {
		t.Fatalf("unexpected zig path: %s", project.Config.Build.Zig)
	}
	if project.manifestPath() != filepath.Join(dir, "config", "grammars.json") {
		t.Fatalf("unexpected manifest path: %s", project.manifestPath())
	}
}

func TestLoadForgeProjectWalksUpward(t *testing.T) {
	root := t.TempDir()
	writeForgeToml(t, root, "[build]\njobs = 2\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	project, err := loadForgeProject(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.Root != root {
		t.Fatalf("expected root %s, got %s", root, project.Root)
	}
}

func TestLoadForgeProjectRejectsNegativeJobs(t *testing.T) {
	dir := t.TempDir()
	writeForgeToml(t, dir, "[build]\njobs = -1\n")
	if _, err := loadForgeProject(dir); err == nil {
		t.Fatal("expected an error for negative jobs")
	}
}
