package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// forgeConfig is the optional forge.toml sitting at the project root.
// Every field has a working default; the file only overrides.
type forgeConfig struct {
	Paths    pathsConfig    `toml:"paths"`
	Build    buildConfig    `toml:"build"`
	Manifest manifestConfig `toml:"manifest"`
}

type pathsConfig struct {
	Cache          string `toml:"cache"`
	Build          string `toml:"build"`
	Dist           string `toml:"dist"`
	WindowsHeaders string `toml:"windows_headers"`
}

type buildConfig struct {
	Jobs       int    `toml:"jobs"`
	Zig        string `toml:"zig"`
	TreeSitter string `toml:"tree_sitter"`
}

type manifestConfig struct {
	Path string `toml:"path"`
}

type forgeProject struct {
	Root   string
	Config forgeConfig
}

func findForgeToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "forge.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadForgeProject locates and parses forge.toml. When none exists the
// current directory becomes the project root with default settings.
func loadForgeProject(startDir string) (*forgeProject, error) {
	path, ok, err := findForgeToml(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		root, err := filepath.Abs(startDir)
		if err != nil {
			root = "."
		}
		return &forgeProject{Root: root}, nil
	}
	var cfg forgeConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if cfg.Build.Jobs < 0 {
		return nil, fmt.Errorf("%s: [build].jobs must not be negative", path)
	}
	return &forgeProject{Root: filepath.Dir(path), Config: cfg}, nil
}

func (p *forgeProject) resolve(configured, fallback string) string {
	value := configured
	if value == "" {
		value = fallback
	}
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(p.Root, value)
}

func (p *forgeProject) cacheDir() string  { return p.resolve(p.Config.Paths.Cache, "cache") }
func (p *forgeProject) buildRoot() string { return p.resolve(p.Config.Paths.Build, "build") }
func (p *forgeProject) distDir() string   { return p.resolve(p.Config.Paths.Dist, "dist") }
func (p *forgeProject) manifestPath() string {
	return p.resolve(p.Config.Manifest.Path, "grammars.json")
}

func (p *forgeProject) windowsHeaders() string {
	if p.Config.Paths.WindowsHeaders == "" {
		return ""
	}
	return p.resolve(p.Config.Paths.WindowsHeaders, "")
}
