// Package platform enumerates the target platforms grammar archives are built for.
package platform

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// OS is the target operating system.
type OS string

const (
	Linux   OS = "linux"
	MacOS   OS = "macos"
	Windows OS = "windows"
)

// Arch is the target CPU architecture.
type Arch string

const (
	Amd64 Arch = "x86_64"
	Arm64 Arch = "aarch64"
)

// Libc distinguishes the C library on Linux targets. Empty elsewhere.
type Libc string

const (
	LibcNone  Libc = ""
	LibcGlibc Libc = "glibc"
	LibcMusl  Libc = "musl"
)

// Target is one (OS, architecture, libc) combination a combined archive is
// produced for. The set of valid targets is fixed; use All or Parse.
type Target struct {
	OS   OS
	Arch Arch
	Libc Libc
}

// All returns the full matrix of supported targets, in release order.
func All() []Target {
	return []Target{
		{MacOS, Arm64, LibcNone},
		{MacOS, Amd64, LibcNone},
		{Linux, Arm64, LibcGlibc},
		{Linux, Arm64, LibcMusl},
		{Linux, Amd64, LibcGlibc},
		{Linux, Amd64, LibcMusl},
		{Windows, Arm64, LibcNone},
		{Windows, Amd64, LibcNone},
	}
}

// Host returns the target matching the platform the build is running on.
// Linux hosts are assumed glibc; use an explicit target id for musl builds.
func Host() (Target, error) {
	var arch Arch
	switch runtime.GOARCH {
	case "amd64":
		arch = Amd64
	case "arm64":
		arch = Arm64
	default:
		return Target{}, fmt.Errorf("unsupported host architecture: %s", runtime.GOARCH)
	}
	switch runtime.GOOS {
	case "linux":
		return Target{Linux, arch, LibcGlibc}, nil
	case "darwin":
		return Target{MacOS, arch, LibcNone}, nil
	case "windows":
		return Target{Windows, arch, LibcNone}, nil
	default:
		return Target{}, fmt.Errorf("unsupported host OS: %s", runtime.GOOS)
	}
}

// ID returns the canonical platform identifier, e.g. "linux-x86_64-musl"
// or "macos-aarch64". It names output files and build directories.
func (t Target) ID() string {
	if t.Libc == LibcNone {
		return fmt.Sprintf("%s-%s", t.OS, t.Arch)
	}
	return fmt.Sprintf("%s-%s-%s", t.OS, t.Arch, t.Libc)
}

func (t Target) String() string { return t.ID() }

// Triple returns the compiler target triple for cross builds.
func (t Target) Triple() string {
	switch t.OS {
	case Linux:
		libc := "gnu"
		if t.Libc == LibcMusl {
			libc = "musl"
		}
		return fmt.Sprintf("%s-linux-%s", t.Arch, libc)
	case MacOS:
		return fmt.Sprintf("%s-macos", t.Arch)
	case Windows:
		return fmt.Sprintf("%s-windows-gnu", t.Arch)
	}
	return ""
}

// ArchiveName returns the combined archive filename for this target.
func (t Target) ArchiveName() string {
	return "libtree-sitter-parsers-all-" + t.ID() + ".a"
}

// MetadataName returns the JSON sidecar filename for this target.
func (t Target) MetadataName() string {
	return "grammars-" + t.ID() + ".json"
}

// Parse resolves a platform identifier to a Target.
func Parse(id string) (Target, error) {
	id = strings.TrimSpace(strings.ToLower(id))
	for _, t := range All() {
		if t.ID() == id {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unknown platform %q (expected one of: %s)", id, strings.Join(IDs(), ", "))
}

// IDs returns the sorted identifiers of all supported targets.
func IDs() []string {
	targets := All()
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID())
	}
	sort.Strings(ids)
	return ids
}
