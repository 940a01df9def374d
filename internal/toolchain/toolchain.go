// Package toolchain selects the compiler and archiver used for a target
// platform and provides the narrow external-command runner every other
// stage shells out through.
package toolchain

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"tsforge/internal/platform"
)

// Toolchain knows how to invoke a C/C++ compiler and a static archiver
// for one target platform. Host builds use the native cc/c++/ar; every
// cross build goes through zig, which bundles headers and libc for all
// supported triples.
type Toolchain struct {
	target platform.Target
	cross  bool
	zig    string

	// WindowsHeaders optionally points at a bundled MinGW-style header
	// set injected when cross-targeting Windows from a non-Windows host.
	WindowsHeaders string
}

// Native returns the toolchain for building on the host platform without
// cross-compilation.
func Native(target platform.Target) *Toolchain {
	return &Toolchain{target: target}
}

// Cross returns a zig-based toolchain for the given target. zigPath may be
// a bare binary name resolved via PATH.
func Cross(zigPath string, target platform.Target) *Toolchain {
	if zigPath == "" {
		zigPath = "zig"
	}
	return &Toolchain{target: target, cross: true, zig: zigPath}
}

// Select picks the toolchain for target. Host targets compile natively
// unless zig is available, in which case zig is preferred so that host
// and cross artifacts come from the same compiler. Non-host targets
// require zig; its absence is reported by EnsureAvailable, not here.
func Select(zigPath string, target, host platform.Target) *Toolchain {
	if target == host {
		if resolved, err := lookupZig(zigPath); err == nil {
			return Cross(resolved, target)
		}
		return Native(target)
	}
	return Cross(zigPath, target)
}

// EnsureAvailable verifies the toolchain binaries exist before any work
// begins. For cross builds a missing zig is a hard precondition failure.
func (t *Toolchain) EnsureAvailable() error {
	if t.cross {
		resolved, err := lookupZig(t.zig)
		if err != nil {
			return fmt.Errorf("cross-compiling to %s requires zig: %w (install from https://ziglang.org/download)", t.target.ID(), err)
		}
		t.zig = resolved
		return nil
	}
	if _, err := exec.LookPath("cc"); err != nil {
		return fmt.Errorf("no C compiler found: %w", err)
	}
	if _, err := exec.LookPath("ar"); err != nil {
		return fmt.Errorf("no archiver found: %w", err)
	}
	return nil
}

func lookupZig(zigPath string) (string, error) {
	if zigPath == "" {
		zigPath = "zig"
	}
	if filepath.IsAbs(zigPath) {
		return zigPath, nil
	}
	return exec.LookPath(zigPath)
}

// Target returns the platform this toolchain produces objects for.
func (t *Toolchain) Target() platform.Target { return t.target }

// IsCross reports whether the toolchain cross-compiles via zig.
func (t *Toolchain) IsCross() bool { return t.cross }

// CC returns the argv prefix for compiling a C translation unit.
func (t *Toolchain) CC() []string {
	if t.cross {
		return []string{t.zig, "cc", "-target", t.target.Triple()}
	}
	return []string{"cc"}
}

// CXX returns the argv prefix for compiling a C++ translation unit.
func (t *Toolchain) CXX() []string {
	if t.cross {
		return []string{t.zig, "c++", "-target", t.target.Triple()}
	}
	return []string{"c++"}
}

// AR returns the argv prefix for the static archiver.
func (t *Toolchain) AR() []string {
	if t.cross {
		return []string{t.zig, "ar"}
	}
	return []string{"ar"}
}

// ExtraIncludeDirs returns include directories injected on top of the
// grammar's own. Windows cross builds get the bundled CRT/SDK headers.
func (t *Toolchain) ExtraIncludeDirs(hostOS platform.OS) []string {
	if t.target.OS != platform.Windows || hostOS == platform.Windows {
		return nil
	}
	if t.WindowsHeaders == "" {
		return nil
	}
	return []string{
		t.WindowsHeaders,
		filepath.Join(t.WindowsHeaders, "crt"),
	}
}
