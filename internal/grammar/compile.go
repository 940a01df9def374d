// Package grammar compiles one grammar into a single static archive for
// one target platform, with per-grammar symbol isolation.
package grammar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tsforge/internal/ctxlog"
	"tsforge/internal/manifest"
	"tsforge/internal/platform"
	"tsforge/internal/toolchain"
)

// CPPMarkerSuffix names the zero-byte file written next to a grammar
// archive when a C++ scanner was compiled. The packaging layer reads it
// to know the C++ runtime must be linked.
const CPPMarkerSuffix = ".cpp-marker"

// CompileResult reports the outcome for one (grammar, platform) pair.
type CompileResult struct {
	Name        string
	OK          bool
	Message     string
	ArchivePath string
	// UsesCPP is set when the grammar carries a C++ scanner.
	UsesCPP bool
}

// Compiler builds single-grammar archives inside BuildDir using one
// toolchain. Workers may run many Compile calls concurrently: each
// grammar writes only under its own object directory and archive path.
type Compiler struct {
	CacheDir  string
	BuildDir  string
	Toolchain *toolchain.Toolchain
	Runner    toolchain.Runner
	Generator *Generator
	HostOS    platform.OS
}

// ArchivePath returns where the grammar's archive is written.
func (c *Compiler) ArchivePath(name string) string {
	return filepath.Join(c.BuildDir, name+".a")
}

// Compile locates the grammar's sources (generating them if needed),
// compiles every translation unit with the rename defines, and archives
// the objects. Failures are localized: the result carries the full
// command line and captured compiler output, and any partial objects are
// removed.
func (c *Compiler) Compile(ctx context.Context, g manifest.Grammar) CompileResult {
	logger := ctxlog.FromContext(ctx)

	root := filepath.Join(c.CacheDir, g.Name)
	if g.Path != "" {
		root = filepath.Join(root, filepath.FromSlash(g.Path))
	}
	src := filepath.Join(root, "src")
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return CompileResult{Name: g.Name, Message: fmt.Sprintf("%s: no src directory under %s", g.Name, root)}
	}

	parserC := filepath.Join(src, "parser.c")
	if _, err := os.Stat(parserC); err != nil {
		if genErr := c.Generator.Generate(ctx, g.Name, root); genErr != nil {
			return CompileResult{Name: g.Name, Message: genErr.Error()}
		}
		if _, err := os.Stat(parserC); err != nil {
			return CompileResult{Name: g.Name, Message: fmt.Sprintf("%s: generator ran but %s is still missing", g.Name, parserC)}
		}
	}

	sources := []string{parserC}
	scanner, usesCPP, err := findScanner(src)
	if err != nil {
		return CompileResult{Name: g.Name, Message: fmt.Sprintf("%s: %v", g.Name, err)}
	}
	if scanner != "" {
		sources = append(sources, scanner)
	}

	objDir := filepath.Join(c.BuildDir, "obj", g.Name)
	if err := os.MkdirAll(objDir, 0o750); err != nil {
		return CompileResult{Name: g.Name, Message: fmt.Sprintf("%s: failed to create object dir: %v", g.Name, err)}
	}

	objects := make([]string, 0, len(sources))
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			c.cleanup(objDir, "")
			return CompileResult{Name: g.Name, Message: fmt.Sprintf("%s: cancelled: %v", g.Name, err)}
		}
		obj := filepath.Join(objDir, objectName(source))
		if msg := c.compileUnit(ctx, g, root, src, source, obj); msg != "" {
			c.cleanup(objDir, "")
			return CompileResult{Name: g.Name, Message: msg}
		}
		objects = append(objects, obj)
	}

	archive := c.ArchivePath(g.Name)
	argv := append(c.Toolchain.AR(), "rcs", archive)
	argv = append(argv, objects...)
	if res, err := c.Runner.Run(ctx, "", argv...); err != nil {
		c.cleanup(objDir, archive)
		return CompileResult{Name: g.Name, Message: archiverFailure(g.Name, argv, res, err)}
	}
	c.cleanup(objDir, "")

	if usesCPP {
		marker := archive[:len(archive)-len(".a")] + CPPMarkerSuffix
		if err := os.WriteFile(marker, nil, 0o600); err != nil {
			logger.Warn("failed to write C++ marker", "grammar", g.Name, "err", err)
		}
	}

	logger.Debug("compiled grammar", "grammar", g.Name, "archive", archive, "cpp", usesCPP)
	return CompileResult{Name: g.Name, OK: true, ArchivePath: archive, UsesCPP: usesCPP}
}

// compileUnit runs one compiler invocation. Empty return means success.
func (c *Compiler) compileUnit(ctx context.Context, g manifest.Grammar, root, src, source, obj string) string {
	cpp := isCPP(source)
	var argv []string
	if cpp {
		argv = append(argv, c.Toolchain.CXX()...)
		argv = append(argv, "-std=c++14")
	} else {
		argv = append(argv, c.Toolchain.CC()...)
		argv = append(argv, "-std=c11")
	}
	argv = append(argv,
		"-O2",
		"-fomit-frame-pointer",
		"-funroll-loops",
		"-finline-functions",
		"-fvisibility=hidden",
		"-ffunction-sections",
		"-fdata-sections",
		"-fno-exceptions",
		"-I", src,
		"-I", root,
	)
	for _, dir := range c.Toolchain.ExtraIncludeDirs(c.HostOS) {
		argv = append(argv, "-I", dir)
	}
	argv = append(argv, RenameDefines(g)...)
	argv = append(argv, "-c", source, "-o", obj)

	res, err := c.Runner.Run(ctx, "", argv...)
	if err != nil {
		msg := fmt.Sprintf("%s: compile failed: %v\n  command: %s", g.Name, err, toolchain.CommandLine(argv))
		if out := res.Output(); out != "" {
			msg += "\n" + out
		}
		return msg
	}
	return ""
}

func (c *Compiler) cleanup(objDir, partialArchive string) {
	_ = os.RemoveAll(objDir)
	if partialArchive != "" {
		_ = os.Remove(partialArchive)
	}
}

func archiverFailure(name string, argv []string, res toolchain.ExecResult, err error) string {
	msg := fmt.Sprintf("%s: archive failed: %v\n  command: %s", name, err, toolchain.CommandLine(argv))
	if out := res.Output(); out != "" {
		msg += "\n" + out
	}
	return msg
}

// findScanner detects the optional native scanner, accepting the C or
// the C++ variant but never both.
func findScanner(src string) (path string, cpp bool, err error) {
	scannerC := filepath.Join(src, "scanner.c")
	scannerCC := filepath.Join(src, "scanner.cc")
	_, errC := os.Stat(scannerC)
	_, errCC := os.Stat(scannerCC)
	switch {
	case errC == nil && errCC == nil:
		return "", false, fmt.Errorf("both scanner.c and scanner.cc present")
	case errC == nil:
		return scannerC, false, nil
	case errCC == nil:
		return scannerCC, true, nil
	}
	return "", false, nil
}

func isCPP(source string) bool {
	return strings.HasSuffix(source, ".cc") || strings.HasSuffix(source, ".cpp")
}

func objectName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".o"
}
