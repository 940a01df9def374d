// Package combine merges per-grammar archives into one combined archive
// per platform with its JSON metadata sidecar.
package combine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tsforge/internal/ctxlog"
	"tsforge/internal/manifest"
	"tsforge/internal/platform"
	"tsforge/internal/toolchain"
)

// Row is one metadata sidecar entry. The sidecar is the authoritative
// record of what the combined archive contains: exactly the grammars
// that compiled, sorted by name.
type Row struct {
	Name       string `json:"name"`
	Repo       string `json:"repo"`
	Rev        string `json:"rev"`
	Path       string `json:"path,omitempty"`
	SymbolName string `json:"symbol_name,omitempty"`
}

// Output names the two files produced per platform.
type Output struct {
	ArchivePath  string
	MetadataPath string
}

// Aggregator folds the single-grammar archives under BuildDir into the
// combined archive for one platform, written to DistDir.
type Aggregator struct {
	BuildDir  string
	DistDir   string
	Toolchain *toolchain.Toolchain
	Runner    toolchain.Runner
}

// Aggregate writes the metadata sidecar and, when at least one grammar
// compiled, repacks every grammar's objects into the combined archive.
// Grammars must be exactly the successfully compiled set; the sidecar
// and the archive stay consistent by construction.
//
// Object files are extracted into a uniquely named subdirectory per
// grammar first: every grammar ships a parser.o, so extracting into a
// shared directory would silently drop objects.
func (a *Aggregator) Aggregate(ctx context.Context, target platform.Target, grammars []manifest.Grammar) (Output, error) {
	logger := ctxlog.FromContext(ctx)

	sorted := append([]manifest.Grammar(nil), grammars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	if err := os.MkdirAll(a.DistDir, 0o750); err != nil {
		return Output{}, fmt.Errorf("failed to create dist dir: %w", err)
	}
	out := Output{MetadataPath: filepath.Join(a.DistDir, target.MetadataName())}
	if err := writeMetadata(out.MetadataPath, sorted); err != nil {
		return Output{}, err
	}
	if len(sorted) == 0 {
		logger.Warn("no grammars compiled for platform", "platform", target.ID())
		return out, nil
	}

	extractRoot := filepath.Join(a.BuildDir, "objrepack")
	var objects []string
	for _, g := range sorted {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		objs, err := a.extract(ctx, g.Name, extractRoot)
		if err != nil {
			return Output{}, err
		}
		objects = append(objects, objs...)
	}

	out.ArchivePath = filepath.Join(a.DistDir, target.ArchiveName())
	argv := append(a.Toolchain.AR(), "rcs", out.ArchivePath)
	argv = append(argv, objects...)
	if res, err := a.Runner.Run(ctx, "", argv...); err != nil {
		// Keep extractRoot around: the half-merged state is the evidence.
		_ = os.Remove(out.ArchivePath)
		msg := fmt.Sprintf("failed to merge archives for %s: %v", target.ID(), err)
		if o := res.Output(); o != "" {
			msg += ": " + o
		}
		return Output{}, fmt.Errorf("%s (extracted objects left in %s)", msg, extractRoot)
	}

	a.cleanup(extractRoot, sorted)
	logger.Debug("combined archive written",
		"platform", target.ID(), "archive", out.ArchivePath, "grammars", len(sorted), "objects", len(objects))
	return out, nil
}

// extract unpacks one grammar archive into its own subdirectory and
// returns the object paths found there.
func (a *Aggregator) extract(ctx context.Context, name, extractRoot string) ([]string, error) {
	dir := filepath.Join(extractRoot, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create extract dir for %s: %w", name, err)
	}
	archive, err := filepath.Abs(filepath.Join(a.BuildDir, name+".a"))
	if err != nil {
		return nil, err
	}
	argv := append(a.Toolchain.AR(), "x", archive)
	if res, err := a.Runner.Run(ctx, dir, argv...); err != nil {
		msg := fmt.Sprintf("failed to unpack %s.a: %v", name, err)
		if o := res.Output(); o != "" {
			msg += ": " + o
		}
		return nil, fmt.Errorf("%s", msg)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var objects []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".o") || strings.HasSuffix(e.Name(), ".obj") {
			objects = append(objects, filepath.Join(dir, e.Name()))
		}
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%s.a contained no object files", name)
	}
	return objects, nil
}

// cleanup removes extracted objects and the consumed single-grammar
// archives. Best effort: leftovers are cosmetic once the combined
// archive exists.
func (a *Aggregator) cleanup(extractRoot string, grammars []manifest.Grammar) {
	_ = os.RemoveAll(extractRoot)
	for _, g := range grammars {
		_ = os.Remove(filepath.Join(a.BuildDir, g.Name+".a"))
	}
	// Drop the obj/ intermediate if the compiler left it empty.
	if entries, err := os.ReadDir(filepath.Join(a.BuildDir, "obj")); err == nil && len(entries) == 0 {
		_ = os.Remove(filepath.Join(a.BuildDir, "obj"))
	}
}

func writeMetadata(path string, grammars []manifest.Grammar) error {
	rows := make([]Row, 0, len(grammars))
	for _, g := range grammars {
		rows = append(rows, Row{
			Name:       g.Name,
			Repo:       g.Repo,
			Rev:        g.Rev,
			Path:       g.Path,
			SymbolName: g.SymbolName,
		})
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}
