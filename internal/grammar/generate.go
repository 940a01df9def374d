package grammar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tsforge/internal/ctxlog"
	"tsforge/internal/toolchain"
)

// Generator produces parser.c from grammar.js for grammars that do not
// ship generated sources. Candidate invocations are tried in order, first
// success wins, and all failures are folded into one diagnostic.
//
// Generation runs at most once per grammar per process: the result is
// memoized so the per-platform compile passes do not re-invoke the
// (slow) generator.
type Generator struct {
	Runner toolchain.Runner
	// TreeSitter overrides the generator binary; when empty the
	// tree-sitter CLI and an npx fallback are tried.
	TreeSitter string

	mu   sync.Mutex
	done map[string]error
}

func (gen *Generator) candidates() [][]string {
	if gen.TreeSitter != "" {
		return [][]string{{gen.TreeSitter, "generate"}}
	}
	return [][]string{
		{"tree-sitter", "generate"},
		{"npx", "--yes", "tree-sitter-cli", "generate"},
	}
}

// Generate ensures generated sources exist under root/src. root must
// contain grammar.js.
func (gen *Generator) Generate(ctx context.Context, name, root string) error {
	gen.mu.Lock()
	if gen.done == nil {
		gen.done = make(map[string]error)
	}
	if err, ok := gen.done[name]; ok {
		gen.mu.Unlock()
		return err
	}
	gen.mu.Unlock()

	err := gen.generate(ctx, name, root)

	gen.mu.Lock()
	gen.done[name] = err
	gen.mu.Unlock()
	return err
}

func (gen *Generator) generate(ctx context.Context, name, root string) error {
	if _, err := os.Stat(filepath.Join(root, "grammar.js")); err != nil {
		return fmt.Errorf("%s: no parser.c and no grammar.js to generate it from", name)
	}
	logger := ctxlog.FromContext(ctx)

	var attempts []string
	for _, argv := range gen.candidates() {
		res, err := gen.Runner.Run(ctx, root, argv...)
		if err == nil {
			logger.Debug("generated parser sources", "grammar", name, "cmd", argv[0])
			return nil
		}
		msg := fmt.Sprintf("%s: %v", toolchain.CommandLine(argv), err)
		if out := res.Output(); out != "" {
			msg += ": " + out
		}
		attempts = append(attempts, msg)
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%s: failed to generate parser sources:\n  %s", name, strings.Join(attempts, "\n  "))
}
