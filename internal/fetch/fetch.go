// Package fetch maintains the on-disk cache of grammar checkouts.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fortio.org/safecast"

	"tsforge/internal/ctxlog"
	"tsforge/internal/manifest"
	"tsforge/internal/toolchain"
)

// DefaultTimeout bounds one grammar's network operations.
const DefaultTimeout = 10 * time.Minute

// Result reports the outcome of fetching one grammar. Failures are
// values, not errors: a failed fetch excludes the grammar from later
// stages without aborting the run.
type Result struct {
	Name     string
	OK       bool
	CacheHit bool
	Message  string
}

// Fetcher clones grammar repositories into CacheDir, one subdirectory
// per grammar name. Safe for concurrent use: workers operate on distinct
// subdirectories by construction.
type Fetcher struct {
	CacheDir string
	Runner   toolchain.Runner
	Index    *Index
	// Timeout bounds one grammar's network operations (DefaultTimeout if zero).
	Timeout time.Duration
	// Git overrides the git binary (default "git").
	Git string
}

func (f *Fetcher) git() string {
	if f.Git == "" {
		return "git"
	}
	return f.Git
}

func (f *Fetcher) timeout() time.Duration {
	if f.Timeout <= 0 {
		return DefaultTimeout
	}
	return f.Timeout
}

// Fetch ensures a usable checkout of g exists in the cache. Idempotent:
// a valid cached checkout is a hit with no network access; a corrupt one
// (present but empty, or missing VCS metadata) is deleted and re-cloned.
func (f *Fetcher) Fetch(ctx context.Context, g manifest.Grammar) Result {
	logger := ctxlog.FromContext(ctx)
	dir := filepath.Join(f.CacheDir, g.Name)

	switch state := checkoutState(dir); state {
	case checkoutValid:
		logger.Debug("fetch cache hit", "grammar", g.Name, "dir", dir)
		return Result{Name: g.Name, OK: true, CacheHit: true, Message: "cache hit"}
	case checkoutCorrupt:
		logger.Debug("removing corrupt checkout", "grammar", g.Name, "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return Result{Name: g.Name, Message: fmt.Sprintf("failed to remove corrupt checkout: %v", err)}
		}
		_ = f.Index.Drop(g.Name)
	case checkoutMissing:
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()

	var res Result
	if g.Rev != "" {
		res = f.clonePinned(ctx, g, dir)
	} else {
		res = f.cloneShallow(ctx, g, dir)
	}
	if res.OK {
		f.record(g, dir)
	}
	return res
}

// clonePinned performs a full clone and checks out the exact revision.
// Full, not shallow: the pinned commit may predate the branch tip.
func (f *Fetcher) clonePinned(ctx context.Context, g manifest.Grammar, dir string) Result {
	if res, err := f.Runner.Run(ctx, "", f.git(), "clone", g.Repo, dir); err != nil {
		return f.failure(ctx, g, dir, "clone", res, err)
	}
	if res, err := f.Runner.Run(ctx, dir, f.git(), "checkout", g.Rev); err != nil {
		// Remove the partial clone so the next run does not see it as valid.
		_ = os.RemoveAll(dir)
		msg := fmt.Sprintf("%s: revision %s not found: %v", g.Name, truncateRev(g.Rev), err)
		if out := res.Output(); out != "" {
			msg += ": " + out
		}
		return Result{Name: g.Name, Message: msg}
	}
	return Result{Name: g.Name, OK: true, Message: "cloned at " + truncateRev(g.Rev)}
}

// cloneShallow fetches only the tip of the requested branch.
func (f *Fetcher) cloneShallow(ctx context.Context, g manifest.Grammar, dir string) Result {
	argv := []string{f.git(), "clone", "--depth", "1"}
	if g.Branch != "" {
		argv = append(argv, "--branch", g.Branch)
	}
	argv = append(argv, g.Repo, dir)
	if res, err := f.Runner.Run(ctx, "", argv...); err != nil {
		return f.failure(ctx, g, dir, "clone", res, err)
	}
	branch := g.Branch
	if branch == "" {
		branch = "default branch"
	}
	return Result{Name: g.Name, OK: true, Message: "cloned " + branch}
}

func (f *Fetcher) failure(ctx context.Context, g manifest.Grammar, dir, op string, res toolchain.ExecResult, err error) Result {
	_ = os.RemoveAll(dir)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{Name: g.Name, Message: fmt.Sprintf("%s: %s timed out after %s", g.Name, op, f.timeout())}
	}
	msg := fmt.Sprintf("%s: %s failed: %v", g.Name, op, err)
	if out := res.Output(); out != "" {
		msg += ": " + out
	}
	return Result{Name: g.Name, Message: msg}
}

func (f *Fetcher) record(g manifest.Grammar, dir string) {
	entries, err := countEntries(dir)
	if err != nil {
		return
	}
	_ = f.Index.Put(Record{
		Name:      g.Name,
		Repo:      g.Repo,
		Rev:       g.Rev,
		Branch:    g.Branch,
		Shallow:   g.Rev == "",
		Entries:   entries,
		FetchedAt: time.Now().UTC(),
	})
}

func countEntries(dir string) (uint32, error) {
	names, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range names {
		if e.Name() != ".git" {
			n++
		}
	}
	return safecast.Conv[uint32](n)
}

type state int

const (
	checkoutMissing state = iota
	checkoutValid
	checkoutCorrupt
)

// checkoutState classifies a cache directory. Valid means VCS metadata
// plus at least one other entry; anything else that exists is corrupt.
func checkoutState(dir string) state {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return checkoutMissing
	}
	hasGit := false
	hasOther := false
	for _, e := range entries {
		if e.Name() == ".git" {
			hasGit = true
		} else {
			hasOther = true
		}
	}
	if hasGit && hasOther {
		return checkoutValid
	}
	return checkoutCorrupt
}

// Dir returns the cache directory for a grammar name.
func (f *Fetcher) Dir(name string) string {
	return filepath.Join(f.CacheDir, name)
}

func truncateRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
