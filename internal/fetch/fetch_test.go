package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tsforge/internal/manifest"
	"tsforge/internal/testkit"
	"tsforge/internal/toolchain"
)

var errExit = errors.New("git exited with code 1")

func testkitResultWithStderr(s string) toolchain.ExecResult {
	return toolchain.ExecResult{Stderr: s, ExitCode: 1}
}

func newFetcher(t *testing.T, runner *testkit.ScriptedRunner) *Fetcher {
	t.Helper()
	cache := t.TempDir()
	ix, err := OpenIndex(cache)
	if err != nil {
		t.Fatal(err)
	}
	return &Fetcher{CacheDir: cache, Runner: runner, Index: ix}
}

// cloneEffect simulates git clone populating the destination directory.
func cloneEffect(t *testing.T) func(dir string, argv []string) error {
	t.Helper()
	return func(_ string, argv []string) error {
		dest := argv[len(argv)-1]
		if err := os.MkdirAll(filepath.Join(dest, ".git"), 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dest, "grammar.js"), []byte("module.exports = {}"), 0o600)
	}
}

func seedCheckout(t *testing.T, dir string, withGit bool) {
	t.Helper()
	if withGit {
		if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
			t.Fatal(err)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "grammar.js"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	runner := &testkit.ScriptedRunner{}
	f := newFetcher(t, runner)
	seedCheckout(t, f.Dir("go"), true)

	res := f.Fetch(context.Background(), manifest.Grammar{Name: "go", Repo: "r", Rev: "abc"})
	if !res.OK || !res.CacheHit {
		t.Fatalf("expected cache hit, got %+v", res)
	}
	if calls := runner.Calls(); len(calls) != 0 {
		t.Errorf("cache hit should run no commands, ran %d", len(calls))
	}
}

func TestFetch_Idempotent(t *testing.T) {
	runner := &testkit.ScriptedRunner{Rules: []testkit.Rule{
		{Match: testkit.ArgvHasPrefix("git", "clone"), Effect: cloneEffect(t)},
	}}
	f := newFetcher(t, runner)
	g := manifest.Grammar{Name: "go", Repo: "https://example.com/go", Rev: "abc123"}

	first := f.Fetch(context.Background(), g)
	if !first.OK || first.CacheHit {
		t.Fatalf("first fetch = %+v", first)
	}
	callsAfterFirst := len(runner.Calls())

	second := f.Fetch(context.Background(), g)
	if !second.OK || !second.CacheHit {
		t.Fatalf("second fetch = %+v", second)
	}
	if len(runner.Calls()) != callsAfterFirst {
		t.Error("second fetch performed network operations")
	}
}

func TestFetch_SelfHealsCorruptCheckout(t *testing.T) {
	runner := &testkit.ScriptedRunner{Rules: []testkit.Rule{
		{Match: testkit.ArgvHasPrefix("git", "clone"), Effect: cloneEffect(t)},
	}}
	f := newFetcher(t, runner)
	// Present but missing VCS metadata.
	seedCheckout(t, f.Dir("go"), false)

	res := f.Fetch(context.Background(), manifest.Grammar{Name: "go", Repo: "r", Rev: "abc"})
	if !res.OK {
		t.Fatalf("self-heal should succeed without surfacing an error, got %+v", res)
	}
	if res.CacheHit {
		t.Error("corrupt checkout must not count as a hit")
	}
	if len(runner.CallsMatching("clone")) != 1 {
		t.Error("expected a fresh clone after removal")
	}
}

func TestFetch_PinnedRevision(t *testing.T) {
	runner := &testkit.ScriptedRunner{Rules: []testkit.Rule{
		{Match: testkit.ArgvHasPrefix("git", "clone"), Effect: cloneEffect(t)},
	}}
	f := newFetcher(t, runner)
	g := manifest.Grammar{Name: "rust", Repo: "https://example.com/rust", Rev: "deadbeefcafe0123"}

	res := f.Fetch(context.Background(), g)
	if !res.OK {
		t.Fatalf("fetch failed: %+v", res)
	}
	clones := runner.CallsMatching("clone")
	if len(clones) != 1 {
		t.Fatalf("expected 1 clone, got %d", len(clones))
	}
	if strings.Contains(clones[0].Line(), "--depth") {
		t.Error("pinned fetch must be a full clone, not shallow")
	}
	checkouts := runner.CallsMatching("checkout")
	if len(checkouts) != 1 || checkouts[0].Argv[2] != g.Rev {
		t.Fatalf("expected checkout of %s, got %v", g.Rev, checkouts)
	}
	if checkouts[0].Dir != f.Dir("rust") {
		t.Errorf("checkout ran in %q, want %q", checkouts[0].Dir, f.Dir("rust"))
	}

	rec, ok, err := f.Index.Get("rust")
	if err != nil || !ok {
		t.Fatalf("index record missing: ok=%v err=%v", ok, err)
	}
	if rec.Rev != g.Rev || rec.Shallow {
		t.Errorf("index record = %+v", rec)
	}
}

func TestFetch_BadRevisionRemovesPartialClone(t *testing.T) {
	runner := &testkit.ScriptedRunner{Rules: []testkit.Rule{
		{Match: testkit.ArgvHasPrefix("git", "clone"), Effect: cloneEffect(t)},
		{
			Match:  testkit.ArgvHasPrefix("git", "checkout"),
			Result: testkitResultWithStderr("fatal: reference is not a tree"),
			Err:    errExit,
		},
	}}
	f := newFetcher(t, runner)
	g := manifest.Grammar{Name: "rust", Repo: "r", Rev: "deadbeefcafe0123456789"}

	res := f.Fetch(context.Background(), g)
	if res.OK {
		t.Fatal("bad revision should fail")
	}
	if !strings.Contains(res.Message, "rust") || !strings.Contains(res.Message, "deadbeefcafe") {
		t.Errorf("message should name grammar and truncated revision: %q", res.Message)
	}
	if strings.Contains(res.Message, g.Rev) {
		t.Errorf("revision should be truncated in message: %q", res.Message)
	}
	if _, err := os.Stat(f.Dir("rust")); !os.IsNotExist(err) {
		t.Error("partial clone should be removed")
	}
}

func TestFetch_ShallowBranch(t *testing.T) {
	runner := &testkit.ScriptedRunner{Rules: []testkit.Rule{
		{Match: testkit.ArgvHasPrefix("git", "clone"), Effect: cloneEffect(t)},
	}}
	f := newFetcher(t, runner)

	res := f.Fetch(context.Background(), manifest.Grammar{Name: "next", Repo: "r", Branch: "dev"})
	if !res.OK {
		t.Fatalf("fetch failed: %+v", res)
	}
	clones := runner.CallsMatching("clone")
	if len(clones) != 1 {
		t.Fatalf("expected 1 clone, got %d", len(clones))
	}
	line := clones[0].Line()
	if !strings.Contains(line, "--depth 1") || !strings.Contains(line, "--branch dev") {
		t.Errorf("shallow branch clone line = %q", line)
	}
	if len(runner.CallsMatching("checkout")) != 0 {
		t.Error("shallow fetch should not run checkout")
	}
}

func TestFetch_TimeoutIsDistinctFailure(t *testing.T) {
	runner := &testkit.ScriptedRunner{}
	f := newFetcher(t, runner)
	f.Timeout = time.Nanosecond

	res := f.Fetch(context.Background(), manifest.Grammar{Name: "slow", Repo: "r", Rev: "abc"})
	if res.OK {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(res.Message, "timed out") {
		t.Errorf("timeout should be a distinct reason, got %q", res.Message)
	}
}
