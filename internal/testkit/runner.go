// Package testkit contains shared test doubles for pipeline stages.
package testkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tsforge/internal/toolchain"
)

// Call records one command dispatched to a ScriptedRunner.
type Call struct {
	Dir  string
	Argv []string
}

// Line renders the recorded command for assertions.
func (c Call) Line() string { return strings.Join(c.Argv, " ") }

// Rule matches commands and supplies their scripted outcome. Effect, when
// set, runs before the result is returned and can create the files a real
// tool would have produced (a .git directory, object files, archives).
type Rule struct {
	Match  func(argv []string) bool
	Result toolchain.ExecResult
	Err    error
	Effect func(dir string, argv []string) error
}

// ScriptedRunner is a toolchain.Runner replaying canned results. It is
// safe for concurrent use; calls are recorded in dispatch order.
type ScriptedRunner struct {
	mu    sync.Mutex
	Rules []Rule
	calls []Call
}

// Run matches argv against the rules in order; the first match wins.
// Unmatched commands succeed with empty output, so tests only script
// what they assert on.
func (r *ScriptedRunner) Run(ctx context.Context, dir string, argv ...string) (toolchain.ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return toolchain.ExecResult{}, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, Call{Dir: dir, Argv: append([]string(nil), argv...)})
	rules := r.Rules
	r.mu.Unlock()

	for _, rule := range rules {
		if rule.Match == nil || !rule.Match(argv) {
			continue
		}
		if rule.Effect != nil {
			if err := rule.Effect(dir, argv); err != nil {
				return toolchain.ExecResult{}, fmt.Errorf("testkit effect: %w", err)
			}
		}
		return rule.Result, rule.Err
	}
	return toolchain.ExecResult{}, nil
}

// Calls returns a snapshot of every dispatched command.
func (r *ScriptedRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsMatching returns the recorded commands whose joined argv contains substr.
func (r *ScriptedRunner) CallsMatching(substr string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if strings.Contains(c.Line(), substr) {
			out = append(out, c)
		}
	}
	return out
}

// ArgvHasPrefix builds a Match function checking the leading argv words.
func ArgvHasPrefix(words ...string) func(argv []string) bool {
	return func(argv []string) bool {
		if len(argv) < len(words) {
			return false
		}
		for i, w := range words {
			if argv[i] != w {
				return false
			}
		}
		return true
	}
}

// ArgvContains builds a Match function checking that every word occurs
// somewhere in argv.
func ArgvContains(words ...string) func(argv []string) bool {
	return func(argv []string) bool {
		for _, w := range words {
			found := false
			for _, a := range argv {
				if a == w {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
}
