package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"tsforge/internal/ctxlog"
)

// ExecResult captures the observable outcome of one external command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output joins captured stdout and stderr for diagnostics.
func (r ExecResult) Output() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// Runner executes external commands (git, compilers, archivers, generators).
// Implementations must honor context cancellation by killing the child
// process. Tests substitute a scripted fake.
type Runner interface {
	Run(ctx context.Context, dir string, argv ...string) (ExecResult, error)
}

// CommandLine renders argv the way a shell user would type it, for error
// messages and --print-commands output.
func CommandLine(argv []string) string {
	quoted := make([]string, 0, len(argv))
	for _, arg := range argv {
		if arg == "" || strings.ContainsAny(arg, " \t\"'") {
			quoted = append(quoted, fmt.Sprintf("%q", arg))
			continue
		}
		quoted = append(quoted, arg)
	}
	return strings.Join(quoted, " ")
}

// ExecRunner runs commands via os/exec with captured output.
type ExecRunner struct {
	// Echo receives each command line before it runs (nil to disable).
	Echo func(line string)
}

// Run executes argv in dir, waiting for completion or context cancellation.
// A non-zero exit returns an error carrying the full command line; captured
// output is always returned so callers can surface compiler diagnostics.
func (r ExecRunner) Run(ctx context.Context, dir string, argv ...string) (ExecResult, error) {
	if len(argv) == 0 {
		return ExecResult{}, fmt.Errorf("empty command")
	}
	line := CommandLine(argv)
	if r.Echo != nil {
		r.Echo(line)
	}
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	// #nosec G204 -- argv comes from the toolchain configuration, not user input
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Make sure a cancelled context does not leave the worker waiting on
	// a child that ignores SIGKILL delivery ordering.
	cmd.WaitDelay = 10 * time.Second

	err := cmd.Run()
	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	logger.Debug("ran external command",
		"cmd", line, "dir", dir, "exit", result.ExitCode, "elapsed", time.Since(start))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s: %w", argv[0], ctxErr)
		}
		if _, ok := err.(*exec.ExitError); ok {
			return result, fmt.Errorf("%s exited with code %d", argv[0], result.ExitCode)
		}
		return result, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}
	return result, nil
}
