// Package buildpipeline orchestrates fetching, compiling and combining
// grammar archives across the platform matrix.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"tsforge/internal/combine"
	"tsforge/internal/ctxlog"
	"tsforge/internal/fetch"
	"tsforge/internal/grammar"
	"tsforge/internal/manifest"
	"tsforge/internal/platform"
	"tsforge/internal/toolchain"
)

// Request configures one pipeline run.
type Request struct {
	Manifest *manifest.Manifest

	// CacheDir holds one checkout per grammar; BuildRoot holds one
	// working directory per platform; DistDir receives the combined
	// archives and metadata sidecars.
	CacheDir  string
	BuildRoot string
	DistDir   string

	// Platforms to build for. Empty means the host platform.
	Platforms []platform.Target

	// Jobs bounds worker-pool width (host CPU count if <= 0).
	Jobs int

	// FetchOnly stops after the fetch stage; SkipFetch assumes the
	// cache is already populated.
	FetchOnly bool
	SkipFetch bool

	ZigPath        string
	TreeSitter     string
	WindowsHeaders string
	FetchTimeout   time.Duration

	// Runner executes external commands (defaults to an ExecRunner).
	Runner   toolchain.Runner
	Progress ProgressSink
}

// GrammarFailure names a grammar that failed a stage and why.
type GrammarFailure struct {
	Name    string
	Message string
}

// PlatformSummary reports one platform's outcome.
type PlatformSummary struct {
	Platform platform.Target
	// Compiled lists the grammars folded into the combined archive,
	// sorted the way the metadata sidecar lists them.
	Compiled []string
	// UsesCPP lists compiled grammars carrying a C++ scanner.
	UsesCPP []string
	Failed  []GrammarFailure

	ArchivePath  string
	MetadataPath string

	// MergeErr is set when the platform's combine stage failed. It is a
	// stage-level failure: the run continues but exits non-zero.
	MergeErr error

	Elapsed time.Duration
}

// Result aggregates per-stage outcomes for the whole run.
type Result struct {
	FetchHits     int
	FetchCloned   int
	FetchFailures []GrammarFailure

	Platforms []PlatformSummary
	Timings   Timings
}

// Run drives the full pipeline: fetch every grammar, then for each
// requested platform compile all fetched grammars and merge the archives.
// Per-grammar failures are collected, never fatal; the returned error is
// reserved for systemic failures (bad configuration, missing toolchain,
// failed merge).
func Run(ctx context.Context, req *Request) (Result, error) {
	var result Result
	if req == nil || req.Manifest == nil {
		return result, errors.New("missing pipeline request")
	}
	reqCopy := *req
	req = &reqCopy
	if req.Jobs <= 0 {
		req.Jobs = runtime.GOMAXPROCS(0)
	}
	if req.Runner == nil {
		req.Runner = toolchain.ExecRunner{}
	}

	host, hostErr := platform.Host()
	if len(req.Platforms) == 0 {
		if hostErr != nil {
			return result, fmt.Errorf("no platform requested and host is unsupported: %w", hostErr)
		}
		req.Platforms = []platform.Target{host}
	}

	// Toolchain preflight: a missing cross-compiler must abort before
	// any grammar work starts, not halfway through the matrix.
	toolchains := make(map[string]*toolchain.Toolchain, len(req.Platforms))
	if !req.FetchOnly {
		for _, target := range req.Platforms {
			tc := toolchain.Select(req.ZigPath, target, host)
			tc.WindowsHeaders = req.WindowsHeaders
			if err := tc.EnsureAvailable(); err != nil {
				return result, err
			}
			toolchains[target.ID()] = tc
		}
	}

	available := req.Manifest.Grammars
	if !req.SkipFetch {
		fetched, err := runFetchStage(ctx, req, &result)
		if err != nil {
			return result, err
		}
		available = fetched
	}
	if req.FetchOnly {
		return result, nil
	}

	// One generator for the whole run: grammars missing parser.c are
	// generated once, not once per platform.
	gen := &grammar.Generator{Runner: req.Runner, TreeSitter: req.TreeSitter}

	// Platforms run one at a time to bound disk and CPU pressure; the
	// worker pool inside each stage provides the parallelism.
	var stageErrs []error
	for _, target := range req.Platforms {
		summary, err := runPlatform(ctx, req, toolchains[target.ID()], gen, target, available, &result.Timings)
		result.Platforms = append(result.Platforms, summary)
		if err != nil {
			if ctx.Err() != nil {
				return result, err
			}
			stageErrs = append(stageErrs, fmt.Errorf("%s: %w", target.ID(), err))
		}
	}
	return result, errors.Join(stageErrs...)
}

// runFetchStage fetches every manifest grammar with bounded parallelism
// and returns the grammars available to later stages. Results land in a
// per-index slice so workers never share an accumulator.
func runFetchStage(ctx context.Context, req *Request, result *Result) ([]manifest.Grammar, error) {
	logger := ctxlog.FromContext(ctx)
	grammars := req.Manifest.Grammars

	if err := os.MkdirAll(req.CacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	index, err := fetch.OpenIndex(req.CacheDir)
	if err != nil {
		return nil, err
	}
	fetcher := &fetch.Fetcher{
		CacheDir: req.CacheDir,
		Runner:   req.Runner,
		Index:    index,
		Timeout:  req.FetchTimeout,
	}

	start := time.Now()
	names := grammarNames(grammars)
	emitGrammars(req.Progress, names, "", StageFetch, StatusQueued)

	results := make([]fetch.Result, len(grammars))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(req.Jobs, len(grammars)))
	for i, gram := range grammars {
		i, gram := i, gram
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			emit(req.Progress, Event{Grammar: gram.Name, Stage: StageFetch, Status: StatusWorking})
			results[i] = fetcher.Fetch(gctx, gram)
			status := StatusDone
			var evErr error
			if !results[i].OK {
				status = StatusError
				evErr = errors.New(results[i].Message)
			}
			emit(req.Progress, Event{Grammar: gram.Name, Stage: StageFetch, Status: status, Err: evErr})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Timings.Set(StageFetch, time.Since(start))

	var available []manifest.Grammar
	for i, res := range results {
		switch {
		case res.OK && res.CacheHit:
			result.FetchHits++
			available = append(available, grammars[i])
		case res.OK:
			result.FetchCloned++
			available = append(available, grammars[i])
		default:
			logger.Warn("fetch failed", "grammar", res.Name, "reason", res.Message)
			result.FetchFailures = append(result.FetchFailures, GrammarFailure{Name: res.Name, Message: res.Message})
		}
	}
	return available, nil
}

// runPlatform compiles every available grammar for one target and merges
// the archives. The returned error is stage-level (merge or setup), not
// per-grammar.
func runPlatform(ctx context.Context, req *Request, tc *toolchain.Toolchain, gen *grammar.Generator, target platform.Target, grammars []manifest.Grammar, timings *Timings) (PlatformSummary, error) {
	summary := PlatformSummary{Platform: target}
	start := time.Now()
	defer func() { summary.Elapsed = time.Since(start) }()

	buildDir := filepath.Join(req.BuildRoot, target.ID())
	if err := os.MkdirAll(buildDir, 0o750); err != nil {
		return summary, fmt.Errorf("failed to create build dir: %w", err)
	}

	compiler := &grammar.Compiler{
		CacheDir:  req.CacheDir,
		BuildDir:  buildDir,
		Toolchain: tc,
		Runner:    req.Runner,
		Generator: gen,
		HostOS:    hostOS(),
	}

	names := grammarNames(grammars)
	emitGrammars(req.Progress, names, target.ID(), StageCompile, StatusQueued)

	results := make([]compileOutcome, len(grammars))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(req.Jobs, max(len(grammars), 1)))
	for i, gram := range grammars {
		i, gram := i, gram
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			emit(req.Progress, Event{Grammar: gram.Name, Platform: target.ID(), Stage: StageCompile, Status: StatusWorking})
			unitStart := time.Now()
			res := compiler.Compile(gctx, gram)
			results[i] = compileOutcome{grammar: gram, ok: res.OK, message: res.Message, usesCPP: res.UsesCPP}
			status := StatusDone
			var evErr error
			if !res.OK {
				status = StatusError
				evErr = errors.New(res.Message)
			}
			emit(req.Progress, Event{
				Grammar: gram.Name, Platform: target.ID(), Stage: StageCompile,
				Status: status, Err: evErr, Elapsed: time.Since(unitStart),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	timings.Add(StageCompile, time.Since(start))

	var compiled []manifest.Grammar
	for _, res := range results {
		if !res.ok {
			summary.Failed = append(summary.Failed, GrammarFailure{Name: res.grammar.Name, Message: res.message})
			continue
		}
		compiled = append(compiled, res.grammar)
		summary.Compiled = append(summary.Compiled, res.grammar.Name)
		if res.usesCPP {
			summary.UsesCPP = append(summary.UsesCPP, res.grammar.Name)
		}
	}
	sort.Strings(summary.Compiled)
	sort.Strings(summary.UsesCPP)

	combineStart := time.Now()
	emit(req.Progress, Event{Platform: target.ID(), Stage: StageCombine, Status: StatusWorking})
	aggregator := &combine.Aggregator{
		BuildDir:  buildDir,
		DistDir:   req.DistDir,
		Toolchain: tc,
		Runner:    req.Runner,
	}
	out, err := aggregator.Aggregate(ctx, target, compiled)
	timings.Add(StageCombine, time.Since(combineStart))
	if err != nil {
		summary.MergeErr = err
		emit(req.Progress, Event{Platform: target.ID(), Stage: StageCombine, Status: StatusError, Err: err})
		return summary, err
	}
	summary.ArchivePath = out.ArchivePath
	summary.MetadataPath = out.MetadataPath
	emit(req.Progress, Event{Platform: target.ID(), Stage: StageCombine, Status: StatusDone, Elapsed: time.Since(combineStart)})
	return summary, nil
}

type compileOutcome struct {
	grammar manifest.Grammar
	ok      bool
	message string
	usesCPP bool
}

func grammarNames(grammars []manifest.Grammar) []string {
	names := make([]string, 0, len(grammars))
	for _, g := range grammars {
		names = append(names, g.Name)
	}
	return names
}

// hostOS is the OS the pipeline runs on, mapped into the platform model.
// Windows cross header injection keys off it.
func hostOS() platform.OS {
	if host, err := platform.Host(); err == nil {
		return host.OS
	}
	return platform.Linux
}
