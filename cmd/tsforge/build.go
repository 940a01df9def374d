// Package main implements the tsforge CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tsforge/internal/buildpipeline"
	"tsforge/internal/ctxlog"
	"tsforge/internal/manifest"
	"tsforge/internal/platform"
	"tsforge/internal/toolchain"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags]",
	Short: "Fetch, compile and combine grammar archives",
	Long:  "Fetch every grammar in the manifest, compile each one for the requested platforms and merge the results into one archive per platform.",
	Args:  cobra.NoArgs,
	RunE:  buildExecution,
}

func buildExecution(cmd *cobra.Command, _ []string) error {
	platformValues, err := cmd.Flags().GetStringSlice("platform")
	if err != nil {
		return err
	}
	allPlatforms, err := cmd.Flags().GetBool("all-platforms")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	skipFetch, err := cmd.Flags().GetBool("skip-fetch")
	if err != nil {
		return err
	}
	manifestFlag, err := cmd.Flags().GetString("manifest")
	if err != nil {
		return err
	}
	printCommands, err := cmd.Flags().GetBool("print-commands")
	if err != nil {
		return err
	}
	keepTmp, err := cmd.Flags().GetBool("keep-tmp")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}

	if allPlatforms && len(platformValues) > 0 {
		return fmt.Errorf("--platform and --all-platforms are mutually exclusive")
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	project, err := loadForgeProject(".")
	if err != nil {
		return err
	}
	manifestPath := project.manifestPath()
	if manifestFlag != "" {
		manifestPath = manifestFlag
	}
	man, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	targets, err := resolveTargets(platformValues, allPlatforms)
	if err != nil {
		return err
	}

	if jobs <= 0 {
		jobs = project.Config.Build.Jobs
	}

	req := buildpipeline.Request{
		Manifest:       man,
		CacheDir:       project.cacheDir(),
		BuildRoot:      project.buildRoot(),
		DistDir:        project.distDir(),
		Platforms:      targets,
		Jobs:           jobs,
		SkipFetch:      skipFetch,
		ZigPath:        project.Config.Build.Zig,
		TreeSitter:     project.Config.Build.TreeSitter,
		WindowsHeaders: project.windowsHeaders(),
	}
	if printCommands {
		req.Runner = toolchain.ExecRunner{Echo: func(line string) {
			_, _ = fmt.Fprintln(os.Stdout, line)
		}}
	}

	ctx := ctxlog.WithLogger(cmd.Context(), loggerFor(cmd))

	useTUI := shouldUseTUI(uiModeValue) && !quiet && !printCommands
	var result buildpipeline.Result
	var runErr error
	if useTUI {
		result, runErr = runPipelineWithUI(ctx, "tsforge build", man.Names(), &req)
	} else {
		result, runErr = buildpipeline.Run(ctx, &req)
	}

	if !quiet {
		printRunSummary(os.Stdout, result)
		printStageTimings(os.Stdout, result.Timings)
		if keepTmp {
			_, _ = fmt.Fprintf(os.Stdout, "build tree: %s\n", req.BuildRoot)
		}
	}
	if runErr != nil {
		return runErr
	}
	if !keepTmp {
		if err := os.RemoveAll(req.BuildRoot); err != nil {
			return fmt.Errorf("failed to remove build tree: %w", err)
		}
	}
	if n := failureCount(result); n > 0 {
		return fmt.Errorf("%d grammar(s) failed; see summary above", n)
	}
	return nil
}

// resolveTargets maps CLI platform selectors onto concrete targets.
// No selector means the host platform.
func resolveTargets(ids []string, all bool) ([]platform.Target, error) {
	if all {
		return platform.All(), nil
	}
	targets := make([]platform.Target, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		target, err := platform.Parse(id)
		if err != nil {
			return nil, err
		}
		if seen[target.ID()] {
			continue
		}
		seen[target.ID()] = true
		targets = append(targets, target)
	}
	return targets, nil
}

func failureCount(result buildpipeline.Result) int {
	n := len(result.FetchFailures)
	for _, summary := range result.Platforms {
		n += len(summary.Failed)
	}
	return n
}

func init() {
	buildCmd.Flags().StringSlice("platform", nil, "target platform id (repeatable; defaults to the host)")
	buildCmd.Flags().Bool("all-platforms", false, "build the full platform matrix")
	buildCmd.Flags().Int("jobs", 0, "worker pool width (defaults to CPU count)")
	buildCmd.Flags().Bool("skip-fetch", false, "assume the grammar cache is already populated")
	buildCmd.Flags().String("manifest", "", "path to the grammar manifest (defaults to grammars.json)")
	buildCmd.Flags().Bool("print-commands", false, "print external commands as they run")
	buildCmd.Flags().Bool("keep-tmp", false, "preserve the per-platform build tree")
	buildCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
}
