package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tsforge/internal/buildpipeline"
	"tsforge/internal/ctxlog"
	"tsforge/internal/manifest"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [flags]",
	Short: "Fetch grammar repositories into the cache",
	Long:  "Fetch every grammar in the manifest at its pinned revision without compiling anything. Already-fetched grammars are left untouched.",
	Args:  cobra.NoArgs,
	RunE:  fetchExecution,
}

func fetchExecution(cmd *cobra.Command, _ []string) error {
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	manifestFlag, err := cmd.Flags().GetString("manifest")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
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
	if jobs <= 0 {
		jobs = project.Config.Build.Jobs
	}

	req := buildpipeline.Request{
		Manifest:  man,
		CacheDir:  project.cacheDir(),
		Jobs:      jobs,
		FetchOnly: true,
	}
	ctx := ctxlog.WithLogger(cmd.Context(), loggerFor(cmd))
	result, runErr := buildpipeline.Run(ctx, &req)
	if !quiet {
		printRunSummary(os.Stdout, result)
		printStageTimings(os.Stdout, result.Timings)
	}
	if runErr != nil {
		return runErr
	}
	if n := len(result.FetchFailures); n > 0 {
		return fmt.Errorf("%d grammar(s) failed to fetch", n)
	}
	return nil
}

func init() {
	fetchCmd.Flags().Int("jobs", 0, "worker pool width (defaults to CPU count)")
	fetchCmd.Flags().String("manifest", "", "path to the grammar manifest (defaults to grammars.json)")
}
