package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"tsforge/internal/buildpipeline"
)

var (
	summaryOKColor   = color.New(color.FgGreen)
	summaryFailColor = color.New(color.FgRed, color.Bold)
	summaryDimColor  = color.New(color.Faint)
)

// printRunSummary renders the per-platform outcome of a pipeline run.
func printRunSummary(out io.Writer, result buildpipeline.Result) {
	if out == nil {
		return
	}
	if result.FetchHits > 0 || result.FetchCloned > 0 {
		_, _ = fmt.Fprintf(out, "fetched %d grammar(s) (%d cached, %d cloned)\n",
			result.FetchHits+result.FetchCloned, result.FetchHits, result.FetchCloned)
	}
	for _, failure := range result.FetchFailures {
		_, _ = fmt.Fprintf(out, "%s %s: %s\n", summaryFailColor.Sprint("fetch failed"), failure.Name, failure.Message)
	}
	for _, summary := range result.Platforms {
		id := summary.Platform.ID()
		switch {
		case summary.MergeErr != nil:
			_, _ = fmt.Fprintf(out, "%s [%s] %v\n", summaryFailColor.Sprint("merge failed"), id, summary.MergeErr)
		case len(summary.Compiled) == 0:
			_, _ = fmt.Fprintf(out, "[%s] no grammars compiled\n", id)
		default:
			_, _ = fmt.Fprintf(out, "%s [%s] %d grammar(s) -> %s\n",
				summaryOKColor.Sprint("combined"), id, len(summary.Compiled), summary.ArchivePath)
		}
		if len(summary.UsesCPP) > 0 {
			_, _ = fmt.Fprintf(out, "  %s\n", summaryDimColor.Sprintf("c++ scanners: %d", len(summary.UsesCPP)))
		}
		for _, failure := range summary.Failed {
			_, _ = fmt.Fprintf(out, "  %s %s: %s\n", summaryFailColor.Sprint("failed"), failure.Name, failure.Message)
		}
	}
}

func printStageTimings(out io.Writer, timings buildpipeline.Timings) {
	if out == nil {
		return
	}
	if timings.Has(buildpipeline.StageFetch) {
		_, _ = fmt.Fprintf(out, "fetched %.1f ms\n", toMillis(timings.Duration(buildpipeline.StageFetch)))
	}
	if timings.Has(buildpipeline.StageCompile) {
		_, _ = fmt.Fprintf(out, "compiled %.1f ms\n", toMillis(timings.Duration(buildpipeline.StageCompile)))
	}
	if timings.Has(buildpipeline.StageCombine) {
		_, _ = fmt.Fprintf(out, "combined %.1f ms\n", toMillis(timings.Duration(buildpipeline.StageCombine)))
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
