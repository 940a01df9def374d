package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"tsforge/internal/buildpipeline"
	"tsforge/internal/ui"
)

type pipelineOutcome struct {
	result buildpipeline.Result
	err    error
}

// runPipelineWithUI drives the pipeline behind a Bubble Tea progress
// view. The pipeline runs in a goroutine feeding a buffered event
// channel; closing the channel tells the model to quit.
func runPipelineWithUI(ctx context.Context, title string, grammars []string, req *buildpipeline.Request) (buildpipeline.Result, error) {
	if req == nil {
		return buildpipeline.Result{}, fmt.Errorf("missing pipeline request")
	}
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan pipelineOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = buildpipeline.ChannelSink{Ch: events}
		res, err := buildpipeline.Run(ctx, &reqCopy)
		outcomeCh <- pipelineOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, grammars, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
