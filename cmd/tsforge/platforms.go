package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tsforge/internal/platform"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported target platforms",
	Args:  cobra.NoArgs,
	RunE:  runPlatforms,
}

func runPlatforms(_ *cobra.Command, _ []string) error {
	host, hostErr := platform.Host()
	hostColor := color.New(color.FgCyan)
	for _, target := range platform.All() {
		line := target.ID()
		if hostErr == nil && target == host {
			line = hostColor.Sprintf("%s (host)", line)
		}
		_, _ = fmt.Fprintln(os.Stdout, line)
	}
	return nil
}
