// Package main implements the tsforge CLI.
package main

import (
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tsforge/internal/ctxlog"
	"tsforge/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "tsforge",
	Short: "Build combined tree-sitter grammar archives",
	Long:  `tsforge fetches grammar repositories and compiles them into one static archive per platform`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(platformsCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("verbose", false, "log external commands and cache decisions")

	cobra.OnInitialize(applyColorMode)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyColorMode() {
	mode, err := rootCmd.PersistentFlags().GetString("color")
	if err != nil {
		return
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	}
}

// loggerFor builds the slog logger installed into the command context.
func loggerFor(cmd *cobra.Command) *slog.Logger {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil || !verbose {
		return ctxlog.New(os.Stderr, slog.LevelWarn)
	}
	return ctxlog.New(os.Stderr, slog.LevelDebug)
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
