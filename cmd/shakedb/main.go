package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shakedb/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "shakedb",
	Short: "shakedb build-dependency database",
	Long:  `shakedb persists a forward-chaining build-dependency database across runs.`,
}

var (
	configPath string
	colorMode  string
	quiet      bool
)

// main wires the subcommands onto rootCmd, registers the persistent
// flags every subcommand shares, and executes. A returned error exits
// with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "shakedb.toml", "path to the host config file")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "progress display mode (auto|on|off): on forces it, off disables it, auto shows it only on a terminal; colored warning and version text is not affected")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress the progress display")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
