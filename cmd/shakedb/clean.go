package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shakedb/internal/config"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the database snapshot and any stale journal",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	removed := 0
	for _, suffix := range []string{".database", ".journal"} {
		path := cfg.DatabasePath + suffix
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("shakedb: remove %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", path)
		removed++
	}
	if removed == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to clean")
	}
	return nil
}
