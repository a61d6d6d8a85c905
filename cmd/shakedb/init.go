package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shakedb/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default shakedb.toml in the current directory",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("shakedb: %s already exists", configPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("shakedb: stat %s: %w", configPath, err)
	}

	if err := config.Save(configPath, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
	return nil
}
