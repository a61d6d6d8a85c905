package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"shakedb/internal/config"
	"shakedb/internal/depdb"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Open the database, report what it loaded, and close it",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := depdb.Open(cfg.DatabasePath, cfg.UserVersion)
	if err != nil {
		return fmt.Errorf("shakedb: open database: %w", err)
	}
	entries := db.Entries()
	if err := db.Close(); err != nil {
		return fmt.Errorf("shakedb: close database: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return fmt.Sprint(entries[i].Key) < fmt.Sprint(entries[j].Key)
	})

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSTATUS\tVALUE\tEXECUTION")
	for _, e := range entries {
		fmt.Fprintf(w, "%v\t%s\t%v\t%v\n", e.Key, e.Status, e.Info.Value, e.Info.Execution)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(cmd.OutOrStdout(), "%d key(s) in %s\n", len(entries), cfg.DatabasePath)
	return nil
}
