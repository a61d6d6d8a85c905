package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shakedb/internal/config"
	"shakedb/internal/depdb"
	"shakedb/internal/graphview"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the topological batches of a loaded database snapshot",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
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

	edges := make(map[string][]string, len(entries))
	for _, e := range entries {
		key := fmt.Sprint(e.Key)
		deps := make([]string, 0)
		for _, group := range e.Info.Depends {
			for _, d := range group {
				deps = append(deps, fmt.Sprint(d))
			}
		}
		edges[key] = deps
	}

	idx := graphview.BuildIndex(edges)
	g := graphview.BuildGraph(idx, edges)
	topo := graphview.ToposortKahn(g)

	out := cmd.OutOrStdout()
	for i, batch := range idx.BatchNames(topo.Batches) {
		fmt.Fprintf(out, "batch %d: %s\n", i, strings.Join(batch, ", "))
	}
	if topo.Cyclic {
		fmt.Fprintf(out, "cycle among: %s\n", strings.Join(idx.Names(topo.Cycles), ", "))
	}
	return nil
}
