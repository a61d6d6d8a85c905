package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"shakedb/internal/buildtrace"
	"shakedb/internal/config"
	"shakedb/internal/depdb"
	"shakedb/internal/progressui"
	"shakedb/internal/ruleengine"
)

var buildCmd = &cobra.Command{
	Use:   "build [targets...]",
	Short: "Build the configured targets, or the ones named on the command line",
	Args:  cobra.ArbitraryArgs,
	RunE:  runBuild,
}

var (
	traceOutput    string
	traceRingSize  int
	traceHeartbeat time.Duration
)

func init() {
	buildCmd.Flags().StringVar(&traceOutput, "trace-output", "-", `trace stream destination ("-" for stderr, or a file path); ignored when trace_level is off`)
	buildCmd.Flags().IntVar(&traceRingSize, "trace-ring-size", 0, "also keep the last N trace events in an in-memory ring, which is not written out (0 disables the ring)")
	buildCmd.Flags().DurationVar(&traceHeartbeat, "trace-heartbeat", 0, "emit a periodic heartbeat trace event at this interval while tracing is enabled (0 disables)")
}

// newBuildTracer builds the Tracer this build run traces through, per
// cfg.Level (parsed from shakedb.toml's trace_level) and the --trace-*
// flags. A LevelOff config costs nothing beyond the nopTracer singleton.
func newBuildTracer(cfg config.Config) (buildtrace.Tracer, *buildtrace.Heartbeat, error) {
	if cfg.Level == buildtrace.LevelOff {
		return buildtrace.Nop, nil, nil
	}

	mode := buildtrace.ModeStream
	if traceRingSize > 0 {
		mode = buildtrace.ModeBoth
	}

	tracer, err := buildtrace.New(buildtrace.Config{
		Level:      cfg.Level,
		Mode:       mode,
		OutputPath: traceOutput,
		RingSize:   traceRingSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("shakedb: trace: %w", err)
	}
	return tracer, buildtrace.StartHeartbeat(tracer, traceHeartbeat), nil
}

// buildRegistry turns a config's [[Target]] table into a Registry of
// demo Rules: each target's value is the hex digest of its own name
// folded together with the digests of its dependencies, in dependency
// order, computed via a single Getter call per target (one dependency
// group). It stands in for whatever a real host would compute — object
// files, fetched artifacts, rendered templates — without needing a
// filesystem or network to demonstrate the database end to end.
func buildRegistry(cfg config.Config) *ruleengine.Registry {
	reg := ruleengine.NewRegistry()
	for _, t := range cfg.Target {
		t := t
		deps := make([]ruleengine.Key, len(t.Depends))
		for i, d := range t.Depends {
			deps[i] = ruleengine.Key(d)
		}
		reg.Register(ruleengine.Key(t.Name), func(ctx context.Context, key ruleengine.Key, get ruleengine.Getter) (ruleengine.Value, error) {
			var depValues []ruleengine.Value
			if len(deps) > 0 {
				var err error
				depValues, err = get(ctx, deps...)
				if err != nil {
					return "", err
				}
			}
			return digest(key, depValues), nil
		})
	}
	return reg
}

func digest(key ruleengine.Key, deps []ruleengine.Value) ruleengine.Value {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", key)
	for _, d := range deps {
		fmt.Fprintf(h, "%s\n", d)
	}
	return ruleengine.Value(hex.EncodeToString(h.Sum(nil))[:16])
}

func targetNames(cfg config.Config) []string {
	names := make([]string, len(cfg.Target))
	for i, t := range cfg.Target {
		names[i] = t.Name
	}
	sort.Strings(names)
	return names
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		names = targetNames(cfg)
	}
	if len(names) == 0 {
		return fmt.Errorf("no targets: pass names on the command line or add [[Target]] to %s", configPath)
	}

	db, err := depdb.Open(cfg.DatabasePath, cfg.UserVersion)
	if err != nil {
		return fmt.Errorf("shakedb: open database: %w", err)
	}
	defer db.Close()

	reg := buildRegistry(cfg)
	targets := make([]ruleengine.Key, len(names))
	for i, n := range names {
		targets[i] = ruleengine.Key(n)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tracer, heartbeat, err := newBuildTracer(cfg)
	if err != nil {
		return err
	}
	defer heartbeat.Stop()
	defer tracer.Close()
	ctx = buildtrace.WithTracer(ctx, tracer)

	if shouldUseTUI() {
		return runBuildWithUI(ctx, "shakedb build "+strings.Join(names, " "), db, reg, targets, cfg.Jobs)
	}

	if err := ruleengine.Run(ctx, db, reg, targets, cfg.Jobs, nil); err != nil {
		return fmt.Errorf("shakedb: build: %w", err)
	}
	fmt.Fprintf(os.Stdout, "built: %s\n", strings.Join(names, ", "))
	return nil
}

func runBuildWithUI(ctx context.Context, title string, db *depdb.Database, reg *ruleengine.Registry, targets []ruleengine.Key, jobs int) error {
	events := make(chan ruleengine.Event, 256)
	errCh := make(chan error, 1)

	go func() {
		errCh <- ruleengine.Run(ctx, db, reg, targets, jobs, events)
		close(events)
	}()

	model := progressui.NewProgressModel(title, targets, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	buildErr := <-errCh
	if uiErr != nil {
		return uiErr
	}
	if buildErr != nil {
		return fmt.Errorf("shakedb: build: %w", buildErr)
	}
	return nil
}
