package ruleengine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shakedb/internal/buildtrace"
	"shakedb/internal/depdb"
)

// alwaysValid trusts every Loaded entry the database has on disk. A real
// host would check the artifact the key names still matches the stamp
// recorded in its value; this demo has no artifacts to check.
func alwaysValid(_, _ any) bool { return true }

func toAnyKeys(keys []Key) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func toValues(vs []any) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = v.(Value)
	}
	return out
}

// runner carries the state one Run call threads through recursive
// resolution and worker execution. jobs bounds the concurrency of each
// individual Execute batch (grounded in driver.ParseDir's
// errgroup.SetLimit pattern) rather than the whole recursive tree: a
// rule that recurses into its own dependencies gets a fresh budget for
// that batch, so a low job count can never deadlock against a blocked
// parent holding a worker slot.
type runner struct {
	db     *depdb.Database
	reg    *Registry
	jobs   int
	events chan<- Event
	tracer buildtrace.Tracer
	runID  uint64
}

func emit(events chan<- Event, key Key, status Status) {
	if events == nil {
		return
	}
	select {
	case events <- Event{Key: key, Status: status}:
	default:
	}
}

// Run resolves targets against db, executing every key that needs
// building by dispatching to the Rule reg has registered for it, until
// every target (and everything it transitively depends on) is Ready.
// jobs bounds the concurrent Rule executions within each Execute batch
// (nested batches get their own budget, see runner); 0 means
// runtime.GOMAXPROCS(0).
// events, if non-nil, receives a best-effort status feed for a progress
// display; Run never blocks on it. If ctx carries a buildtrace.Tracer
// (attached with buildtrace.WithTracer), Run emits a ScopeRun span for
// the whole call, a ScopeKey span per key executed, and a ScopeStep span
// per Getter call a Rule makes while it runs.
func Run(ctx context.Context, db *depdb.Database, reg *Registry, targets []Key, jobs int, events chan<- Event) error {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	tracer := buildtrace.FromContext(ctx)
	runSpan := buildtrace.Begin(tracer, buildtrace.ScopeRun, "build", 0)
	rn := &runner{db: db, reg: reg, jobs: jobs, events: events, tracer: tracer, runID: runSpan.ID()}
	_, err := rn.resolve(ctx, targets)
	if err != nil {
		runSpan.End(err.Error())
	} else {
		runSpan.End("ok")
	}
	return err
}

// resolve blocks until every key in keys is Ready, executing or waiting
// on whatever depdb.Request says is missing, and returns their values in
// the same order as keys.
func (rn *runner) resolve(ctx context.Context, keys []Key) ([]Value, error) {
	anyKeys := toAnyKeys(keys)
	for {
		resp := rn.db.Request(ctx, alwaysValid, anyKeys)
		switch r := resp.(type) {
		case depdb.Ready:
			return toValues(r.Values), nil

		case depdb.Block:
			for _, k := range keys {
				emit(rn.events, k, Blocked)
			}
			if err := r.Wait(ctx); err != nil {
				return nil, fmt.Errorf("ruleengine: wait: %w", err)
			}
			// retry Request now that the barrier fired

		case depdb.Execute:
			execKeys := make([]Key, len(r.Keys))
			for i, k := range r.Keys {
				execKeys[i] = k.(Key)
				emit(rn.events, execKeys[i], Queued)
			}
			var eg errgroup.Group
			eg.SetLimit(min(rn.jobs, len(execKeys)))
			for _, k := range execKeys {
				k := k
				eg.Go(func() error {
					return rn.execute(ctx, k)
				})
			}
			if err := eg.Wait(); err != nil {
				return nil, err
			}
			// retry Request now that these keys are Built

		default:
			return nil, fmt.Errorf("ruleengine: unrecognized response %T", resp)
		}
	}
}

// runRule invokes rule and recovers any panic it raises, turning it into
// an ordinary error so one broken rule can't take down the whole worker
// goroutine pool mid-build.
func runRule(ctx context.Context, rule Rule, key Key, get Getter) (value Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return rule(ctx, key, get)
}

// execute runs the Rule for key exactly once and reports the result to
// db.Finished. A key left un-Finished on error keeps its Building status
// stuck for the rest of this run, which is by design: cancellation and
// failure handling are the driver's responsibility, not depdb's.
func (rn *runner) execute(ctx context.Context, key Key) error {
	emit(rn.events, key, Executing)

	keySpan := buildtrace.Begin(rn.tracer, buildtrace.ScopeKey, string(key), rn.runID)

	rule, ok := rn.reg.Lookup(key)
	if !ok {
		emit(rn.events, key, Failed)
		keySpan.End("no rule registered")
		return fmt.Errorf("ruleengine: no rule registered for key %q", key)
	}

	var depMu sync.Mutex
	var depends [][]any
	rec := buildtrace.NewRecorder()

	get := func(getCtx context.Context, deps ...Key) ([]Value, error) {
		stepSpan := buildtrace.Begin(rn.tracer, buildtrace.ScopeStep, fmt.Sprintf("wait:%v", deps), keySpan.ID())
		start := time.Now()
		values, err := rn.resolve(getCtx, deps)
		rec.Step(fmt.Sprintf("wait:%v", deps), start, time.Now())
		if err != nil {
			stepSpan.End(err.Error())
			return nil, err
		}
		stepSpan.End("ok")
		depMu.Lock()
		depends = append(depends, toAnyKeys(deps))
		depMu.Unlock()
		return values, nil
	}

	start := time.Now()
	value, err := runRule(ctx, rule, key, get)
	rec.Step(fmt.Sprintf("run:%s", key), start, time.Now())
	if err != nil {
		emit(rn.events, key, Failed)
		keySpan.End(err.Error())
		return fmt.Errorf("ruleengine: rule %q: %w", key, err)
	}

	execution := time.Since(start)
	if err := rn.db.Finished(key, value, depends, execution, rec.Traces()); err != nil {
		keySpan.End(err.Error())
		return fmt.Errorf("ruleengine: finished %q: %w", key, err)
	}
	emit(rn.events, key, Ready)
	keySpan.End(string(value))
	return nil
}
