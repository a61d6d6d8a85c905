// Package depdb implements the in-memory status map, the request/finish
// protocol, and the snapshot/journal lifecycle that together let a build
// driver ask "what do I need for keys K?" and be told exactly once per
// run whether to execute, wait, or use an already-valid value.
package depdb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"shakedb/internal/barrier"
	"shakedb/internal/journal"
	"shakedb/internal/witness"
)

var warnPrefix = color.New(color.FgYellow, color.Bold).Sprint("warning:")

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "shakedb: %s %s\n", warnPrefix, fmt.Sprintf(format, args...))
}

// ValidStored lets a caller veto a Loaded value before the database
// trusts it — for example because the on-disk artifact it names no
// longer matches the recorded stamp.
type ValidStored func(key, value any) bool

// Database is the in-memory status map plus its backing journal. The
// zero value is not usable; construct one with Open.
type Database struct {
	mu          sync.Mutex
	status      map[any]status
	time        LogicalTime
	basePath    string
	userVersion int
	jrnl        *journal.Journal
	closed      bool
}

func (db *Database) snapshotPath() string { return db.basePath + ".database" }

// Open loads the snapshot at basePath+".database", replays and subsumes
// any residual journal at basePath+".journal", and opens a fresh journal
// for this run. userVersion must match the value bumped by the host
// whenever its recipe semantics change; a mismatch forces a cold start.
func Open(basePath string, userVersion int) (*Database, error) {
	snapPath := basePath + ".database"
	journalPath := basePath + ".journal"

	snapTime, snapRecords, err := readSnapshot(snapPath, userVersion)
	if err != nil {
		warnf("dropping snapshot %s: %v", snapPath, err)
		snapTime, snapRecords = 0, nil
	}

	statusMap := make(map[any]status, len(snapRecords))
	for _, rec := range snapRecords {
		statusMap[rec.Key] = loadedStatus{info: rec.Info}
	}
	timestamp := snapTime + 1

	if _, err := os.Stat(journalPath); err == nil {
		jRecords, jErr := journal.Replay(journalPath, userVersion)
		if jErr != nil {
			warnf("dropping journal %s: %v", journalPath, jErr)
			jRecords = nil
		}
		for _, rec := range jRecords {
			statusMap[rec.Key] = loadedStatus{info: rec.Info}
		}
		if err := os.Remove(journalPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("depdb: unlink stale journal %s: %w", journalPath, err)
		}
		if err := writeSnapshot(snapPath, userVersion, timestamp, snapshotRecords(statusMap)); err != nil {
			return nil, fmt.Errorf("depdb: write recovery snapshot: %w", err)
		}
		timestamp++
	}

	jrnl, err := journal.Open(journalPath, userVersion)
	if err != nil {
		return nil, fmt.Errorf("depdb: open journal: %w", err)
	}

	return &Database{
		status:      statusMap,
		time:        timestamp,
		basePath:    basePath,
		userVersion: userVersion,
		jrnl:        jrnl,
	}, nil
}

// Close atomically snapshots the current status map and closes the
// journal (which unlinks it, since the fresh snapshot now subsumes its
// contents). Idempotent.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	if err := writeSnapshot(db.snapshotPath(), db.userVersion, db.time, snapshotRecords(db.status)); err != nil {
		return fmt.Errorf("depdb: write snapshot: %w", err)
	}
	if err := db.jrnl.Close(); err != nil {
		return fmt.Errorf("depdb: close journal: %w", err)
	}
	db.closed = true
	return nil
}

// snapshotRecords flattens the status map into the records that belong
// in a snapshot: Loaded and Built entries as-is, Building entries only
// when they carry prior info (rewritten as Loaded per §6), everything
// else skipped.
func snapshotRecords(m map[any]status) []journal.Record {
	out := make([]journal.Record, 0, len(m))
	for k, s := range m {
		switch v := s.(type) {
		case loadedStatus:
			out = append(out, journal.Record{Key: k, Info: v.info})
		case builtStatus:
			out = append(out, journal.Record{Key: k, Info: v.info})
		case buildingStatus:
			if v.prior != nil {
				out = append(out, journal.Record{Key: k, Info: *v.prior})
			}
		}
	}
	return out
}

// fResult is the outcome of resolving one key, or of concatenating the
// resolutions of a dependency group.
type fResult struct {
	execute  []any
	barriers []*barrier.Barrier
	ready    []readyPair
}

type readyPair struct {
	time  LogicalTime
	value any
}

func concatResults(results []fResult) fResult {
	var out fResult
	for _, r := range results {
		out.execute = append(out.execute, r.execute...)
		out.barriers = append(out.barriers, r.barriers...)
	}
	if len(out.execute) == 0 && len(out.barriers) == 0 {
		for _, r := range results {
			out.ready = append(out.ready, r.ready...)
		}
	}
	return out
}

// f resolves one key under the lock, mutating the status map as needed.
func (db *Database) f(key any, validStored ValidStored) fResult {
	s, ok := db.status[key]
	if !ok {
		bar := barrier.New()
		db.status[key] = buildingStatus{bar: bar}
		return fResult{execute: []any{key}}
	}
	switch v := s.(type) {
	case buildingStatus:
		return fResult{barriers: []*barrier.Barrier{v.bar}}
	case builtStatus:
		return fResult{ready: []readyPair{{time: v.info.Time, value: v.info.Value}}}
	case loadedStatus:
		if !validStored(key, v.info.Value) {
			prior := v.info
			bar := barrier.New()
			db.status[key] = buildingStatus{bar: bar, prior: &prior}
			return fResult{execute: []any{key}}
		}
		return db.validateHistory(key, v.info, v.info.Depends, validStored)
	default:
		panic(fmt.Sprintf("depdb: unreachable status type %T", s))
	}
}

// validateHistory implements §4.5.4 as an explicit loop over the
// remaining dependency groups, rather than recursion on the group list,
// so a long depends chain never grows the call stack beyond the depth of
// a single group's own key resolution.
func (db *Database) validateHistory(key any, info Info, groups [][]any, validStored ValidStored) fResult {
	for _, group := range groups {
		subResults := make([]fResult, len(group))
		for i, dep := range group {
			subResults[i] = db.f(dep, validStored)
		}
		agg := concatResults(subResults)
		if len(agg.execute) > 0 || len(agg.barriers) > 0 {
			return agg
		}
		var maxTime LogicalTime
		for i, rp := range agg.ready {
			if i == 0 || rp.time > maxTime {
				maxTime = rp.time
			}
		}
		if maxTime > info.Time {
			prior := info
			bar := barrier.New()
			db.status[key] = buildingStatus{bar: bar, prior: &prior}
			return fResult{execute: []any{key}}
		}
	}
	db.status[key] = builtStatus{info: info}
	return fResult{ready: []readyPair{{time: info.Time, value: info.Value}}}
}

// Request resolves keys against the status map in one lock-held
// traversal that performs no I/O, and returns exactly one of Execute,
// Block, or Ready. validStored is consulted once per Loaded entry
// encountered during the traversal.
func (db *Database) Request(_ context.Context, validStored ValidStored, keys []any) Response {
	db.mu.Lock()
	defer db.mu.Unlock()

	results := make([]fResult, len(keys))
	for i, k := range keys {
		results[i] = db.f(k, validStored)
	}
	agg := concatResults(results)

	if len(agg.execute) > 0 {
		return Execute{Keys: agg.execute}
	}
	if len(agg.barriers) > 0 {
		bs := agg.barriers
		return Block{Wait: func(ctx context.Context) error {
			return barrier.WaitAny(ctx, bs...)
		}}
	}
	values := make([]any, len(agg.ready))
	for i, rp := range agg.ready {
		values[i] = rp.value
	}
	return Ready{Values: values}
}

// Entry summarizes one key's status for inspection tools (the status CLI
// subcommand, tests). Status is one of "loaded", "building", or "built".
type Entry struct {
	Key    any
	Status string
	Info   Info
}

// Entries returns a snapshot of every key currently in the status map, in
// no particular order. It takes the same lock Request and Finished use.
func (db *Database) Entries() []Entry {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]Entry, 0, len(db.status))
	for k, s := range db.status {
		switch v := s.(type) {
		case loadedStatus:
			out = append(out, Entry{Key: k, Status: "loaded", Info: v.info})
		case builtStatus:
			out = append(out, Entry{Key: k, Status: "built", Info: v.info})
		case buildingStatus:
			e := Entry{Key: k, Status: "building"}
			if v.prior != nil {
				e.Info = *v.prior
			}
			out = append(out, e)
		}
	}
	return out
}

// Finished reports that key's execution has completed. It must be
// called exactly once for every key an Execute response named; a second
// call, or a call for a key never returned by Execute, is ErrProtocol.
//
// The status-map mutation happens under the lock; the journal append and
// barrier release happen after it is released, so that a waiter who
// observes Built(info) via a later Request is guaranteed the journal
// already holds it durably.
func (db *Database) Finished(key any, value any, depends [][]any, execution time.Duration, traces []Trace) error {
	db.mu.Lock()
	s, ok := db.status[key]
	if !ok {
		db.mu.Unlock()
		return fmt.Errorf("%w: key %v", ErrProtocol, key)
	}
	bs, ok := s.(buildingStatus)
	if !ok {
		db.mu.Unlock()
		return fmt.Errorf("%w: key %v", ErrProtocol, key)
	}

	info := Info{
		Value:     value,
		Time:      db.time,
		Depends:   depends,
		RealTime:  db.time,
		Execution: execution,
		Traces:    traces,
	}
	if bs.prior != nil && witness.Equal(bs.prior.Value, value) {
		info.Time = bs.prior.Time
	}
	db.status[key] = builtStatus{info: info}
	db.mu.Unlock()

	if err := db.jrnl.Append(key, info); err != nil {
		return fmt.Errorf("depdb: append journal: %w", err)
	}
	bs.bar.Release()
	return nil
}
