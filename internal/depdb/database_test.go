package depdb

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shakedb/internal/journal"
	"shakedb/internal/witness"
)

type dbTestKey struct {
	Name string
}

type dbTestValue struct {
	N int
}

func init() {
	witness.RegisterKey[dbTestKey]("depdb-test-key")
	witness.RegisterValue[dbTestValue]("depdb-test-value", func(a, b dbTestValue) bool { return a == b })
}

func alwaysValid(any, any) bool { return true }

func newTestDB(t *testing.T) (*Database, string) {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "db")
	db, err := Open(base, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, base
}

func mustExecute(t *testing.T, resp Response) Execute {
	t.Helper()
	ex, ok := resp.(Execute)
	if !ok {
		t.Fatalf("expected Execute, got %#v", resp)
	}
	return ex
}

func mustReady(t *testing.T, resp Response) Ready {
	t.Helper()
	r, ok := resp.(Ready)
	if !ok {
		t.Fatalf("expected Ready, got %#v", resp)
	}
	return r
}

// S1: trivial build.
func TestColdStartThenReady(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	a := dbTestKey{Name: "A"}

	resp := db.Request(ctx, alwaysValid, []any{a})
	ex := mustExecute(t, resp)
	if len(ex.Keys) != 1 || ex.Keys[0] != a {
		t.Fatalf("Execute keys = %v", ex.Keys)
	}

	if err := db.Finished(a, dbTestValue{N: 1}, nil, time.Millisecond, nil); err != nil {
		t.Fatalf("Finished: %v", err)
	}

	resp = db.Request(ctx, alwaysValid, []any{a})
	r := mustReady(t, resp)
	if len(r.Values) != 1 || r.Values[0] != (dbTestValue{N: 1}) {
		t.Fatalf("Ready values = %v", r.Values)
	}
}

// S2/S3: dependency validation, both the stale-valid and invalidation
// branches, driven directly through the snapshot the database loads.
func TestValidateHistoryStaleValidAndInvalidation(t *testing.T) {
	run := func(t *testing.T, bTime LogicalTime, wantExecute bool) {
		dir := t.TempDir()
		base := filepath.Join(dir, "db")

		a := dbTestKey{Name: "A"}
		b := dbTestKey{Name: "B"}
		records := []journal.Record{
			{Key: a, Info: Info{Value: dbTestValue{N: 1}, Time: 5, Depends: [][]any{{b}}, RealTime: 5}},
			{Key: b, Info: Info{Value: dbTestValue{N: 2}, Time: bTime, RealTime: bTime}},
		}
		if err := writeSnapshot(base+".database", 1, 4, records); err != nil {
			t.Fatalf("writeSnapshot: %v", err)
		}

		db, err := Open(base, 1)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer db.Close()

		resp := db.Request(context.Background(), alwaysValid, []any{a})
		if wantExecute {
			mustExecute(t, resp)
		} else {
			r := mustReady(t, resp)
			if r.Values[0] != (dbTestValue{N: 1}) {
				t.Fatalf("Ready values = %v", r.Values)
			}
		}
	}

	t.Run("stale-valid", func(t *testing.T) { run(t, 3, false) })
	t.Run("invalidation", func(t *testing.T) { run(t, 7, true) })
}

// S3 / property 5 (value preservation): a rebuild that reproduces the
// same value keeps the old validation time.
func TestFinishedPreservesTimeOnUnchangedValue(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "db")
	a := dbTestKey{Name: "A"}
	b := dbTestKey{Name: "B"}

	records := []journal.Record{
		{Key: a, Info: Info{Value: dbTestValue{N: 1}, Time: 5, Depends: [][]any{{b}}, RealTime: 5}},
		{Key: b, Info: Info{Value: dbTestValue{N: 2}, Time: 7, RealTime: 7}},
	}
	if err := writeSnapshot(base+".database", 1, 4, records); err != nil {
		t.Fatalf("writeSnapshot: %v", err)
	}

	db, err := Open(base, 1)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	resp := db.Request(ctx, alwaysValid, []any{a})
	mustExecute(t, resp)

	if err := db.Finished(a, dbTestValue{N: 1}, [][]any{{b}}, time.Millisecond, nil); err != nil {
		t.Fatalf("Finished: %v", err)
	}

	resp = db.Request(ctx, alwaysValid, []any{a})
	mustReady(t, resp)

	db.mu.Lock()
	got := db.status[a].(builtStatus).info
	db.mu.Unlock()
	if got.Time != 5 {
		t.Fatalf("Built.info.time = %d, want 5 (preserved)", got.Time)
	}
	if got.RealTime != db.time {
		t.Fatalf("Built.info.realTime = %d, want current timestamp %d", got.RealTime, db.time)
	}
}

// S4 + invariant 7: exactly one Execute is ever emitted for a key under
// concurrent requesters, and every waiter observes Ready with the same
// value.
func TestConcurrentRequestsExactlyOneExecute(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	k := dbTestKey{Name: "K"}

	const n = 8
	var executeCount int32
	var wg sync.WaitGroup
	results := make([]any, n)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			for {
				resp := db.Request(ctx, alwaysValid, []any{k})
				switch r := resp.(type) {
				case Execute:
					atomic.AddInt32(&executeCount, 1)
					if err := db.Finished(k, dbTestValue{N: 42}, nil, 0, nil); err != nil {
						t.Errorf("Finished: %v", err)
					}
					results[i] = dbTestValue{N: 42}
					return
				case Block:
					if err := r.Wait(ctx); err != nil {
						t.Errorf("Wait: %v", err)
						return
					}
				case Ready:
					results[i] = r.Values[0]
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if executeCount != 1 {
		t.Fatalf("execute count = %d, want exactly 1", executeCount)
	}
	for i, v := range results {
		if v != (dbTestValue{N: 42}) {
			t.Fatalf("goroutine %d result = %v, want {42}", i, v)
		}
	}
}

// Invariant: a second Finished for the same key is ErrProtocol.
func TestDoubleFinishedIsProtocolError(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	k := dbTestKey{Name: "K"}

	mustExecute(t, db.Request(ctx, alwaysValid, []any{k}))
	if err := db.Finished(k, dbTestValue{N: 1}, nil, 0, nil); err != nil {
		t.Fatalf("first Finished: %v", err)
	}
	if err := db.Finished(k, dbTestValue{N: 1}, nil, 0, nil); !errors.Is(err, ErrProtocol) {
		t.Fatalf("second Finished: got %v, want ErrProtocol", err)
	}
}

// Invariant: Finished for a key never returned by Execute is ErrProtocol.
func TestFinishedWithoutRequestIsProtocolError(t *testing.T) {
	db, _ := newTestDB(t)
	k := dbTestKey{Name: "never-requested"}
	if err := db.Finished(k, dbTestValue{N: 1}, nil, 0, nil); !errors.Is(err, ErrProtocol) {
		t.Fatalf("got %v, want ErrProtocol", err)
	}
}

// S6: a user-version bump forces a cold start even with a valid
// snapshot on disk (Close has already unlinked the journal).
func TestVersionBumpForcesColdStart(t *testing.T) {
	db, base := newTestDB(t)
	a := dbTestKey{Name: "A"}
	ctx := context.Background()
	mustExecute(t, db.Request(ctx, alwaysValid, []any{a}))
	if err := db.Finished(a, dbTestValue{N: 1}, nil, 0, nil); err != nil {
		t.Fatalf("Finished: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(base, 2)
	if err != nil {
		t.Fatalf("Open with bumped version: %v", err)
	}
	defer db2.Close()

	resp := db2.Request(ctx, alwaysValid, []any{a})
	mustExecute(t, resp)
}

// Property 3 (partial): writeSnapshot then readSnapshot returns the
// written logical time and the same number of records. The rewriting of
// Built/Building entries happens in snapshotRecords and is not exercised
// here.
func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.database")
	a := dbTestKey{Name: "A"}
	b := dbTestKey{Name: "B"}
	records := []journal.Record{
		{Key: a, Info: Info{Value: dbTestValue{N: 1}, Time: 2, RealTime: 2}},
		{Key: b, Info: Info{Value: dbTestValue{N: 2}, Time: 3, RealTime: 3}},
	}
	if err := writeSnapshot(path, 1, 9, records); err != nil {
		t.Fatalf("writeSnapshot: %v", err)
	}

	gotTime, gotRecords, err := readSnapshot(path, 1)
	if err != nil {
		t.Fatalf("readSnapshot: %v", err)
	}
	if gotTime != 9 {
		t.Fatalf("time = %d, want 9", gotTime)
	}
	if len(gotRecords) != len(records) {
		t.Fatalf("got %d records, want %d", len(gotRecords), len(records))
	}
}

func TestReadSnapshotMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	tm, records, err := readSnapshot(filepath.Join(dir, "nope.database"), 1)
	if err != nil {
		t.Fatalf("readSnapshot: %v", err)
	}
	if tm != 0 || records != nil {
		t.Fatalf("got (%d, %v), want (0, nil)", tm, records)
	}
}
