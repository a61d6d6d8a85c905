package depdb

import (
	"shakedb/internal/barrier"
	"shakedb/internal/journal"
)

// LogicalTime is a per-database monotonic counter, not wall-clock time.
type LogicalTime = journal.LogicalTime

// Trace is one profiling span recorded during a key's most recent
// execution.
type Trace = journal.Trace

// Info is the per-key record: last produced value, validation time,
// dependency groups observed while producing it, and execution metadata.
type Info = journal.Info

// status is the in-memory state of one key. The three concrete types
// below are the only implementations; callers outside this package never
// see or construct a status value directly.
type status interface {
	isStatus()
}

// loadedStatus is a key read from the snapshot or journal, not yet
// revalidated this run.
type loadedStatus struct {
	info Info
}

// buildingStatus is a key currently being computed by some caller.
// prior preserves the Loaded info that triggered the rebuild, if any, so
// Finished can decide whether to keep the old validation time.
type buildingStatus struct {
	bar   *barrier.Barrier
	prior *Info
}

// builtStatus is a key computed or revalidated this run; terminal for
// the run.
type builtStatus struct {
	info Info
}

func (loadedStatus) isStatus()  {}
func (buildingStatus) isStatus() {}
func (builtStatus) isStatus()   {}
