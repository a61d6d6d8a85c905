package depdb

import "errors"

// Sentinel errors, matching the read-defensive/write-strict split: the
// Err* below other than ErrProtocol are only ever surfaced to a warning
// logger, never propagated to callers of Open.
var (
	// ErrVersion is returned internally when a snapshot or journal's
	// version stamp does not match the caller's user version.
	ErrVersion = errors.New("depdb: version stamp mismatch")

	// ErrCorruptFile is returned internally when a snapshot fails to
	// deserialize for a reason other than a version mismatch.
	ErrCorruptFile = errors.New("depdb: corrupt snapshot")

	// ErrCorruptJournal names a journal record that fails to deserialize
	// for a reason other than trailing truncation. Nothing in this package
	// returns it: journal.Replay reports that case as
	// journal.ErrCorruptJournal, which Open logs before dropping the journal.
	ErrCorruptJournal = errors.New("depdb: corrupt journal record")

	// ErrProtocol is returned by Finished when called for a key that is
	// not currently Building — either it was never requested, or
	// Finished was already called for it once.
	ErrProtocol = errors.New("depdb: finished called out of Building state")
)
