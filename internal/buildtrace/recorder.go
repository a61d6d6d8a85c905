package buildtrace

import (
	"sync"
	"time"

	"shakedb/internal/journal"
)

// Recorder collects the step spans executed while resolving a single
// key and renders them as the journal.Trace slice a Finished call
// attaches to that key's Info. It is not a Tracer itself; a rule wraps
// its Recorder alongside whatever Tracer is in scope and reports both.
type Recorder struct {
	mu     sync.Mutex
	origin time.Time
	traces []journal.Trace
}

// NewRecorder starts a recorder anchored at the current time; Start/End
// offsets in the resulting traces are seconds relative to this anchor.
func NewRecorder() *Recorder {
	return &Recorder{origin: time.Now()}
}

// Step records one completed step, given its start and end time.
func (r *Recorder) Step(label string, start, end time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, journal.Trace{
		Label: label,
		Start: start.Sub(r.origin).Seconds(),
		End:   end.Sub(r.origin).Seconds(),
	})
}

// Traces returns the accumulated traces in recorded order.
func (r *Recorder) Traces() []journal.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]journal.Trace, len(r.traces))
	copy(out, r.traces)
	return out
}
