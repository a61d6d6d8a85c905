package buildtrace

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLevelShouldEmit(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeRun, false},
		{LevelPhase, ScopeRun, true},
		{LevelPhase, ScopeKey, false},
		{LevelDetail, ScopeKey, true},
		{LevelDetail, ScopeStep, false},
		{LevelDebug, ScopeStep, true},
	}
	for _, c := range cases {
		if got := c.level.ShouldEmit(c.scope); got != c.want {
			t.Errorf("%v.ShouldEmit(%v) = %v, want %v", c.level, c.scope, got, c.want)
		}
	}
}

func TestParseLevelRoundTrip(t *testing.T) {
	for _, s := range []string{"off", "error", "phase", "detail", "debug"} {
		lvl, err := ParseLevel(s)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", s, err)
		}
		if lvl.String() != s {
			t.Fatalf("round trip %q -> %v -> %q", s, lvl, lvl.String())
		}
	}
	if _, err := ParseLevel("bogus"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestSpanBeginEndEmitsToStream(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatText)

	sp := Begin(tr, ScopeKey, "key:app/main.o", 0)
	sp.WithExtra("size", "128")
	sp.End("ok")

	out := buf.String()
	if !strings.Contains(out, "key:app/main.o") {
		t.Fatalf("output missing span name: %q", out)
	}
	if !strings.Contains(out, "ok") {
		t.Fatalf("output missing detail: %q", out)
	}
}

func TestNopTracerDoesNothing(t *testing.T) {
	sp := Begin(Nop, ScopeKey, "noop", 0)
	sp.End("done")
	if Nop.Enabled() {
		t.Fatal("Nop should never be enabled")
	}
}

func TestRingTracerWrapsAndDumps(t *testing.T) {
	ring := NewRingTracer(2, LevelDebug)
	for i := 0; i < 3; i++ {
		ring.Emit(&Event{Kind: KindPoint, Scope: ScopeStep, Name: "e"})
	}
	snap := ring.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2 (capacity)", len(snap))
	}

	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatNDJSON); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty dump")
	}
}

func TestMultiTracerFansOut(t *testing.T) {
	a := NewRingTracer(4, LevelDebug)
	b := NewRingTracer(4, LevelDebug)
	multi := NewMultiTracer(LevelDebug, a, b)

	multi.Emit(&Event{Kind: KindPoint, Scope: ScopeStep, Name: "fanout"})

	if len(a.Snapshot()) != 1 || len(b.Snapshot()) != 1 {
		t.Fatal("expected event to reach both underlying tracers")
	}
	if err := multi.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestHeartbeatEmitsPeriodically(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)
	hb := StartHeartbeat(ring, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	hb.Stop()

	found := false
	for _, ev := range ring.Snapshot() {
		if ev.Kind == KindHeartbeat && ev.Scope == ScopeRun {
			found = true
		}
	}
	if !found {
		t.Fatal("expected at least one heartbeat event with ScopeRun")
	}
}

func TestRecorderCollectsSteps(t *testing.T) {
	r := NewRecorder()
	start := time.Now()
	r.Step("read-file", start, start.Add(time.Millisecond))
	traces := r.Traces()
	if len(traces) != 1 {
		t.Fatalf("traces len = %d, want 1", len(traces))
	}
	if traces[0].Label != "read-file" {
		t.Fatalf("label = %q, want read-file", traces[0].Label)
	}
	if traces[0].End <= traces[0].Start {
		t.Fatalf("End (%v) should be after Start (%v)", traces[0].End, traces[0].Start)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ring := NewRingTracer(4, LevelDebug)
	ctx := WithTracer(t.Context(), ring)
	if FromContext(ctx) != Tracer(ring) {
		t.Fatal("FromContext did not return the attached tracer")
	}
	if FromContext(t.Context()) != Nop {
		t.Fatal("FromContext without a tracer should return Nop")
	}
}
