// Package buildtrace instruments a running database: request/finished
// cycles, per-key resolution, and rule execution all emit Events through
// a Tracer, at a granularity controlled by Level and Scope.
//
// A disabled Tracer (Nop, or any Tracer with Level() == LevelOff) costs
// a method call and nothing else — Begin checks Enabled() before
// doing any work, so instrumented code does not need its own guards.
package buildtrace
