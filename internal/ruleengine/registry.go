// Package ruleengine is a minimal external collaborator for
// internal/depdb: it supplies the Rule bodies a real build system would
// own, and drives Request/Finished with a bounded worker pool. depdb has
// no knowledge of this package; it exists to exercise the database end
// to end and to give the CLI something to build.
package ruleengine

import (
	"context"

	"shakedb/internal/witness"
)

// Key identifies a buildable target. Two keys are equal iff their string
// values are equal.
type Key string

// Value is the computed result of building a Key.
type Value string

func init() {
	witness.RegisterKey[Key]("ruleengine.key")
	witness.RegisterValue[Value]("ruleengine.value", func(a, b Value) bool { return a == b })
}

// Getter resolves a set of dependency keys to their built values,
// executing or waiting on them as needed. Every call groups its deps
// into one dependency group for history validation purposes — call it
// once per logically-independent batch of dependencies, not once per key.
type Getter func(ctx context.Context, deps ...Key) ([]Value, error)

// Rule computes the value for key, calling get for whatever dependencies
// it needs along the way. A Rule with no dependencies never calls get.
type Rule func(ctx context.Context, key Key, get Getter) (Value, error)

// Registry maps keys to the Rule that knows how to build them.
type Registry struct {
	rules map[Key]Rule
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[Key]Rule)}
}

// Register associates key with rule. A later Register for the same key
// replaces the earlier one.
func (r *Registry) Register(key Key, rule Rule) {
	r.rules[key] = rule
}

// Lookup returns the rule registered for key, if any.
func (r *Registry) Lookup(key Key) (Rule, bool) {
	rule, ok := r.rules[key]
	return rule, ok
}
