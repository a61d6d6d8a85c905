// Package witness implements the type registry that lets heterogeneous key
// and value types share a single binary format. A concrete Go type is
// registered once, process-wide, under a short string tag; every
// snapshot or journal file then only needs to record the ordered list of
// tags in use plus a compact per-value tag index, instead of a type name
// on every record.
package witness

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// EqualFunc reports whether two decoded values of the same registered type
// are equal. Registered separately from encode/decode because not every
// value type is comparable with Go's built-in ==.
type EqualFunc func(a, b any) bool

type codec struct {
	tag    string
	typ    reflect.Type
	encode func(v any) ([]byte, error)
	decode func(b []byte) (any, error)
	equal  EqualFunc
}

var (
	mu         sync.Mutex
	order      []string
	byTag      = map[string]*codec{}
	typeToCode = map[reflect.Type]*codec{}
)

// RegisterKey registers a comparable key type T under tag. Equality uses
// Go's built-in == on the decoded values, which is sufficient for the
// small, comparable key structs this repo uses.
//
// Must be called before any Table is built (typically from an init
// function); it panics if tag is already registered, matching the
// register-once-at-startup idiom of database/sql.Register.
func RegisterKey[T comparable](tag string) {
	RegisterValue[T](tag, func(a, b T) bool { return a == b })
}

// RegisterValue registers a value type T under tag with an explicit
// equality function, for types (slices, maps, pointers) that are not
// comparable with ==.
func RegisterValue[T any](tag string, equal func(a, b T) bool) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := byTag[tag]; exists {
		panic(fmt.Sprintf("witness: tag %q already registered", tag))
	}

	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		panic(fmt.Sprintf("witness: cannot register interface-typed tag %q", tag))
	}
	if _, exists := typeToCode[typ]; exists {
		panic(fmt.Sprintf("witness: type %v already registered under a different tag", typ))
	}

	c := &codec{
		tag: tag,
		typ: typ,
		encode: func(v any) ([]byte, error) {
			return msgpack.Marshal(v)
		},
		decode: func(b []byte) (any, error) {
			var v T
			if err := msgpack.Unmarshal(b, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
		equal: func(a, b any) bool {
			av, aok := a.(T)
			bv, bok := b.(T)
			if !aok || !bok {
				return false
			}
			return equal(av, bv)
		},
	}

	order = append(order, tag)
	byTag[tag] = c
	typeToCode[typ] = c
}

// Equal reports whether a and b are equal decoded values of the same
// registered type. Values of differing concrete type, or of a type never
// registered, are never equal.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	c, ok := typeToCode[ta]
	if !ok {
		return false
	}
	return c.equal(a, b)
}

// resetForTest clears the global registry. Test-only.
func resetForTest() {
	mu.Lock()
	defer mu.Unlock()
	order = nil
	byTag = map[string]*codec{}
	typeToCode = map[reflect.Type]*codec{}
}
