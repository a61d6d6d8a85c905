package witness

import (
	"fmt"
	"io"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"shakedb/internal/chunkio"
)

// WireValue is a witnessed key or value on the wire: a compact index into
// the file's Table, plus the type-specific payload.
type WireValue struct {
	TagIdx int32  `msgpack:"i"`
	Data   []byte `msgpack:"d"`
}

// Table is the ordered list of type tags in effect for one snapshot or
// journal file. It is fixed at creation: every record in that file is
// encoded and decoded against the exact same tag order.
type Table struct {
	tags []string
}

// CurrentTable snapshots every type tag registered in this process, in
// registration order. Call this once when creating a new snapshot or
// journal; all registration must happen before this call.
func CurrentTable() *Table {
	mu.Lock()
	defer mu.Unlock()
	tags := make([]string, len(order))
	copy(tags, order)
	return &Table{tags: tags}
}

// Tags returns the ordered tag list.
func (t *Table) Tags() []string {
	out := make([]string, len(t.tags))
	copy(out, t.tags)
	return out
}

// WriteTo writes the table as a single chunk: tag list of an ordered
// []string, msgpack-encoded.
func (t *Table) WriteTo(w io.Writer) error {
	payload, err := msgpack.Marshal(t.tags)
	if err != nil {
		return fmt.Errorf("witness: encode table: %w", err)
	}
	return chunkio.WriteChunk(w, payload)
}

// ReadTable reads the leading table chunk from r. Every tag it names must
// already be registered in this process; an unknown tag is ErrSchema.
func ReadTable(r io.Reader) (*Table, error) {
	chunk, ok, err := chunkio.ReadOneChunk(r)
	if err != nil {
		return nil, fmt.Errorf("witness: read table chunk: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("witness: missing table chunk: %w", io.ErrUnexpectedEOF)
	}
	var tags []string
	if err := msgpack.Unmarshal(chunk, &tags); err != nil {
		return nil, fmt.Errorf("witness: decode table: %w", err)
	}
	mu.Lock()
	for _, tag := range tags {
		if _, ok := byTag[tag]; !ok {
			mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrSchema, tag)
		}
	}
	mu.Unlock()
	return &Table{tags: tags}, nil
}

// Encode witnesses v against t: looks up v's registered tag, finds that
// tag's index within t, and encodes the payload.
func (t *Table) Encode(v any) (WireValue, error) {
	c, ok := typeToCode[reflect.TypeOf(v)]
	if !ok {
		return WireValue{}, fmt.Errorf("witness: type %T is not registered", v)
	}
	idx := -1
	for i, tag := range t.tags {
		if tag == c.tag {
			idx = i
			break
		}
	}
	if idx < 0 {
		return WireValue{}, fmt.Errorf("%w: tag %q not present in this table", ErrSchema, c.tag)
	}
	payload, err := c.encode(v)
	if err != nil {
		return WireValue{}, fmt.Errorf("witness: encode %T: %w", v, err)
	}
	return WireValue{TagIdx: int32(idx), Data: payload}, nil
}

// Decode reverses Encode, resolving w.TagIdx against t.
func (t *Table) Decode(w WireValue) (any, error) {
	if w.TagIdx < 0 || int(w.TagIdx) >= len(t.tags) {
		return nil, fmt.Errorf("witness: tag index %d out of range for table of size %d", w.TagIdx, len(t.tags))
	}
	tag := t.tags[w.TagIdx]
	c, ok := byTag[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchema, tag)
	}
	v, err := c.decode(w.Data)
	if err != nil {
		return nil, fmt.Errorf("witness: decode %q: %w", tag, err)
	}
	return v, nil
}
