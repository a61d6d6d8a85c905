package witness

import (
	"bytes"
	"errors"
	"testing"
)

type fileKey struct {
	Path string
}

type stampValue struct {
	ModTime int64
}

type digestValue struct {
	Bytes []byte
}

func setupTestRegistry(t *testing.T) {
	t.Helper()
	resetForTest()
	RegisterKey[fileKey]("file-key")
	RegisterValue[stampValue]("stamp-value", func(a, b stampValue) bool { return a == b })
	RegisterValue[digestValue]("digest-value", func(a, b digestValue) bool {
		return bytes.Equal(a.Bytes, b.Bytes)
	})
	t.Cleanup(resetForTest)
}

func TestRegisterDuplicateTagPanics(t *testing.T) {
	setupTestRegistry(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate tag registration")
		}
	}()
	RegisterKey[fileKey]("file-key")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	setupTestRegistry(t)
	table := CurrentTable()

	k := fileKey{Path: "src/main.go"}
	wk, err := table.Encode(k)
	if err != nil {
		t.Fatalf("Encode key: %v", err)
	}
	gotKey, err := table.Decode(wk)
	if err != nil {
		t.Fatalf("Decode key: %v", err)
	}
	if gotKey != k {
		t.Errorf("decoded key = %+v, want %+v", gotKey, k)
	}

	v := digestValue{Bytes: []byte{1, 2, 3}}
	wv, err := table.Encode(v)
	if err != nil {
		t.Fatalf("Encode value: %v", err)
	}
	gotVal, err := table.Decode(wv)
	if err != nil {
		t.Fatalf("Decode value: %v", err)
	}
	if !Equal(gotVal, v) {
		t.Errorf("decoded value = %+v, want %+v", gotVal, v)
	}
}

func TestTableWriteReadRoundTrip(t *testing.T) {
	setupTestRegistry(t)
	table := CurrentTable()

	var buf bytes.Buffer
	if err := table.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	read, err := ReadTable(&buf)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(read.Tags()) != len(table.Tags()) {
		t.Fatalf("tag count = %d, want %d", len(read.Tags()), len(table.Tags()))
	}
	for i, tag := range table.Tags() {
		if read.Tags()[i] != tag {
			t.Errorf("tag[%d] = %q, want %q", i, read.Tags()[i], tag)
		}
	}
}

func TestReadTableUnknownTagIsSchemaError(t *testing.T) {
	setupTestRegistry(t)
	table := CurrentTable()
	var buf bytes.Buffer
	if err := table.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	resetForTest() // simulate a process that never registered "file-key"
	_, err := ReadTable(&buf)
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestEqualDiffersOnType(t *testing.T) {
	setupTestRegistry(t)
	if Equal(fileKey{Path: "a"}, stampValue{ModTime: 1}) {
		t.Fatal("values of different registered types must never be equal")
	}
}

func TestEqualUnregisteredType(t *testing.T) {
	setupTestRegistry(t)
	if Equal(42, 42) {
		t.Fatal("unregistered type must never compare equal")
	}
}

func TestEncodeUnregisteredTypeErrors(t *testing.T) {
	setupTestRegistry(t)
	table := CurrentTable()
	if _, err := table.Encode(42); err == nil {
		t.Fatal("expected error encoding unregistered type")
	}
}
