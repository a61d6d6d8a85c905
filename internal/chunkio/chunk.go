// Package chunkio implements the length-prefixed chunked framing shared by
// every persistent file this module writes: a 4-byte big-endian unsigned
// length followed by that many payload bytes.
package chunkio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// maxChunkLen bounds a single chunk so a corrupt length prefix cannot make
// a reader try to allocate gigabytes.
const maxChunkLen = 256 << 20 // 256 MiB

// WriteChunk writes a length-prefixed chunk: len(b) as 4-byte big-endian,
// then b, then flushes if w supports it.
func WriteChunk(w io.Writer, b []byte) error {
	if len(b) > maxChunkLen {
		return fmt.Errorf("chunkio: chunk of %d bytes exceeds %d byte limit", len(b), maxChunkLen)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(b))) //nolint:gosec // bounded above
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("chunkio: write length: %w", err)
	}
	if len(b) > 0 {
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("chunkio: write payload: %w", err)
		}
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("chunkio: flush: %w", err)
		}
	}
	if f, ok := w.(interface{ Sync() error }); ok {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("chunkio: sync: %w", err)
		}
	}
	return nil
}

// ReadOneChunk reads a single chunk from r. ok is false, with a nil error,
// when r is exhausted before a length prefix, or the prefix names more
// payload bytes than remain — both are treated as a truncated trailing
// chunk, silently dropped, so crash recovery does not surface an error for
// the ordinary case of a partial last record.
func ReadOneChunk(r io.Reader) ([]byte, bool, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("chunkio: read length: %w", err)
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length > maxChunkLen {
		return nil, false, fmt.Errorf("chunkio: chunk length %d exceeds %d byte limit", length, maxChunkLen)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("chunkio: read payload: %w", err)
	}
	return payload, true, nil
}

// ReadChunks lazily yields every complete chunk in r until exhaustion. A
// truncated trailing chunk (incomplete length prefix or insufficient
// payload) ends iteration without yielding it and without an error; the
// caller distinguishes "clean end" from "read error" via the returned
// closure only by way of panics, which this iterator never raises — callers
// needing the distinction should use ReadOneChunk directly in a loop.
func ReadChunks(r io.Reader) func(yield func([]byte) bool) {
	br := bufio.NewReader(r)
	return func(yield func([]byte) bool) {
		for {
			chunk, ok, err := ReadOneChunk(br)
			if err != nil || !ok {
				return
			}
			if !yield(chunk) {
				return
			}
		}
	}
}
