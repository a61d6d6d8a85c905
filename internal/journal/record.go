package journal

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"shakedb/internal/witness"
)

// LogicalTime is a per-database monotonic counter, not wall-clock time.
type LogicalTime int64

// Trace is one profiling span recorded during a key's most recent
// execution.
type Trace struct {
	Label string  `msgpack:"label"`
	Start float64 `msgpack:"start"`
	End   float64 `msgpack:"end"`
}

// Info is the per-key record persisted by both the snapshot and the
// journal: the last produced value, when it was last validated, the
// dependency groups observed while producing it, and execution metadata.
type Info struct {
	Value     any
	Time      LogicalTime
	Depends   [][]any // each element of each group is a witnessed key
	RealTime  LogicalTime
	Execution time.Duration
	Traces    []Trace
}

type wireInfo struct {
	Value          witness.WireValue     `msgpack:"value"`
	Time           int64                 `msgpack:"time"`
	Depends        [][]witness.WireValue `msgpack:"depends"`
	RealTime       int64                 `msgpack:"real_time"`
	ExecutionNanos int64                 `msgpack:"execution_ns"`
	Traces         []Trace               `msgpack:"traces"`
}

type wireRecord struct {
	Key  witness.WireValue `msgpack:"key"`
	Info wireInfo          `msgpack:"info"`
}

// Record is one decoded (key, info) pair, as found in a journal or
// snapshot.
type Record struct {
	Key  any
	Info Info
}

// EncodeRecord serializes (key, info) against table into one payload,
// suitable for framing as a single chunk.
func EncodeRecord(table *witness.Table, key any, info Info) ([]byte, error) {
	wk, err := table.Encode(key)
	if err != nil {
		return nil, fmt.Errorf("journal: encode key: %w", err)
	}
	wv, err := table.Encode(info.Value)
	if err != nil {
		return nil, fmt.Errorf("journal: encode value: %w", err)
	}
	depends := make([][]witness.WireValue, len(info.Depends))
	for i, group := range info.Depends {
		wg := make([]witness.WireValue, len(group))
		for j, k := range group {
			wk2, err := table.Encode(k)
			if err != nil {
				return nil, fmt.Errorf("journal: encode dependency %d/%d: %w", i, j, err)
			}
			wg[j] = wk2
		}
		depends[i] = wg
	}
	rec := wireRecord{
		Key: wk,
		Info: wireInfo{
			Value:          wv,
			Time:           int64(info.Time),
			Depends:        depends,
			RealTime:       int64(info.RealTime),
			ExecutionNanos: int64(info.Execution),
			Traces:         info.Traces,
		},
	}
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("journal: marshal record: %w", err)
	}
	return payload, nil
}

// DecodeRecord reverses EncodeRecord.
func DecodeRecord(table *witness.Table, payload []byte) (Record, error) {
	var rec wireRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("journal: unmarshal record: %w", err)
	}
	key, err := table.Decode(rec.Key)
	if err != nil {
		return Record{}, fmt.Errorf("journal: decode key: %w", err)
	}
	value, err := table.Decode(rec.Info.Value)
	if err != nil {
		return Record{}, fmt.Errorf("journal: decode value: %w", err)
	}
	depends := make([][]any, len(rec.Info.Depends))
	for i, group := range rec.Info.Depends {
		g := make([]any, len(group))
		for j, wv := range group {
			dk, err := table.Decode(wv)
			if err != nil {
				return Record{}, fmt.Errorf("journal: decode dependency %d/%d: %w", i, j, err)
			}
			g[j] = dk
		}
		depends[i] = g
	}
	return Record{
		Key: key,
		Info: Info{
			Value:     value,
			Time:      LogicalTime(rec.Info.Time),
			Depends:   depends,
			RealTime:  LogicalTime(rec.Info.RealTime),
			Execution: time.Duration(rec.Info.ExecutionNanos),
			Traces:    rec.Info.Traces,
		},
	}, nil
}
