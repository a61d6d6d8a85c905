package depdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"shakedb/internal/chunkio"
	"shakedb/internal/journal"
	"shakedb/internal/witness"
)

func snapshotStamp(userVersion int) string {
	return fmt.Sprintf("SHAKE-DATABASE-1-%d\r\n", userVersion)
}

// wireRecordList is a flat list of (key, info) wire records alongside
// the logical time, all against the single witness table written just
// before this chunk.
type wireRecordList struct {
	Time    int64            `msgpack:"time"`
	Records []wireSnapRecord `msgpack:"records"`
}

type wireSnapRecord struct {
	Key  witness.WireValue `msgpack:"key"`
	Info struct {
		Value          witness.WireValue     `msgpack:"value"`
		Time           int64                 `msgpack:"time"`
		Depends        [][]witness.WireValue `msgpack:"depends"`
		RealTime       int64                 `msgpack:"real_time"`
		ExecutionNanos int64                 `msgpack:"execution_ns"`
		Traces         []Trace               `msgpack:"traces"`
	} `msgpack:"info"`
}

// writeSnapshot writes the whole status map as a fresh snapshot at path:
// the version stamp, a witness table chunk, then a single chunk holding
// the logical time and every (key, info) pair.
func writeSnapshot(path string, userVersion int, t LogicalTime, records []journal.Record) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("depdb: create snapshot %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(snapshotStamp(userVersion)); err != nil {
		return fmt.Errorf("depdb: write snapshot stamp: %w", err)
	}
	table := witness.CurrentTable()
	if err := table.WriteTo(f); err != nil {
		return fmt.Errorf("depdb: write snapshot table: %w", err)
	}

	list := wireRecordList{Time: int64(t), Records: make([]wireSnapRecord, len(records))}
	for i, rec := range records {
		wk, err := table.Encode(rec.Key)
		if err != nil {
			return fmt.Errorf("depdb: encode snapshot key: %w", err)
		}
		wv, err := table.Encode(rec.Info.Value)
		if err != nil {
			return fmt.Errorf("depdb: encode snapshot value: %w", err)
		}
		depends := make([][]witness.WireValue, len(rec.Info.Depends))
		for gi, group := range rec.Info.Depends {
			wg := make([]witness.WireValue, len(group))
			for ki, k := range group {
				wkk, err := table.Encode(k)
				if err != nil {
					return fmt.Errorf("depdb: encode snapshot dependency: %w", err)
				}
				wg[ki] = wkk
			}
			depends[gi] = wg
		}
		list.Records[i].Key = wk
		list.Records[i].Info.Value = wv
		list.Records[i].Info.Time = int64(rec.Info.Time)
		list.Records[i].Info.Depends = depends
		list.Records[i].Info.RealTime = int64(rec.Info.RealTime)
		list.Records[i].Info.ExecutionNanos = int64(rec.Info.Execution)
		list.Records[i].Info.Traces = rec.Info.Traces
	}

	payload, err := msgpack.Marshal(list)
	if err != nil {
		return fmt.Errorf("depdb: marshal snapshot: %w", err)
	}
	if err := chunkio.WriteChunk(f, payload); err != nil {
		return fmt.Errorf("depdb: write snapshot body: %w", err)
	}
	return nil
}

// readSnapshot reads path back. If the file does not exist, it returns
// (0, nil, nil): an empty starting state, not an error. Any other
// failure — version mismatch, missing witness tag, corrupt payload — is
// returned as ErrVersion or ErrCorruptFile for the caller to log and
// treat as an empty starting state.
func readSnapshot(path string, userVersion int) (LogicalTime, []journal.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("depdb: open snapshot %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	want := snapshotStamp(userVersion)
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		return 0, nil, fmt.Errorf("%w: truncated stamp in %s", ErrVersion, path)
	}
	if string(got) != want {
		return 0, nil, fmt.Errorf("%w: %s has stamp %q, want %q", ErrVersion, path, got, want)
	}

	table, err := witness.ReadTable(r)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrVersion, err)
	}

	chunk, ok, err := chunkio.ReadOneChunk(r)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	if !ok {
		return 0, nil, fmt.Errorf("%w: missing body chunk in %s", ErrCorruptFile, path)
	}
	var list wireRecordList
	if err := msgpack.Unmarshal(chunk, &list); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}

	records := make([]journal.Record, len(list.Records))
	for i, wr := range list.Records {
		key, err := table.Decode(wr.Key)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: decode key: %v", ErrCorruptFile, err)
		}
		value, err := table.Decode(wr.Info.Value)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: decode value: %v", ErrCorruptFile, err)
		}
		depends := make([][]any, len(wr.Info.Depends))
		for gi, group := range wr.Info.Depends {
			g := make([]any, len(group))
			for ki, wv := range group {
				dk, err := table.Decode(wv)
				if err != nil {
					return 0, nil, fmt.Errorf("%w: decode dependency: %v", ErrCorruptFile, err)
				}
				g[ki] = dk
			}
			depends[gi] = g
		}
		records[i] = journal.Record{
			Key: key,
			Info: Info{
				Value:     value,
				Time:      LogicalTime(wr.Info.Time),
				Depends:   depends,
				RealTime:  LogicalTime(wr.Info.RealTime),
				Execution: time.Duration(wr.Info.ExecutionNanos),
				Traces:    wr.Info.Traces,
			},
		}
	}
	return LogicalTime(list.Time), records, nil
}
