// Package logwriter implements the per-(process, note) append-only log
// writer: one owner per note per process, serialized appends, monotonic
// sequence numbers. It is grounded on the teacher's single-writer
// transfer bookkeeping (internal/sync's per-note worker owns its own
// state the way this writer owns its own file), generalized from
// transfer chunks to CRDT log records.
package logwriter

import (
	"fmt"
	"sync"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logformat"
)

// Writer serializes a stream of CRDT updates from one instance into its
// own append-only *.crdtlog file. A Writer is not safe to share across
// notes; the Note Storage Manager's per-note actor owns exactly one.
type Writer struct {
	mu       sync.Mutex
	fs       fsadapter.FS
	path     string
	seq      uint64
	lastTsMs int64
}

// Open returns a Writer bound to path, starting from a given current
// sequence and timestamp (the offset the owner has already persisted —
// zero values for a brand-new log file).
func Open(fs fsadapter.FS, path string, currentSeq uint64, lastTsMs int64) *Writer {
	return &Writer{fs: fs, path: path, seq: currentSeq, lastTsMs: lastTsMs}
}

// Append encodes payload as the next record and appends it to the
// writer's log file, returning the assigned sequence. Appends on one
// Writer are serialized; a failed append does not advance the sequence
// counter, so the caller may retry with the same payload.
func (w *Writer) Append(nowMs int64, payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := nowMs
	if ts < w.lastTsMs {
		ts = w.lastTsMs
	}

	nextSeq := w.seq + 1

	encoded, err := logformat.EncodeRecord(ts, nextSeq, payload)
	if err != nil {
		return 0, fmt.Errorf("logwriter: encoding record for %s: %w", w.path, err)
	}

	if err := w.fs.AppendFile(w.path, encoded); err != nil {
		return 0, fmt.Errorf("logwriter: appending to %s: %w", w.path, err)
	}

	w.seq = nextSeq
	w.lastTsMs = ts

	return nextSeq, nil
}

// CurrentSequence returns the highest sequence successfully appended.
func (w *Writer) CurrentSequence() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.seq
}

// FilePath returns the path this writer appends to.
func (w *Writer) FilePath() string {
	return w.path
}
