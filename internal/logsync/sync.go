// Package logsync implements the read side of the append-only protocol
// (spec.md §4.E): discover peer *.crdtlog files for a note, resume from
// remembered offsets, tolerate truncation and corruption, and hand back a
// deterministically ordered stream of payloads the CRDT core has never
// seen. It is grounded on the teacher's internal/sync scanner, which
// walks a directory, classifies entries, and produces a deterministic
// plan the executor consumes — the same shape generalized from
// OneDrive delta pages to local log files.
package logsync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logformat"
)

// FileKey identifies one log file an instance owns: (profileId,
// instanceId, createdMs).
type FileKey struct {
	ProfileID  [16]byte
	InstanceID [16]byte
	CreatedMs  int64
}

// Offsets is the durable per-file byte-offset bookkeeping passed into
// SyncNote and returned updated: the offset past the last successfully
// decoded record in each file. It is owned and persisted by the Note
// Storage Manager, never by this package.
type Offsets map[FileKey]int64

// SeqState is the durable per-file "last sequence decoded" bookkeeping,
// kept alongside Offsets so a resumed sync can verify the next record's
// sequence is exactly one more than the last record this reader already
// delivered from that file (spec.md §4.E step 4), without re-reading
// bytes before the stored offset.
type SeqState map[FileKey]uint64

// Clone returns a shallow copy of o, safe to mutate independently.
func (o Offsets) Clone() Offsets {
	out := make(Offsets, len(o))
	for k, v := range o {
		out[k] = v
	}

	return out
}

// Clone returns a shallow copy of s, safe to mutate independently.
func (s SeqState) Clone() SeqState {
	out := make(SeqState, len(s))
	for k, v := range s {
		out[k] = v
	}

	return out
}

// Result is what one SyncNote call produces.
type Result struct {
	NewRecords        [][]byte
	NewOffsets        Offsets
	NewSeqState       SeqState
	HighestSeqByActor map[[16]byte]uint64
	CorruptAt         map[FileKey]int64 // files where decoding stopped due to corruption
}

// SyncNote implements spec.md §4.E's algorithm: list the note's logs
// directory, parse filenames, read each file from its remembered offset,
// decode as many clean records as possible, and return new payloads in a
// deterministic (ownerInstance, sequence) order.
//
// ctx is checked only between files, never mid-record (spec.md: "A
// cooperative cancel token may abort between files (never mid-record)").
func SyncNote(ctx context.Context, fs fsadapter.FS, logsDir string, offsets Offsets, seqState SeqState, logger *slog.Logger) (Result, error) {
	names, err := fs.ListFiles(logsDir)
	if err != nil {
		return Result{}, fmt.Errorf("logsync: listing %s: %w", logsDir, err)
	}

	type fileEntry struct {
		key  FileKey
		name string
	}

	var files []fileEntry

	for _, name := range names {
		parsed, ok := logformat.ParseFilename(name)
		if !ok || parsed.Kind != logformat.KindLog {
			continue
		}

		files = append(files, fileEntry{
			key: FileKey{
				ProfileID:  parsed.ProfileID.Bytes(),
				InstanceID: parsed.InstanceID.Bytes(),
				CreatedMs:  parsed.CreatedMs,
			},
			name: name,
		})
	}

	// Deterministic file visitation order, matching the deterministic
	// record delivery order the spec requires.
	sort.Slice(files, func(i, j int) bool {
		a, b := files[i].key, files[j].key
		if a.InstanceID != b.InstanceID {
			return lessBytes(a.InstanceID, b.InstanceID)
		}

		return a.CreatedMs < b.CreatedMs
	})

	result := Result{
		NewOffsets:        offsets.Clone(),
		NewSeqState:       seqState.Clone(),
		HighestSeqByActor: make(map[[16]byte]uint64),
		CorruptAt:         make(map[FileKey]int64),
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("logsync: cancelled: %w", err)
		}

		if err := syncOneFile(fs, logsDir, f.key, f.name, offsets, &result, logger); err != nil {
			return result, err
		}
	}

	return result, nil
}

func syncOneFile(fs fsadapter.FS, logsDir string, key FileKey, name string, offsets Offsets, result *Result, logger *slog.Logger) error {
	path := fs.JoinPath(logsDir, name)

	st, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("logsync: stat %s: %w", path, err)
	}

	startOffset := offsets[key]
	if st.Size == startOffset {
		return nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("logsync: reading %s: %w", path, err)
	}

	if int64(len(data)) < startOffset {
		// File got shorter than our remembered offset, which violates
		// append-only; treat as corrupt from the start rather than
		// panicking on a negative slice.
		result.CorruptAt[key] = 0

		return nil
	}

	records, cleanOffset, corrupt := logformat.DecodeStream(data[startOffset:])

	expected := result.NewSeqState[key] + 1
	offsetBeforeRecord := 0
	violation := -1

	for i, rec := range records {
		if rec.Sequence != expected {
			violation = i

			break
		}

		expected++

		// Re-encoding reproduces the exact framed length of a record
		// already decoded from it, giving us the byte boundary just
		// before the next record without exporting logformat's private
		// header/trailer sizes.
		encoded, err := logformat.EncodeRecord(rec.TimestampMs, rec.Sequence, rec.Payload)
		if err != nil {
			return fmt.Errorf("logsync: re-encoding %s record %d for offset accounting: %w", name, rec.Sequence, err)
		}

		offsetBeforeRecord += len(encoded)
	}

	if violation >= 0 {
		logger.Warn("logsync: sequence violation, stopping at record",
			slog.String("file", name),
			slog.Uint64("got", records[violation].Sequence),
			slog.Uint64("want", expected),
		)

		// Stop exactly at the violating record's boundary, even if
		// CRC-valid records happen to follow it in the stream: those
		// records are out of order and must not be treated as delivered
		// (spec.md §4.E step 4, "never advance past the violation").
		records = records[:violation]
		corrupt = true
		cleanOffset = offsetBeforeRecord
	}

	for _, rec := range records {
		result.NewRecords = append(result.NewRecords, rec.Payload)

		if rec.Sequence > result.HighestSeqByActor[key.InstanceID] {
			result.HighestSeqByActor[key.InstanceID] = rec.Sequence
		}

		if rec.Sequence > result.NewSeqState[key] {
			result.NewSeqState[key] = rec.Sequence
		}
	}

	result.NewOffsets[key] = startOffset + int64(cleanOffset)

	if corrupt {
		result.CorruptAt[key] = startOffset + int64(cleanOffset)
		logger.Warn("logsync: corrupt record, stopping sync for file",
			slog.String("file", name),
			slog.Int64("offset", result.CorruptAt[key]),
		)
	}

	return nil
}

func lessBytes(a, b [16]byte) bool {
	for i := 0; i < 16; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}

	return false
}
