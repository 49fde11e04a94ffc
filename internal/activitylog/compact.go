package activitylog

import "fmt"

// DefaultMaxActivityBytes is spec.md §4.G's default compaction threshold.
const DefaultMaxActivityBytes = 1 << 20 // 1 MiB

// CompactActivity builds the compacted form of an activity log, keeping
// only the highest-sequence line per note, when the file's current size
// exceeds maxBytes; it returns that content and true, or nil and false
// when no compaction is due. It does not write anything: path is not
// used, and writing the result to a temp file and renaming it over the
// original is up to the caller. The order of the returned lines is not
// defined.
func CompactActivity(maxBytes int64, path string, currentSize int64, entries []ActivityEntry) ([]byte, bool) {
	if currentSize <= maxBytes {
		return nil, false
	}

	kept := HighestSequenceByNote(entries)

	var buf []byte
	for _, e := range kept {
		buf = append(buf, []byte(fmt.Sprintf("%s|%d|%d\n", e.NoteID.String(), e.Sequence, e.TimestampMs))...)
	}

	return buf, true
}
