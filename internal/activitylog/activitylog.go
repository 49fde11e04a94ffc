// Package activitylog implements the activity and deletion log subsystem
// (spec.md §4.G): small append-only text logs one instance writes for
// itself, that peers parse in full each time they want to know "what has
// this instance done". Grounded on the teacher's plain-text status
// writer (status.go / format.go's line-oriented text output): the
// parsing discipline here is the same "split, trust the delimiter,
// tolerate a trailing partial line" approach.
package activitylog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/noteid"
)

// ActivityEntry is one parsed line of an activity log:
// `<noteIdCompact>|<sequence>|<timestampMs>`.
type ActivityEntry struct {
	NoteID      noteid.ID
	Sequence    uint64
	TimestampMs int64
}

// DeletionEntry is one parsed line of a deletion log: `<noteIdCompact>|<timestampMs>`.
type DeletionEntry struct {
	NoteID      noteid.ID
	TimestampMs int64
}

// AppendActivity appends exactly one `N|S|ts\n` line to this instance's
// own activity log, recording that a local append advanced noteId to
// sequence seq.
func AppendActivity(fs fsadapter.FS, path string, noteID noteid.ID, seq uint64, timestampMs int64) error {
	line := fmt.Sprintf("%s|%d|%d\n", noteID.String(), seq, timestampMs)

	if err := fs.AppendFile(path, []byte(line)); err != nil {
		return fmt.Errorf("activitylog: appending activity for %s: %w", noteID, err)
	}

	return nil
}

// AppendDeletion appends exactly one `N|T\n` line to this instance's own
// deletion log. Callers must await this write before unlinking the
// note's files (spec.md §4.G: "before unlinking").
func AppendDeletion(fs fsadapter.FS, path string, noteID noteid.ID, timestampMs int64) error {
	line := fmt.Sprintf("%s|%d\n", noteID.String(), timestampMs)

	if err := fs.AppendFile(path, []byte(line)); err != nil {
		return fmt.Errorf("activitylog: appending deletion for %s: %w", noteID, err)
	}

	return nil
}

// ReadActivity parses an activity log file from offset 0. Any malformed
// line (such as a trailing line read mid-write) is silently dropped rather
// than failing the whole read, matching the log's role as an
// informational broadcast, not a source of truth.
func ReadActivity(fs fsadapter.FS, path string) ([]ActivityEntry, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("activitylog: reading %s: %w", path, err)
	}

	var entries []ActivityEntry

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			continue
		}

		noteID, err := noteid.Parse(parts[0])
		if err != nil {
			continue
		}

		seq, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			continue
		}

		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}

		entries = append(entries, ActivityEntry{NoteID: noteID, Sequence: seq, TimestampMs: ts})
	}

	return entries, nil
}

// ReadDeletions parses a deletion log file from offset 0.
func ReadDeletions(fs fsadapter.FS, path string) ([]DeletionEntry, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("activitylog: reading %s: %w", path, err)
	}

	var entries []DeletionEntry

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}

		noteID, err := noteid.Parse(parts[0])
		if err != nil {
			continue
		}

		ts, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}

		entries = append(entries, DeletionEntry{NoteID: noteID, TimestampMs: ts})
	}

	return entries, nil
}

// HighestSequenceByNote reduces a parsed activity log to the single
// highest sequence claimed per note, which is both what CompactActivity
// keeps and what the Stale-Sync Detector compares against observed
// sequences.
func HighestSequenceByNote(entries []ActivityEntry) map[noteid.ID]ActivityEntry {
	out := make(map[noteid.ID]ActivityEntry)

	for _, e := range entries {
		cur, ok := out[e.NoteID]
		if !ok || e.Sequence > cur.Sequence {
			out[e.NoteID] = e
		}
	}

	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, fsadapter.ErrNotFound)
}
