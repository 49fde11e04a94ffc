// Package fsck implements `ncstorage fsck`: a read-only integrity sweep
// over a storage directory's notes, reporting corrupt log records,
// corrupt snapshots, and sequence violations without mutating anything.
//
// Grounded on the teacher's internal/sync.VerifyBaseline (a full-tree
// check that accumulates a report of mismatches rather than failing
// fast); the report shape here plays the same role, adapted from
// path/hash/size mismatches to log offsets and corruption kinds.
package fsck

import (
	"errors"
	"fmt"
	"sort"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logformat"
	"github.com/drewcsillag/notecove/internal/noteid"
)

// IssueKind classifies one fsck finding.
type IssueKind string

const (
	IssueCorruptLog       IssueKind = "corrupt_log"
	IssueSequenceViolation IssueKind = "sequence_violation"
	IssueCorruptSnapshot  IssueKind = "corrupt_snapshot"
	IssueUnreadableNote   IssueKind = "unreadable_note"
)

// Issue is one integrity finding.
type Issue struct {
	NoteID IssueNote `json:"noteId"`
	Kind   IssueKind `json:"kind"`
	File   string    `json:"file"`
	Offset int       `json:"offset,omitempty"`
	Detail string    `json:"detail"`
}

// IssueNote carries both forms of a note's identifier so JSON output is
// self-describing without a caller needing noteid's decoder.
type IssueNote struct {
	Compact   string `json:"compact"`
	Canonical string `json:"canonical"`
}

func issueNote(id noteid.ID) IssueNote {
	return IssueNote{Compact: id.String(), Canonical: id.Canonical()}
}

// Report is the result of a full sweep.
type Report struct {
	NotesScanned int     `json:"notesScanned"`
	Issues       []Issue `json:"issues"`
}

// Clean reports whether the sweep found nothing wrong.
func (r *Report) Clean() bool {
	return len(r.Issues) == 0
}

// Run sweeps every note directory under sdPath/notes, or just noteID's
// directory if noteID is non-nil. It never writes to disk.
func Run(fs fsadapter.FS, sdPath string, noteID *noteid.ID) (*Report, error) {
	notesRoot := fs.JoinPath(sdPath, "notes")

	var ids []noteid.ID

	if noteID != nil {
		ids = []noteid.ID{*noteID}
	} else {
		names, err := fs.ListFiles(notesRoot)
		if err != nil {
			return nil, fmt.Errorf("fsck: listing notes: %w", err)
		}

		for _, name := range names {
			id, err := noteid.Parse(name)
			if err != nil {
				continue
			}

			ids = append(ids, id)
		}

		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	}

	report := &Report{}

	for _, id := range ids {
		issues, err := checkNote(fs, sdPath, id)
		if err != nil {
			report.Issues = append(report.Issues, Issue{
				NoteID: issueNote(id),
				Kind:   IssueUnreadableNote,
				Detail: err.Error(),
			})

			continue
		}

		report.NotesScanned++
		report.Issues = append(report.Issues, issues...)
	}

	return report, nil
}

func checkNote(fs fsadapter.FS, sdPath string, id noteid.ID) ([]Issue, error) {
	var issues []Issue

	logsDir := fs.JoinPath(sdPath, "notes", id.String(), "logs")

	logNames, err := fs.ListFiles(logsDir)
	if err != nil {
		if errors.Is(err, fsadapter.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("listing logs: %w", err)
	}

	for _, name := range logNames {
		parsed, ok := logformat.ParseFilename(name)
		if !ok || parsed.Kind != logformat.KindLog {
			continue
		}

		data, err := fs.ReadFile(fs.JoinPath(logsDir, name))
		if err != nil {
			issues = append(issues, Issue{NoteID: issueNote(id), Kind: IssueCorruptLog, File: name, Detail: err.Error()})
			continue
		}

		records, cleanOffset, corrupt := logformat.DecodeStream(data)
		if corrupt {
			issues = append(issues, Issue{NoteID: issueNote(id), Kind: IssueCorruptLog, File: name, Offset: cleanOffset, Detail: "bad magic, version, or CRC32C at this offset"})
		}

		if violation := logformat.FirstSequenceViolation(records); violation >= 0 {
			issues = append(issues, Issue{NoteID: issueNote(id), Kind: IssueSequenceViolation, File: name, Offset: violation, Detail: fmt.Sprintf("record at index %d breaks the expected sequence run", violation)})
		}
	}

	snapshotsDir := fs.JoinPath(sdPath, "notes", id.String(), "snapshots")

	snapNames, err := fs.ListFiles(snapshotsDir)
	if err != nil {
		if errors.Is(err, fsadapter.ErrNotFound) {
			return issues, nil
		}

		return issues, fmt.Errorf("listing snapshots: %w", err)
	}

	for _, name := range snapNames {
		parsed, ok := logformat.ParseFilename(name)
		if !ok || parsed.Kind != logformat.KindSnapshot {
			continue
		}

		body, err := fsadapter.ReadReadyFlagFile(fs, fs.JoinPath(snapshotsDir, name))
		if err != nil {
			issues = append(issues, Issue{NoteID: issueNote(id), Kind: IssueCorruptSnapshot, File: name, Detail: err.Error()})
			continue
		}

		if _, err := logformat.DecodeSnapshot(body[1:]); err != nil {
			issues = append(issues, Issue{NoteID: issueNote(id), Kind: IssueCorruptSnapshot, File: name, Detail: err.Error()})
		}
	}

	return issues, nil
}
