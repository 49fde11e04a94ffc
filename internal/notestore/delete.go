package notestore

import (
	"fmt"

	"github.com/drewcsillag/notecove/internal/activitylog"
	"github.com/drewcsillag/notecove/internal/logformat"
	"github.com/drewcsillag/notecove/internal/noteid"
)

// DeleteNotePermanently writes a deletion-log line for noteID to this
// instance's own deletion log, waits for that write to land, then removes
// the note's on-disk directory. The deletion log write happens first so
// that even if the process dies before the unlink completes, every peer
// still learns the note is gone (spec.md §4.G: "before unlinking").
func (m *Manager) DeleteNotePermanently(noteID noteid.ID) error {
	nowMs := m.clock().UnixMilli()

	if err := m.fs.Mkdir(deletionsDir(m.fs, m.sdPath)); err != nil {
		return fmt.Errorf("notestore: preparing deletions dir: %w", err)
	}

	path := ownDeletionLogPath(m.fs, m.sdPath, m.profileID, m.instanceID)
	if err := activitylog.AppendDeletion(m.fs, path, noteID, nowMs); err != nil {
		return err
	}

	m.CloseNote(noteID)

	if err := removeAllRecursive(m.fs, noteDir(m.fs, m.sdPath, noteID)); err != nil {
		return fmt.Errorf("notestore: removing note directory for %s: %w", noteID, err)
	}

	return nil
}

// isDeleted scans every peer deletion log (including this instance's own)
// for a line naming noteID. Any single line is authoritative regardless
// of which instance wrote it (spec.md §3: deletion takes precedence over
// all other state).
func (m *Manager) isDeleted(noteID noteid.ID) (bool, error) {
	dir := deletionsDir(m.fs, m.sdPath)

	exists, err := m.fs.Exists(dir)
	if err != nil {
		return false, fmt.Errorf("notestore: checking deletions dir: %w", err)
	}

	if !exists {
		return false, nil
	}

	names, err := m.fs.ListFiles(dir)
	if err != nil {
		return false, fmt.Errorf("notestore: listing deletions dir: %w", err)
	}

	for _, name := range names {
		parsed, ok := logformat.ParseFilename(name)
		if !ok || parsed.Kind != logformat.KindActivityOrDeletion {
			continue
		}

		entries, err := activitylog.ReadDeletions(m.fs, m.fs.JoinPath(dir, name))
		if err != nil {
			return false, err
		}

		for _, e := range entries {
			if e.NoteID.Equal(noteID) {
				return true, nil
			}
		}
	}

	return false, nil
}

// recordActivity appends one line to this instance's own activity log.
func (m *Manager) recordActivity(noteID noteid.ID, seq uint64, nowMs int64) error {
	if err := m.fs.Mkdir(activityDir(m.fs, m.sdPath)); err != nil {
		return fmt.Errorf("notestore: preparing activity dir: %w", err)
	}

	path := ownActivityLogPath(m.fs, m.sdPath, m.profileID, m.instanceID)

	return activitylog.AppendActivity(m.fs, path, noteID, seq, nowMs)
}

// logFilename names a new active log file this instance is about to start
// writing for a note.
func (m *Manager) logFilename(createdMs int64) string {
	return logformat.LogFilename(m.profileID, m.instanceID, createdMs)
}

// refreshActivityClaims re-reads every peer activity log and feeds this
// note's highest claimed sequence per instance into the stale-sync
// detector (spec.md §4.H).
func (m *Manager) refreshActivityClaims(a *noteActor) error {
	dir := activityDir(m.fs, m.sdPath)

	exists, err := m.fs.Exists(dir)
	if err != nil {
		return fmt.Errorf("notestore: checking activity dir: %w", err)
	}

	if !exists {
		return nil
	}

	names, err := m.fs.ListFiles(dir)
	if err != nil {
		return fmt.Errorf("notestore: listing activity dir: %w", err)
	}

	for _, name := range names {
		parsed, ok := logformat.ParseFilename(name)
		if !ok || parsed.Kind != logformat.KindActivityOrDeletion {
			continue
		}

		entries, err := activitylog.ReadActivity(m.fs, m.fs.JoinPath(dir, name))
		if err != nil {
			return err
		}

		best, ok := activitylog.HighestSequenceByNote(entries)[a.noteID]
		if !ok {
			continue
		}

		a.claim(parsed.ProfileID, parsed.InstanceID, best.Sequence)
	}

	return nil
}
