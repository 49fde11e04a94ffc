package searchindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/drewcsillag/notecove/internal/crdt"
	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logformat"
	"github.com/drewcsillag/notecove/internal/noteid"
	"github.com/drewcsillag/notecove/internal/snapshot"
)

// Rebuild repopulates the index from scratch by reading every note's
// current on-disk state directly (best snapshot plus every log record),
// bypassing internal/notestore entirely. This is the recovery path for a
// missing or corrupt index database: the index is a cache, never a
// source of truth, so rebuilding from the logs is always correct even if
// slower than an incremental update.
func (s *Store) Rebuild(ctx context.Context, fs fsadapter.FS, sdPath string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("searchindex: clearing notes table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes_fts`); err != nil {
		return fmt.Errorf("searchindex: clearing fts table: %w", err)
	}

	notesRoot := fs.JoinPath(sdPath, "notes")

	names, err := fs.ListFiles(notesRoot)
	if err != nil {
		if errors.Is(err, fsadapter.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("searchindex: listing notes: %w", err)
	}

	for _, name := range names {
		id, err := noteid.Parse(name)
		if err != nil {
			continue
		}

		doc, nowMs, err := loadDocReadOnly(fs, sdPath, id)
		if err != nil {
			s.logger.Warn("searchindex: skipping note during rebuild", "note", id.String(), "error", err)
			continue
		}

		if err := s.Upsert(ctx, id, doc, nowMs); err != nil {
			return fmt.Errorf("searchindex: indexing %s: %w", id, err)
		}
	}

	return nil
}

// loadDocReadOnly reconstructs a note's CRDT document by applying its
// best snapshot and every currently present log record, without writing
// any sync-state or claiming ownership of the note the way
// internal/notestore.Manager.LoadNote does. It is read-only and safe to
// run concurrently with a live Manager.
func loadDocReadOnly(fs fsadapter.FS, sdPath string, id noteid.ID) (*crdt.Doc, int64, error) {
	doc := crdt.NewDoc()

	snapshotsDir := fs.JoinPath(sdPath, "notes", id.String(), "snapshots")

	loaded, err := snapshot.ReadAll(fs, snapshotsDir)
	if err != nil {
		return nil, 0, fmt.Errorf("reading snapshots: %w", err)
	}

	var nowMs int64

	if best, ok := snapshot.SelectBest(loaded); ok {
		if err := doc.Apply(best.Snapshot.State); err != nil {
			return nil, 0, fmt.Errorf("applying snapshot: %w", err)
		}

		nowMs = best.Snapshot.CreatedMs
	}

	logsDir := fs.JoinPath(sdPath, "notes", id.String(), "logs")

	logNames, err := fs.ListFiles(logsDir)
	if err != nil {
		return doc, nowMs, nil
	}

	for _, name := range logNames {
		parsed, ok := logformat.ParseFilename(name)
		if !ok || parsed.Kind != logformat.KindLog {
			continue
		}

		data, err := fs.ReadFile(fs.JoinPath(logsDir, name))
		if err != nil {
			continue
		}

		records, _, _ := logformat.DecodeStream(data)

		for _, rec := range records {
			if err := doc.Apply(rec.Payload); err != nil {
				continue
			}

			if rec.TimestampMs > nowMs {
				nowMs = rec.TimestampMs
			}
		}
	}

	return doc, nowMs, nil
}
