// Package searchindex implements the derived, rebuildable note-listing
// cache SPEC_FULL.md adds: a SQLite database of folder, pinned,
// soft-deleted, tags, and title metadata for every note, kept only for
// "list notes in folder F" and "search by title" queries. It is never
// authoritative — a missing or corrupt database is rebuilt (Rebuild) by
// applying each note's best snapshot and replaying its log files, and
// nothing is ever read back from the index into a note.
//
// Grounded on the teacher's internal/sync.SQLiteStore: the same
// modernc.org/sqlite pure-Go driver, the same WAL-mode pragma set, and
// the same embedded-migrations idea, upgraded here to use
// github.com/pressly/goose/v3 directly against an embed.FS rather than
// the teacher's hand-rolled PRAGMA user_version runner (goose is already
// part of this module's dependency stack and needs a concrete home).
package searchindex

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/drewcsillag/notecove/internal/crdt"
	"github.com/drewcsillag/notecove/internal/noteid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const walJournalSizeLimit = 67108864

// Entry is one note's cached listing metadata.
type Entry struct {
	NoteID      noteid.ID
	Title       string
	FolderID    string
	Pinned      bool
	SoftDeleted bool
	Tags        []string
	UpdatedAtMs int64
}

// Store is the open search index database for one storage directory.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the search index database at
// dbPath, sets WAL pragmas, and applies any pending goose migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("searchindex: opening %s: %w", dbPath, err)
	}

	if err := setPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("searchindex: setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("searchindex: applying migrations: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func setPragmas(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("searchindex: %s: %w", s, err)
		}
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert derives an Entry from doc's current state and writes it,
// replacing any previous row for the same note.
func (s *Store) Upsert(ctx context.Context, id noteid.ID, doc *crdt.Doc, nowMs int64) error {
	entry := entryFromDoc(id, doc, nowMs)
	return s.upsertEntry(ctx, entry)
}

func entryFromDoc(id noteid.ID, doc *crdt.Doc, nowMs int64) Entry {
	entry := Entry{NoteID: id, Title: doc.Title(), UpdatedAtMs: nowMs}

	if v, ok := doc.FolderID(); ok {
		entry.FolderID = string(v)
	}

	if v, ok := doc.Pinned(); ok {
		entry.Pinned = len(v) > 0 && v[0] != 0
	}

	if v, ok := doc.SoftDeleted(); ok {
		entry.SoftDeleted = len(v) > 0 && v[0] != 0
	}

	if v, ok := doc.Tags(); ok {
		var tags []string
		if json.Unmarshal(v, &tags) == nil {
			entry.Tags = tags
		}
	}

	return entry
}

func (s *Store) upsertEntry(ctx context.Context, e Entry) error {
	tagsJSON, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("searchindex: encoding tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("searchindex: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (note_id, title, folder_id, pinned, soft_deleted, tags, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET
			title = excluded.title,
			folder_id = excluded.folder_id,
			pinned = excluded.pinned,
			soft_deleted = excluded.soft_deleted,
			tags = excluded.tags,
			updated_at_ms = excluded.updated_at_ms
	`, e.NoteID.String(), e.Title, nullableFolder(e.FolderID), boolToInt(e.Pinned), boolToInt(e.SoftDeleted), string(tagsJSON), e.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("searchindex: upserting note: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE note_id = ?`, e.NoteID.String()); err != nil {
		return fmt.Errorf("searchindex: clearing fts row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO notes_fts (note_id, title) VALUES (?, ?)`, e.NoteID.String(), e.Title); err != nil {
		return fmt.Errorf("searchindex: inserting fts row: %w", err)
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

// Remove deletes a note's cached entry, used when a note is permanently
// deleted.
func (s *Store) Remove(ctx context.Context, id noteid.ID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE note_id = ?`, id.String()); err != nil {
		return fmt.Errorf("searchindex: removing note: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes_fts WHERE note_id = ?`, id.String()); err != nil {
		return fmt.Errorf("searchindex: removing fts row: %w", err)
	}

	return nil
}

// ListByFolder returns every non-deleted note in folderID, ordered
// pinned-first then by most recently updated.
func (s *Store) ListByFolder(ctx context.Context, folderID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT note_id, title, folder_id, pinned, soft_deleted, tags, updated_at_ms
		FROM notes
		WHERE folder_id IS ? AND soft_deleted = 0
		ORDER BY pinned DESC, updated_at_ms DESC
	`, nullableFolder(folderID))
	if err != nil {
		return nil, fmt.Errorf("searchindex: listing folder %q: %w", folderID, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListAll returns every note in the index regardless of folder or
// soft-deleted status, ordered by note id, for diagnostic tooling
// (`ncstorage inspect`) that wants a complete listing rather than one
// folder's view.
func (s *Store) ListAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT note_id, title, folder_id, pinned, soft_deleted, tags, updated_at_ms
		FROM notes
		ORDER BY note_id
	`)
	if err != nil {
		return nil, fmt.Errorf("searchindex: listing all notes: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func nullableFolder(folderID string) any {
	if folderID == "" {
		return nil
	}

	return folderID
}

// Search runs a full-text title query via the notes_fts virtual table.
func (s *Store) Search(ctx context.Context, query string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.note_id, n.title, n.folder_id, n.pinned, n.soft_deleted, n.tags, n.updated_at_ms
		FROM notes_fts f
		JOIN notes n ON n.note_id = f.note_id
		WHERE notes_fts MATCH ? AND n.soft_deleted = 0
		ORDER BY rank
	`, query)
	if err != nil {
		return nil, fmt.Errorf("searchindex: searching %q: %w", query, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry

	for rows.Next() {
		var (
			idStr    string
			e        Entry
			folderID sql.NullString
			pinned   int
			deleted  int
			tagsJSON string
		)

		if err := rows.Scan(&idStr, &e.Title, &folderID, &pinned, &deleted, &tagsJSON, &e.UpdatedAtMs); err != nil {
			return nil, fmt.Errorf("searchindex: scanning row: %w", err)
		}

		id, err := noteid.Parse(idStr)
		if err != nil {
			continue
		}

		e.NoteID = id
		e.FolderID = folderID.String
		e.Pinned = pinned != 0
		e.SoftDeleted = deleted != 0

		var tags []string
		if json.Unmarshal([]byte(tagsJSON), &tags) == nil {
			e.Tags = tags
		}

		out = append(out, e)
	}

	return out, rows.Err()
}
