// Package sdapi implements the open_sd facade (spec.md §6): the single
// entry point a UI layer (or the CLI) uses to open a storage directory and
// drive every other operation without knowing that a version gate, a
// note-storage manager, and a stale-sync detector exist underneath.
// Grounded on the teacher's root.go, which resolves config/flags once at
// startup and hands a single long-lived context object to every
// subcommand; Handle plays that role here.
package sdapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/drewcsillag/notecove/internal/config"
	"github.com/drewcsillag/notecove/internal/crdt"
	"github.com/drewcsillag/notecove/internal/diagnostics"
	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/noteid"
	"github.com/drewcsillag/notecove/internal/notestore"
	"github.com/drewcsillag/notecove/internal/sdmigrate"
	"github.com/drewcsillag/notecove/internal/searchindex"
	"github.com/drewcsillag/notecove/internal/staledetect"
)

// Handle is the open handle a caller holds for one storage directory.
type Handle struct {
	fs         fsadapter.FS
	path       string
	profileID  noteid.ID
	instanceID noteid.ID
	cfgHolder  *config.Holder
	store      *notestore.Manager
	version    int
	index      *searchindex.Store
	logger     *slog.Logger
}

// OpenOptions carries everything open_sd needs beyond the path itself.
type OpenOptions struct {
	FS         fsadapter.FS // nil defaults to fsadapter.NewLocal()
	ProfileID  noteid.ID
	InstanceID noteid.ID
	Config     *config.Config // nil defaults to config.DefaultConfig()
	ConfigPath string
	Logger     *slog.Logger // nil defaults to slog.Default()
}

// Open implements open_sd: it runs the read-only version gate
// (sdmigrate.CheckVersion) and, only if the directory is current, builds a
// Manager over it. A VersionError from CheckVersion is returned verbatim
// so the caller can distinguish locked/too-old/too-new (spec.md §6).
func Open(path string, opts OpenOptions) (*Handle, error) {
	fs := opts.FS
	if fs == nil {
		fs = fsadapter.NewLocal()
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	version, err := sdmigrate.CheckVersion(fs, path, sdmigrate.CurrentAppVersion)
	if err != nil {
		return nil, err
	}

	holder := config.NewHolder(cfg, opts.ConfigPath)
	store := notestore.NewManager(fs, path, opts.ProfileID, opts.InstanceID, holder, logger)

	index, err := openIndex(path, logger)
	if err != nil {
		logger.Warn("sdapi: search index unavailable, listing/search queries will fail until rebuilt", "error", err)
	}

	return &Handle{
		fs:         fs,
		path:       path,
		profileID:  opts.ProfileID,
		instanceID: opts.InstanceID,
		cfgHolder:  holder,
		store:      store,
		version:    version,
		index:      index,
		logger:     logger,
	}, nil
}

// openIndex derives the search index's database path from the storage
// directory's path (so two different SDs never collide under the shared
// data directory) and opens it, applying migrations.
func openIndex(sdPath string, logger *slog.Logger) (*searchindex.Store, error) {
	dataDir := config.DefaultDataDir()
	if dataDir == "" {
		return nil, fmt.Errorf("sdapi: cannot determine data directory for search index")
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("sdapi: creating data directory: %w", err)
	}

	sum := sha256.Sum256([]byte(sdPath))
	dbName := hex.EncodeToString(sum[:8]) + ".db"

	return searchindex.Open(filepath.Join(dataDir, dbName), logger)
}

// Close releases resources held by this handle, namely the search index
// database connection.
func (h *Handle) Close() error {
	if h.index == nil {
		return nil
	}

	return h.index.Close()
}

// Path returns the storage directory this handle was opened against.
func (h *Handle) Path() string { return h.path }

// Version returns the SD_VERSION this handle was opened at.
func (h *Handle) Version() int { return h.version }

// ConfigHolder exposes the live config holder, e.g. so a watch daemon can
// reload it on SIGHUP.
func (h *Handle) ConfigHolder() *config.Holder { return h.cfgHolder }

// Store exposes the underlying Manager for callers (the watch daemon, the
// CLI) that need operations sdapi does not itself wrap, such as iterating
// every known note.
func (h *Handle) Store() *notestore.Manager { return h.store }

// LoadNote implements load_note: it brings a note into memory and returns
// its current state.
func (h *Handle) LoadNote(ctx context.Context, noteID noteid.ID) (*notestore.NoteHandle, []byte, error) {
	note, err := h.store.LoadNote(ctx, noteID)
	if err != nil {
		return nil, nil, err
	}

	state, err := note.State()
	if err != nil {
		return nil, nil, err
	}

	h.reindex(ctx, noteID, state)

	return note, state, nil
}

// ApplyUpdate implements apply_update.
func (h *Handle) ApplyUpdate(noteID noteid.ID, update []byte) (uint64, error) {
	seq, err := h.store.ApplyLocalUpdate(noteID, update)
	if err != nil {
		return 0, err
	}

	if state, stateErr := h.store.GetState(noteID); stateErr == nil {
		h.reindex(context.Background(), noteID, state)
	}

	return seq, nil
}

// reindex keeps the search index's cached listing metadata current after
// a load or a local mutation. The index is a best-effort cache (spec.md's
// searchindex supplement, see SPEC_FULL.md); a failure here is logged,
// never propagated, since a stale or missing index is recovered by
// RebuildIndex rather than by failing the caller's actual operation.
func (h *Handle) reindex(ctx context.Context, noteID noteid.ID, state []byte) {
	if h.index == nil {
		return
	}

	doc := crdt.NewDoc()
	if err := doc.Apply(state); err != nil {
		h.logger.Warn("sdapi: could not reindex note", "note", noteID.String(), "error", err)
		return
	}

	if err := h.index.Upsert(ctx, noteID, doc, time.Now().UnixMilli()); err != nil {
		h.logger.Warn("sdapi: could not reindex note", "note", noteID.String(), "error", err)
	}
}

// RebuildIndex repopulates the search index from scratch by reading
// every note's current on-disk state, first opening the index if Open
// could not. Used by `ncstorage inspect --rebuild-index`.
func (h *Handle) RebuildIndex(ctx context.Context) error {
	if h.index == nil {
		idx, err := openIndex(h.path, h.logger)
		if err != nil {
			return err
		}

		h.index = idx
	}

	return h.index.Rebuild(ctx, h.fs, h.path)
}

// ListNotesInFolder returns the cached listing for one folder (empty
// string for the root folder).
func (h *Handle) ListNotesInFolder(ctx context.Context, folderID string) ([]searchindex.Entry, error) {
	if h.index == nil {
		return nil, fmt.Errorf("sdapi: search index unavailable")
	}

	return h.index.ListByFolder(ctx, folderID)
}

// SearchNotes runs a full-text title search via the cached index.
func (h *Handle) SearchNotes(ctx context.Context, query string) ([]searchindex.Entry, error) {
	if h.index == nil {
		return nil, fmt.Errorf("sdapi: search index unavailable")
	}

	return h.index.Search(ctx, query)
}

// GetState implements get_state.
func (h *Handle) GetState(noteID noteid.ID) ([]byte, error) {
	return h.store.GetState(noteID)
}

// Subscribe implements subscribe: callback fires on every mutation to
// noteID; the returned func is the "unsubscribe token".
func (h *Handle) Subscribe(noteID noteid.ID, callback func(notestore.Update)) (func(), error) {
	return h.store.Subscribe(noteID, callback)
}

// DeleteNotePermanent implements delete_note_permanent.
func (h *Handle) DeleteNotePermanent(noteID noteid.ID) error {
	if err := h.store.DeleteNotePermanently(noteID); err != nil {
		return err
	}

	if h.index != nil {
		if err := h.index.Remove(context.Background(), noteID); err != nil {
			h.logger.Warn("sdapi: could not remove note from search index", "note", noteID.String(), "error", err)
		}
	}

	return nil
}

// ListStale implements list_stale: every unresolved stale-sync gap across
// every currently-loaded note. A note that has never been loaded this
// process lifetime contributes nothing; the CLI's `ncstorage inspect`
// loads every note first for that reason.
func (h *Handle) ListStale(noteIDs []noteid.ID) ([]staledetect.StaleEntry, error) {
	var out []staledetect.StaleEntry

	for _, id := range noteIDs {
		entries, err := h.store.ListStale(id)
		if errors.Is(err, notestore.ErrNotLoaded) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("sdapi: listing stale entries for %s: %w", id, err)
		}

		out = append(out, entries...)
	}

	return out, nil
}

// SkipStale implements skip_stale.
func (h *Handle) SkipStale(noteID, sourceInstanceID noteid.ID) error {
	return h.store.SkipStale(noteID, sourceInstanceID)
}

// RetryStale implements retry_stale.
func (h *Handle) RetryStale(ctx context.Context, noteID, sourceInstanceID noteid.ID) error {
	return h.store.RetryStale(ctx, noteID, sourceInstanceID)
}

// ExportDiagnostics implements export_diagnostics: a gzip'd tarball of
// every on-disk artifact under this handle's storage directory plus a
// JSON dump of the stale-sync gaps known to every currently-loaded note
// named in noteIDs.
func (h *Handle) ExportDiagnostics(outPath string, noteIDs []noteid.ID) error {
	stale, err := h.ListStale(noteIDs)
	if err != nil {
		return err
	}

	staleJSON, err := json.Marshal(stale)
	if err != nil {
		return fmt.Errorf("sdapi: encoding stale entries: %w", err)
	}

	dump := diagnostics.StateDump{
		GeneratedAt:  time.Now(),
		SDVersion:    h.version,
		ProfileID:    h.profileID.String(),
		InstanceID:   h.instanceID.String(),
		StaleEntries: staleJSON,
	}

	return diagnostics.ExportFS(h.fs, h.path, outPath, dump)
}
