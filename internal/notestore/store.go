// Package notestore implements the Note Storage Manager (spec.md §4.F):
// the orchestrator that ties the append-only log writer, the peer log
// reader, the activity/deletion log, snapshot & compaction, and the
// stale-sync detector together behind a handful of operations
// (load_note, apply_update, get_state, subscribe, delete_note_permanent)
// a caller one layer up (internal/sdapi) can use without knowing any of
// those components exist.
//
// Grounded on the teacher's per-item worker in internal/sync/worker.go: a
// dedicated owner per unit of work, created lazily on first access,
// serializing every mutation to that unit through its own lock so two
// goroutines never race on the same note. Concurrent loads of the same
// note are deduplicated with golang.org/x/sync/singleflight, the same
// pattern the teacher's observer uses to fold duplicate filesystem events
// into one sync pass.
package notestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/drewcsillag/notecove/internal/config"
	"github.com/drewcsillag/notecove/internal/crdt"
	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logsync"
	"github.com/drewcsillag/notecove/internal/noteid"
	"github.com/drewcsillag/notecove/internal/snapshot"
	"github.com/drewcsillag/notecove/internal/staledetect"
)

// ErrNoteDeleted is returned by LoadNote (and every operation on an
// already-open handle) once any peer's deletion log reports the note
// tombstoned. Deletion takes precedence over all other state (spec.md §3).
var ErrNoteDeleted = errors.New("notestore: note is deleted")

// ErrNotLoaded is returned by an operation that requires a note to have
// already been brought into memory with LoadNote.
var ErrNotLoaded = errors.New("notestore: note not loaded")

// Update is delivered to subscribers on every local or remote mutation:
// the document's current encoded state and its derived title.
type Update struct {
	NoteID noteid.ID
	State  []byte
	Title  string
}

// Manager owns every open note for one storage directory and one running
// instance. A Manager is safe for concurrent use across notes; mutations
// to a single note are serialized by that note's own actor.
type Manager struct {
	fs         fsadapter.FS
	sdPath     string
	profileID  noteid.ID
	instanceID noteid.ID
	cfg        *config.Holder
	logger     *slog.Logger
	clock      func() time.Time

	mu    sync.Mutex
	notes map[[16]byte]*noteActor
	group singleflight.Group
}

// NewManager returns a Manager for one storage directory. profileID and
// instanceID identify this running process for every log record, activity
// line, and snapshot file it writes (spec.md §3).
func NewManager(fs fsadapter.FS, sdPath string, profileID, instanceID noteid.ID, cfg *config.Holder, logger *slog.Logger) *Manager {
	return &Manager{
		fs:         fs,
		sdPath:     sdPath,
		profileID:  profileID,
		instanceID: instanceID,
		cfg:        cfg,
		logger:     logger,
		clock:      time.Now,
		notes:      make(map[[16]byte]*noteActor),
	}
}

// SetClock overrides the time source for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.clock = now
}

// LoadNote brings a note into memory: applies its best available snapshot,
// replays every currently-present log file, restores persisted stale-skip
// decisions, and caches the result so later operations are cheap. Calling
// LoadNote again for an already-open note is a cheap cache hit; concurrent
// first loads of the same note are deduplicated so the filesystem work
// happens exactly once.
func (m *Manager) LoadNote(ctx context.Context, noteID noteid.ID) (*NoteHandle, error) {
	if _, ok := m.cachedActor(noteID); ok {
		return &NoteHandle{mgr: m, noteID: noteID}, nil
	}

	_, err, _ := m.group.Do(noteID.String(), func() (any, error) {
		if _, ok := m.cachedActor(noteID); ok {
			return nil, nil
		}

		a, err := m.loadNoteLocked(ctx, noteID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.notes[noteID.Bytes()] = a
		m.mu.Unlock()

		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	return &NoteHandle{mgr: m, noteID: noteID}, nil
}

func (m *Manager) cachedActor(noteID noteid.ID) (*noteActor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.notes[noteID.Bytes()]

	return a, ok
}

func (m *Manager) actorFor(noteID noteid.ID) (*noteActor, error) {
	deleted, err := m.isDeleted(noteID)
	if err != nil {
		return nil, err
	}

	if deleted {
		m.CloseNote(noteID)
		return nil, fmt.Errorf("%w: %s", ErrNoteDeleted, noteID)
	}

	a, ok := m.cachedActor(noteID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, noteID)
	}

	return a, nil
}

func (m *Manager) loadNoteLocked(ctx context.Context, noteID noteid.ID) (*noteActor, error) {
	deleted, err := m.isDeleted(noteID)
	if err != nil {
		return nil, err
	}

	if deleted {
		return nil, fmt.Errorf("%w: %s", ErrNoteDeleted, noteID)
	}

	if err := m.fs.Mkdir(logsDir(m.fs, m.sdPath, noteID)); err != nil {
		return nil, fmt.Errorf("notestore: preparing logs dir: %w", err)
	}

	if err := m.fs.Mkdir(snapshotsDir(m.fs, m.sdPath, noteID)); err != nil {
		return nil, fmt.Errorf("notestore: preparing snapshots dir: %w", err)
	}

	doc := crdt.NewDoc()

	loaded, err := snapshot.ReadAll(m.fs, snapshotsDir(m.fs, m.sdPath, noteID))
	if err != nil {
		return nil, fmt.Errorf("notestore: reading snapshots: %w", err)
	}

	var lastSnapshotMs int64

	if best, ok := snapshot.SelectBest(loaded); ok {
		if err := doc.Apply(best.Snapshot.State); err != nil {
			return nil, fmt.Errorf("notestore: applying snapshot %s: %w", best.Filename, err)
		}

		lastSnapshotMs = best.Snapshot.CreatedMs
	}

	// Every log file is replayed from its start: sync_state.json is shared
	// by every instance that opens this note, so its offsets can lie past
	// records the snapshot applied above does not cover.
	offsets, seqState := logsync.Offsets{}, logsync.SeqState{}

	det := staledetect.New(m.sdPath, noteID, m.cfg.Config().Stale.GraceMs)
	det.SetClock(m.clock)

	if err := det.LoadSkips(m.fs, skipsPath(m.fs, m.sdPath, noteID)); err != nil {
		return nil, err
	}

	a := &noteActor{
		mgr:                    m,
		noteID:                 noteID,
		doc:                    doc,
		offsets:                offsets,
		seqState:               seqState,
		staleDetector:          det,
		lastSnapshotMs:         lastSnapshotMs,
		lastSnapshotObservedAt: m.clock(),
		subscribers:            make(map[int]func(Update)),
	}

	if err := a.syncLocked(ctx); err != nil {
		return nil, err
	}

	if err := m.refreshActivityClaims(a); err != nil {
		return nil, err
	}

	return a, nil
}

// ApplyLocalUpdate persists a CRDT update produced locally (its ops must
// carry this instance's own actor bytes and a seq matching the note's log
// writer's next sequence), merges it into the in-memory document, and
// records it in this instance's activity log. It returns the sequence the
// Log Writer assigned.
func (m *Manager) ApplyLocalUpdate(noteID noteid.ID, update []byte) (uint64, error) {
	a, err := m.actorFor(noteID)
	if err != nil {
		return 0, err
	}

	return a.applyLocalUpdate(m.clock().UnixMilli(), update)
}

// GetState returns the note's full current encoded state.
func (m *Manager) GetState(noteID noteid.ID) ([]byte, error) {
	a, err := m.actorFor(noteID)
	if err != nil {
		return nil, err
	}

	return a.state(), nil
}

// SyncNote pulls and applies any peer log records not yet seen, refreshes
// the note's stale-sync claims, and captures a new snapshot if a threshold
// has crossed. It is the unit of work the periodic sync cycle and the
// filesystem watcher both drive (spec.md §5).
func (m *Manager) SyncNote(ctx context.Context, noteID noteid.ID) error {
	a, err := m.actorFor(noteID)
	if err != nil {
		return err
	}

	if err := a.sync(ctx); err != nil {
		return err
	}

	if err := m.refreshActivityClaims(a); err != nil {
		return err
	}

	return a.maybeSnapshotAndPrune(m.clock())
}

// Subscribe registers a callback invoked with the note's latest Update
// after every local or remote mutation. The returned func unregisters it.
func (m *Manager) Subscribe(noteID noteid.ID, cb func(Update)) (func(), error) {
	a, err := m.actorFor(noteID)
	if err != nil {
		return nil, err
	}

	return a.subscribe(cb), nil
}

// ListStale returns every unresolved stale-sync gap for the note.
func (m *Manager) ListStale(noteID noteid.ID) ([]staledetect.StaleEntry, error) {
	a, err := m.actorFor(noteID)
	if err != nil {
		return nil, err
	}

	return a.staleDetector.ListStale(), nil
}

// SkipStale accepts the current gap from sourceInstanceID for the note and
// persists that decision.
func (m *Manager) SkipStale(noteID, sourceInstanceID noteid.ID) error {
	a, err := m.actorFor(noteID)
	if err != nil {
		return err
	}

	return a.skipStale(sourceInstanceID)
}

// RetryStale clears any skip for sourceInstanceID, restarts the gap's
// grace timer (so a gap that still exists is reported again only after a
// full grace period), and re-runs an immediate sync.
func (m *Manager) RetryStale(ctx context.Context, noteID, sourceInstanceID noteid.ID) error {
	a, err := m.actorFor(noteID)
	if err != nil {
		return err
	}

	a.staleDetector.Retry(sourceInstanceID)

	if err := a.persistSkips(); err != nil {
		return err
	}

	return m.SyncNote(ctx, noteID)
}

// CloseNote drops a note from the in-memory cache. A later LoadNote call
// reloads it from disk from scratch.
func (m *Manager) CloseNote(noteID noteid.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.notes, noteID.Bytes())
}

// InstanceID returns this running process's instance identifier.
func (m *Manager) InstanceID() noteid.ID {
	return m.instanceID
}

// ProfileID returns this device's profile identifier.
func (m *Manager) ProfileID() noteid.ID {
	return m.profileID
}

// EditContent applies a local content-block edit to noteID under this
// instance's own actor bytes and persists it, returning the assigned
// sequence. blockID names the content block (stable across edits to the
// same block); position orders it relative to other blocks.
func (m *Manager) EditContent(noteID noteid.ID, blockID [16]byte, position float64, deleted bool, text []byte) (uint64, error) {
	a, err := m.actorFor(noteID)
	if err != nil {
		return 0, err
	}

	return a.editContent(m.clock().UnixMilli(), m.instanceID.Bytes(), blockID, position, deleted, text)
}

// EditMeta applies a local metadata-register edit to noteID under this
// instance's own actor bytes and persists it, returning the assigned
// sequence.
func (m *Manager) EditMeta(noteID noteid.ID, key crdt.MetaKey, value []byte) (uint64, error) {
	a, err := m.actorFor(noteID)
	if err != nil {
		return 0, err
	}

	return a.editMeta(m.clock().UnixMilli(), m.instanceID.Bytes(), key, value)
}
