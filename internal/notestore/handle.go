package notestore

import (
	"context"

	"github.com/drewcsillag/notecove/internal/crdt"
	"github.com/drewcsillag/notecove/internal/noteid"
	"github.com/drewcsillag/notecove/internal/staledetect"
)

// NoteHandle is a lightweight reference to an already-loaded note,
// returned by Manager.LoadNote. It carries no state of its own beyond the
// note's identity; every operation is forwarded to the Manager, which
// looks up the note's actor by ID. A NoteHandle is safe to keep past a
// CloseNote call, but operations on it will fail with ErrNotLoaded until
// the note is loaded again.
type NoteHandle struct {
	mgr    *Manager
	noteID noteid.ID
}

// ID returns the note's identifier.
func (h *NoteHandle) ID() noteid.ID {
	return h.noteID
}

// State returns the note's full current encoded state.
func (h *NoteHandle) State() ([]byte, error) {
	return h.mgr.GetState(h.noteID)
}

// ApplyUpdate persists an already-encoded CRDT update.
func (h *NoteHandle) ApplyUpdate(update []byte) (uint64, error) {
	return h.mgr.ApplyLocalUpdate(h.noteID, update)
}

// EditContent applies a local content-block edit.
func (h *NoteHandle) EditContent(blockID [16]byte, position float64, deleted bool, text []byte) (uint64, error) {
	return h.mgr.EditContent(h.noteID, blockID, position, deleted, text)
}

// EditMeta applies a local metadata-register edit.
func (h *NoteHandle) EditMeta(key crdt.MetaKey, value []byte) (uint64, error) {
	return h.mgr.EditMeta(h.noteID, key, value)
}

// Sync pulls and applies peer updates and runs the snapshot/prune cycle.
func (h *NoteHandle) Sync(ctx context.Context) error {
	return h.mgr.SyncNote(ctx, h.noteID)
}

// Subscribe registers a callback invoked on every mutation.
func (h *NoteHandle) Subscribe(cb func(Update)) (func(), error) {
	return h.mgr.Subscribe(h.noteID, cb)
}

// ListStale returns every unresolved stale-sync gap for this note.
func (h *NoteHandle) ListStale() ([]staledetect.StaleEntry, error) {
	return h.mgr.ListStale(h.noteID)
}

// SkipStale accepts the current gap from sourceInstanceID.
func (h *NoteHandle) SkipStale(sourceInstanceID noteid.ID) error {
	return h.mgr.SkipStale(h.noteID, sourceInstanceID)
}

// RetryStale restarts the grace timer for sourceInstanceID and re-syncs.
func (h *NoteHandle) RetryStale(ctx context.Context, sourceInstanceID noteid.ID) error {
	return h.mgr.RetryStale(ctx, h.noteID, sourceInstanceID)
}

// Close drops this note from the Manager's in-memory cache.
func (h *NoteHandle) Close() {
	h.mgr.CloseNote(h.noteID)
}
