package notestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/drewcsillag/notecove/internal/crdt"
	"github.com/drewcsillag/notecove/internal/logsync"
	"github.com/drewcsillag/notecove/internal/logwriter"
	"github.com/drewcsillag/notecove/internal/noteid"
	"github.com/drewcsillag/notecove/internal/staledetect"
)

// noteActor owns one note's in-memory state and serializes every mutation
// to it behind mu, the way the teacher's per-transfer worker serializes
// everything it does to one file. Nothing outside this package ever holds
// mu directly; every exported Manager method takes it, does its work, and
// releases it before returning.
type noteActor struct {
	mgr    *Manager
	noteID noteid.ID

	mu       sync.Mutex
	doc      *crdt.Doc
	writer   *logwriter.Writer
	offsets  logsync.Offsets
	seqState logsync.SeqState

	staleDetector *staledetect.Detector

	lastSnapshotMs         int64
	lastSnapshotObservedAt time.Time

	subscribers map[int]func(Update)
	nextSubID   int
}

func (a *noteActor) state() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.doc.StateAsUpdate()
}

func (a *noteActor) subscribe(cb func(Update)) func() {
	a.mu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = cb
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subscribers, id)
		a.mu.Unlock()
	}
}

// publishLocked notifies every subscriber with the document's current
// state. Callers must hold mu; the subscriber callbacks themselves are
// invoked synchronously, matching the teacher's progress-callback
// convention in internal/sync (fire inline, let the receiver decide
// whether to hop to another goroutine).
func (a *noteActor) publishLocked() {
	upd := Update{
		NoteID: a.noteID,
		State:  a.doc.StateAsUpdate(),
		Title:  a.doc.Title(),
	}

	for _, cb := range a.subscribers {
		cb(upd)
	}
}

// applyLocalUpdate merges an already-encoded update into the document and
// persists it via the note's own writer.
func (a *noteActor) applyLocalUpdate(nowMs int64, update []byte) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.doc.Apply(update); err != nil {
		return 0, fmt.Errorf("notestore: applying local update: %w", err)
	}

	return a.persistLocalLocked(nowMs, update)
}

// editContent applies a content-block edit directly (see crdt.Doc.EditContent)
// and persists the resulting update.
func (a *noteActor) editContent(nowMs int64, actor [16]byte, blockID [16]byte, position float64, deleted bool, text []byte) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	payload := a.doc.EditContent(actor, a.nextSeqLocked(), blockID, position, deleted, text)

	return a.persistLocalLocked(nowMs, payload)
}

// editMeta applies a metadata-register edit directly (see crdt.Doc.EditMeta)
// and persists the resulting update.
func (a *noteActor) editMeta(nowMs int64, actor [16]byte, key crdt.MetaKey, value []byte) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	payload := a.doc.EditMeta(actor, a.nextSeqLocked(), key, value)

	return a.persistLocalLocked(nowMs, payload)
}

// nextSeqLocked returns the sequence this instance's next local op must
// carry: one past whatever the note's writer has already assigned (zero
// if no local write has happened yet this process lifetime). Callers must
// hold mu.
func (a *noteActor) nextSeqLocked() uint64 {
	if a.writer == nil {
		return 1
	}

	return a.writer.CurrentSequence() + 1
}

// persistLocalLocked appends payload to this instance's own log file
// (creating it on first local write, per spec.md §4.D: "a log file is
// created on first write by an instance to a note"), records one
// activity-log line, and publishes the resulting state. Callers must hold
// mu and must already have merged payload into a.doc.
func (a *noteActor) persistLocalLocked(nowMs int64, payload []byte) (uint64, error) {
	if a.writer == nil {
		name := a.mgr.logFilename(nowMs)
		path := a.mgr.fs.JoinPath(logsDir(a.mgr.fs, a.mgr.sdPath, a.noteID), name)
		a.writer = logwriter.Open(a.mgr.fs, path, 0, 0)
	}

	seq, err := a.writer.Append(nowMs, payload)
	if err != nil {
		return 0, fmt.Errorf("notestore: appending local update: %w", err)
	}

	if err := a.mgr.recordActivity(a.noteID, seq, nowMs); err != nil {
		return 0, err
	}

	a.publishLocked()

	return seq, nil
}

func (a *noteActor) sync(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.syncLocked(ctx)
}

func (a *noteActor) syncLocked(ctx context.Context) error {
	dir := logsDir(a.mgr.fs, a.mgr.sdPath, a.noteID)

	result, err := logsync.SyncNote(ctx, a.mgr.fs, dir, a.offsets, a.seqState, a.mgr.logger)
	if err != nil {
		return fmt.Errorf("notestore: syncing note %s: %w", a.noteID, err)
	}

	for _, payload := range result.NewRecords {
		if err := a.doc.Apply(payload); err != nil {
			return fmt.Errorf("notestore: applying synced record for %s: %w", a.noteID, err)
		}
	}

	a.offsets = result.NewOffsets
	a.seqState = result.NewSeqState

	for instBytes, seq := range result.HighestSeqByActor {
		a.staleDetector.Observe(noteid.FromBytes(instBytes), seq)
	}

	if err := saveSyncState(a.mgr.fs, syncStatePath(a.mgr.fs, a.mgr.sdPath, a.noteID), a.offsets, a.seqState); err != nil {
		return err
	}

	if len(result.NewRecords) > 0 {
		a.publishLocked()
	}

	return nil
}

func (a *noteActor) claim(profileID, instanceID noteid.ID, seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.staleDetector.Claim(profileID, instanceID, seq)
}

func (a *noteActor) skipStale(sourceInstanceID noteid.ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.staleDetector.Skip(sourceInstanceID); err != nil {
		return err
	}

	return a.persistSkipsLocked()
}

func (a *noteActor) persistSkips() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.persistSkipsLocked()
}

func (a *noteActor) persistSkipsLocked() error {
	return a.staleDetector.SaveSkips(a.mgr.fs, skipsPath(a.mgr.fs, a.mgr.sdPath, a.noteID))
}
