// Package sdwatch implements the watch-mode daemon's filesystem trigger:
// it watches a storage directory's notes/*/logs, notes/*/snapshots,
// activity/, and deletions/ directories and calls back when something a
// peer wrote might need syncing, instead of the caller polling on a
// timer.
//
// Grounded on the teacher's internal/sync.LocalObserver: the same
// injectable FsWatcher interface (so tests don't need a real inotify
// instance), the same exponential reconnect backoff on watcher errors,
// and the same "drop under backpressure, let the periodic fallback sync
// catch up" channel discipline. Unlike the teacher's observer, this
// watcher does not hash file contents or maintain a baseline — every
// note's own sync-state offsets (internal/logsync) already provide
// change detection, so a watch event only needs to say which note
// changed, cheaply re-derived from the directory it fired in.
package sdwatch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/drewcsillag/notecove/internal/noteid"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffMult    = 2
)

// FsWatcher abstracts fsnotify.Watcher so tests can inject a fake.
type FsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type realWatcher struct{ w *fsnotify.Watcher }

func (r *realWatcher) Add(name string) error         { return r.w.Add(name) }
func (r *realWatcher) Close() error                  { return r.w.Close() }
func (r *realWatcher) Events() <-chan fsnotify.Event { return r.w.Events }
func (r *realWatcher) Errors() <-chan error          { return r.w.Errors }

func newRealWatcher() (FsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &realWatcher{w: w}, nil
}

// Event is delivered for a note whose on-disk files changed. Global is
// set for an activity/ or deletions/ event, which can affect any note's
// stale-sync state rather than one specific note.
type Event struct {
	NoteID noteid.ID
	Global bool
}

// Watcher watches one storage directory and delivers Events.
type Watcher struct {
	sdPath  string
	logger  *slog.Logger
	factory func() (FsWatcher, error)
	events  chan Event
}

// New creates a Watcher for sdPath. Call Run to start it.
func New(sdPath string, logger *slog.Logger) *Watcher {
	return &Watcher{
		sdPath:  sdPath,
		logger:  logger,
		factory: newRealWatcher,
		events:  make(chan Event, 256),
	}
}

// Events returns the channel of change notifications.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run watches the storage directory's notes tree plus its activity/ and
// deletions/ directories until ctx is canceled, reconnecting with
// exponential backoff if the underlying watcher errors out (e.g. the
// directory becomes briefly unavailable on a network mount).
func (w *Watcher) Run(ctx context.Context) error {
	backoff := initialBackoff

	for {
		err := w.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if err == nil {
			backoff = initialBackoff
			continue
		}

		w.logger.Warn("sdwatch: watcher failed, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}

		backoff *= backoffMult
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) error {
	fw, err := w.factory()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, dir := range w.watchDirs() {
		if err := fw.Add(dir); err != nil {
			w.logger.Debug("sdwatch: could not watch directory", "dir", dir, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors():
			if !ok {
				return nil
			}

			return err
		case ev, ok := <-fw.Events():
			if !ok {
				return nil
			}

			w.handle(ctx, ev)
		}
	}
}

// watchDirs lists every directory worth an inotify watch: the
// activity/deletions logs (global), the notes/ directory itself, and the
// logs and snapshots directories of each note present when the watcher
// (re)connects. A note directory created later is not watched until the
// next reconnect; until then only the periodic sync picks up its changes.
func (w *Watcher) watchDirs() []string {
	notesDir := filepath.Join(w.sdPath, "notes")
	dirs := []string{
		filepath.Join(w.sdPath, "activity"),
		filepath.Join(w.sdPath, "deletions"),
		notesDir,
	}

	entries, err := os.ReadDir(notesDir)
	if err != nil {
		return dirs
	}

	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(notesDir, e.Name(), "logs"), filepath.Join(notesDir, e.Name(), "snapshots"))
		}
	}

	return dirs
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	dir := filepath.Dir(ev.Name)

	switch filepath.Base(dir) {
	case "activity", "deletions":
		w.send(ctx, Event{Global: true})
		return
	}

	noteDir := filepath.Dir(dir)
	id, err := noteid.Parse(filepath.Base(noteDir))
	if err != nil {
		return
	}

	w.send(ctx, Event{NoteID: id})
}

func (w *Watcher) send(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	default:
		w.logger.Warn("sdwatch: event channel full, dropping; periodic sync will catch up")
	}
}
