package searchindex

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drewcsillag/notecove/internal/config"
	"github.com/drewcsillag/notecove/internal/crdt"
	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/noteid"
	"github.com/drewcsillag/notecove/internal/notestore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := t.TempDir() + "/index.db"

	store, err := Open(dbPath, testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })

	return store
}

// writeNoteOnDisk brings up a throwaway notestore.Manager against sdPath
// just long enough to write one edit, so Rebuild has a real log file to
// replay without needing to hand-construct the on-disk format.
func writeNoteOnDisk(t *testing.T, fs fsadapter.FS, sdPath string, title string) noteid.ID {
	t.Helper()

	for _, d := range []string{"notes", "activity", "deletions"} {
		require.NoError(t, fs.Mkdir(fs.JoinPath(sdPath, d)))
	}

	holder := config.NewHolder(config.DefaultConfig(), "")
	mgr := notestore.NewManager(fs, sdPath, noteid.New(), noteid.New(), holder, testLogger())

	noteID := noteid.New()

	h, err := mgr.LoadNote(context.Background(), noteID)
	require.NoError(t, err)

	blockID := [16]byte{1}
	_, err = h.EditContent(blockID, 1.0, false, []byte(title))
	require.NoError(t, err)

	return noteID
}

func TestRebuildRepopulatesFromOnDiskNotes(t *testing.T) {
	store := openTestStore(t)

	fs := fsadapter.NewLocal()
	sdPath := t.TempDir()

	noteID := writeNoteOnDisk(t, fs, sdPath, "hello world")

	require.NoError(t, store.Rebuild(context.Background(), fs, sdPath))

	entries, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, noteID, entries[0].NoteID)
	require.Equal(t, "hello world", entries[0].Title)
}

func TestRebuildClearsStaleEntriesNoLongerOnDisk(t *testing.T) {
	store := openTestStore(t)

	fs := fsadapter.NewLocal()
	sdPath := t.TempDir()

	require.NoError(t, fs.Mkdir(fs.JoinPath(sdPath, "notes")))

	require.NoError(t, store.Upsert(context.Background(), noteid.New(), crdt.NewDoc(), 1))

	require.NoError(t, store.Rebuild(context.Background(), fs, sdPath))

	entries, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRebuildOnMissingNotesDirIsANoOp(t *testing.T) {
	store := openTestStore(t)

	fs := fsadapter.NewLocal()
	sdPath := t.TempDir()

	require.NoError(t, store.Rebuild(context.Background(), fs, sdPath))

	entries, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestListAllOrdersByNoteID(t *testing.T) {
	store := openTestStore(t)

	a := noteid.New()
	b := noteid.New()

	require.NoError(t, store.Upsert(context.Background(), a, crdt.NewDoc(), 1))
	require.NoError(t, store.Upsert(context.Background(), b, crdt.NewDoc(), 2))

	entries, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Less(t, entries[0].NoteID.String(), entries[1].NoteID.String())
}
