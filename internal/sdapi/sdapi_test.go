package sdapi

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drewcsillag/notecove/internal/config"
	"github.com/drewcsillag/notecove/internal/crdt"
	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/noteid"
	"github.com/drewcsillag/notecove/internal/sdmigrate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSD creates and migrates a fresh storage directory, then opens it
// with a search index rooted in a private, per-test data directory so
// tests never share or pollute $HOME.
func newTestSD(t *testing.T) (*Handle, string) {
	t.Helper()

	sdPath := t.TempDir()
	fs := fsadapter.NewLocal()

	require.NoError(t, sdmigrate.Migrate(fs, sdPath, sdmigrate.CurrentAppVersion, sdmigrate.DefaultMigrations))

	t.Setenv("XDG_DATA_HOME", filepath.Join(t.TempDir(), "data"))

	h, err := Open(sdPath, OpenOptions{
		FS:         fs,
		ProfileID:  noteid.New(),
		InstanceID: noteid.New(),
		Config:     config.DefaultConfig(),
		Logger:     testLogger(),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = h.Close() })

	return h, sdPath
}

func TestOpenRefusesLockedSD(t *testing.T) {
	sdPath := t.TempDir()
	fs := fsadapter.NewLocal()

	require.NoError(t, fs.WriteFile(sdmigrate.LockPath(fs, sdPath), []byte(`{"timestamp":"2026-01-01T00:00:00Z"}`)))

	_, err := Open(sdPath, OpenOptions{FS: fs, ProfileID: noteid.New(), InstanceID: noteid.New()})
	require.Error(t, err)

	var verr *sdmigrate.VersionError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, sdmigrate.KindLocked, verr.Kind)
}

func TestLoadApplyAndGetStateRoundTrip(t *testing.T) {
	h, _ := newTestSD(t)
	ctx := context.Background()
	noteID := noteid.New()

	_, _, err := h.LoadNote(ctx, noteID)
	require.NoError(t, err)

	doc := crdt.NewDoc()
	update := doc.EditContent([16]byte{1}, 1, [16]byte{2}, 1.0, false, []byte("hello world"))

	seq, err := h.ApplyUpdate(noteID, update)
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq)

	state, err := h.GetState(noteID)
	require.NoError(t, err)

	readBack := crdt.NewDoc()
	require.NoError(t, readBack.Apply(state))
	require.Equal(t, "hello world", readBack.Title())
}

func TestDeleteNotePermanentRemovesFromStoreAndIndex(t *testing.T) {
	h, sdPath := newTestSD(t)
	ctx := context.Background()
	noteID := noteid.New()

	_, _, err := h.LoadNote(ctx, noteID)
	require.NoError(t, err)

	doc := crdt.NewDoc()
	update := doc.EditContent([16]byte{1}, 1, [16]byte{2}, 1.0, false, []byte("gone soon"))
	_, err = h.ApplyUpdate(noteID, update)
	require.NoError(t, err)

	require.NoError(t, h.DeleteNotePermanent(noteID))

	_, _, err = h.LoadNote(ctx, noteID)
	require.Error(t, err)

	fs := fsadapter.NewLocal()
	exists, err := fs.Exists(fs.JoinPath(sdPath, "notes", noteID.String()))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestExportDiagnosticsWritesArchive(t *testing.T) {
	h, _ := newTestSD(t)
	ctx := context.Background()
	noteID := noteid.New()

	_, _, err := h.LoadNote(ctx, noteID)
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "diag.tar.gz")
	require.NoError(t, h.ExportDiagnostics(outPath, []noteid.ID{noteID}))

	fs := fsadapter.NewLocal()
	exists, err := fs.Exists(outPath)
	require.NoError(t, err)
	require.True(t, exists)
}
