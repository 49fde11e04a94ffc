package activitylog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/noteid"
)

func TestAppendAndReadActivity(t *testing.T) {
	fs := fsadapter.NewLocal()
	path := filepath.Join(t.TempDir(), "activity.log")
	noteID := noteid.New()

	require.NoError(t, AppendActivity(fs, path, noteID, 1, 1000))
	require.NoError(t, AppendActivity(fs, path, noteID, 2, 2000))

	entries, err := ReadActivity(fs, path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, noteID.Equal(entries[0].NoteID))
	assert.Equal(t, uint64(1), entries[0].Sequence)
	assert.Equal(t, uint64(2), entries[1].Sequence)
}

func TestReadActivity_MissingFileReturnsEmpty(t *testing.T) {
	fs := fsadapter.NewLocal()
	path := filepath.Join(t.TempDir(), "missing.log")

	entries, err := ReadActivity(fs, path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadActivity_MalformedLineDropped(t *testing.T) {
	fs := fsadapter.NewLocal()
	path := filepath.Join(t.TempDir(), "activity.log")
	noteID := noteid.New()

	content := noteID.String() + "|1|1000\n" + "garbage-line\n" + noteID.String() + "|2|2000\n"
	require.NoError(t, fs.WriteFile(path, []byte(content)))

	entries, err := ReadActivity(fs, path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestAppendAndReadDeletions(t *testing.T) {
	fs := fsadapter.NewLocal()
	path := filepath.Join(t.TempDir(), "deletions.log")
	noteID := noteid.New()

	require.NoError(t, AppendDeletion(fs, path, noteID, 5000))

	entries, err := ReadDeletions(fs, path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, noteID.Equal(entries[0].NoteID))
	assert.Equal(t, int64(5000), entries[0].TimestampMs)
}

func TestHighestSequenceByNote_KeepsMaxPerNote(t *testing.T) {
	n1 := noteid.New()
	n2 := noteid.New()

	entries := []ActivityEntry{
		{NoteID: n1, Sequence: 1, TimestampMs: 100},
		{NoteID: n1, Sequence: 5, TimestampMs: 500},
		{NoteID: n2, Sequence: 2, TimestampMs: 200},
	}

	out := HighestSequenceByNote(entries)
	assert.Equal(t, uint64(5), out[n1].Sequence)
	assert.Equal(t, uint64(2), out[n2].Sequence)
}

func TestCompactActivity_NoOpBelowThreshold(t *testing.T) {
	_, rewritten := CompactActivity(1024, "/path", 100, nil)
	assert.False(t, rewritten)
}

func TestCompactActivity_KeepsOnlyHighestSequencePerNote(t *testing.T) {
	n1 := noteid.New()

	entries := []ActivityEntry{
		{NoteID: n1, Sequence: 1, TimestampMs: 100},
		{NoteID: n1, Sequence: 9, TimestampMs: 900},
	}

	buf, rewritten := CompactActivity(10, "/path", 1<<21, entries)
	require.True(t, rewritten)

	parsed, err := ReadActivity(fsadapter.NewLocal(), writeTemp(t, buf))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, uint64(9), parsed[0].Sequence)
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, fsadapter.NewLocal().WriteFile(path, data))

	return path
}
