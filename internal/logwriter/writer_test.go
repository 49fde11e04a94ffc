package logwriter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logformat"
)

func TestWriter_AppendAssignsMonotonicSequences(t *testing.T) {
	fs := fsadapter.NewLocal()
	path := filepath.Join(t.TempDir(), "test.crdtlog")
	w := Open(fs, path, 0, 0)

	seq1, err := w.Append(100, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq1)

	seq2, err := w.Append(200, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq2)

	assert.Equal(t, uint64(2), w.CurrentSequence())
}

func TestWriter_AppendClampsNonDecreasingTimestamp(t *testing.T) {
	fs := fsadapter.NewLocal()
	path := filepath.Join(t.TempDir(), "test.crdtlog")
	w := Open(fs, path, 0, 0)

	_, err := w.Append(500, []byte("a"))
	require.NoError(t, err)

	// A clock that appears to move backwards must not produce a
	// decreasing timestamp in the record stream.
	_, err = w.Append(100, []byte("b"))
	require.NoError(t, err)

	data, err := fs.ReadFile(path)
	require.NoError(t, err)

	records, _, corrupt := logformat.DecodeStream(data)
	require.False(t, corrupt)
	require.Len(t, records, 2)
	assert.GreaterOrEqual(t, records[1].TimestampMs, records[0].TimestampMs)
}

func TestWriter_ResumesFromGivenSequence(t *testing.T) {
	fs := fsadapter.NewLocal()
	path := filepath.Join(t.TempDir(), "test.crdtlog")
	w := Open(fs, path, 7, 1000)

	seq, err := w.Append(2000, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), seq)
}

func TestWriter_FilePath(t *testing.T) {
	fs := fsadapter.NewLocal()
	path := filepath.Join(t.TempDir(), "test.crdtlog")
	w := Open(fs, path, 0, 0)

	assert.Equal(t, path, w.FilePath())
}

func TestWriter_FailedAppendDoesNotAdvanceSequence(t *testing.T) {
	fs := fsadapter.NewLocal()
	// A path inside a nonexistent directory makes AppendFile fail.
	path := filepath.Join(t.TempDir(), "missing-dir", "test.crdtlog")
	w := Open(fs, path, 0, 0)

	_, err := w.Append(1, []byte("a"))
	require.Error(t, err)
	assert.Equal(t, uint64(0), w.CurrentSequence())
}

func TestWriter_AppendedRecordsDecodeInOrder(t *testing.T) {
	fs := fsadapter.NewLocal()
	path := filepath.Join(t.TempDir(), "test.crdtlog")
	w := Open(fs, path, 0, 0)

	for i := 0; i < 5; i++ {
		_, err := w.Append(int64(1000+i), []byte{byte(i)})
		require.NoError(t, err)
	}

	data, err := fs.ReadFile(path)
	require.NoError(t, err)

	records, _, corrupt := logformat.DecodeStream(data)
	require.False(t, corrupt)
	require.Len(t, records, 5)

	for i, r := range records {
		assert.Equal(t, uint64(i+1), r.Sequence)
	}
}
