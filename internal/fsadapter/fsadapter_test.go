package fsadapter

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_WriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()
	path := filepath.Join(dir, "note.txt")

	require.NoError(t, fs.WriteFile(path, []byte("hello")))

	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocal_ReadFile_NotFound(t *testing.T) {
	fs := NewLocal()

	_, err := fs.ReadFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_AppendFile_AppendsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()
	path := filepath.Join(dir, "log.crdtlog")

	require.NoError(t, fs.AppendFile(path, []byte("a")))
	require.NoError(t, fs.AppendFile(path, []byte("b")))

	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(data))
}

func TestLocal_Exists(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()
	path := filepath.Join(dir, "f")

	ok, err := fs.Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fs.WriteFile(path, []byte("x")))

	ok, err = fs.Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocal_Mkdir_IdempotentAndRecursive(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()
	nested := filepath.Join(dir, "a", "b", "c")

	require.NoError(t, fs.Mkdir(nested))
	require.NoError(t, fs.Mkdir(nested))

	ok, err := fs.Exists(nested)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocal_ListFiles_DirectChildrenOnly(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()

	require.NoError(t, fs.WriteFile(filepath.Join(dir, "a"), []byte("1")))
	require.NoError(t, fs.WriteFile(filepath.Join(dir, "b"), []byte("2")))
	require.NoError(t, fs.Mkdir(filepath.Join(dir, "sub")))
	require.NoError(t, fs.WriteFile(filepath.Join(dir, "sub", "c"), []byte("3")))

	names, err := fs.ListFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "sub"}, names)
}

func TestLocal_DeleteFile(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()
	path := filepath.Join(dir, "f")

	require.NoError(t, fs.WriteFile(path, []byte("x")))
	require.NoError(t, fs.DeleteFile(path))

	ok, err := fs.Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocal_Stat(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()
	path := filepath.Join(dir, "f")

	require.NoError(t, fs.WriteFile(path, []byte("hello")))

	st, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Size)
	assert.False(t, st.IsDir)
}

func TestLocal_JoinPathAndBasename(t *testing.T) {
	fs := NewLocal()
	joined := fs.JoinPath("a", "b", "c.txt")
	assert.Equal(t, filepath.Join("a", "b", "c.txt"), joined)
	assert.Equal(t, "c.txt", fs.Basename(joined))
}

func TestError_UnwrapsToSentinel(t *testing.T) {
	fs := NewLocal()

	_, err := fs.ReadFile("/nonexistent/path/should/not/exist")

	var fsErr *Error
	require.True(t, errors.As(err, &fsErr))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadyFlag_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()
	path := filepath.Join(dir, "snap.snap")

	body := append([]byte{0x00}, []byte("payload")...)
	require.NoError(t, WriteReadyFlagFile(path, body))

	data, err := ReadReadyFlagFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), data[0])
	assert.Equal(t, "payload", string(data[1:]))
}

func TestReadyFlag_ZeroFlagIsTruncated(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()
	path := filepath.Join(dir, "snap.snap")

	require.NoError(t, fs.WriteFile(path, []byte{0x00, 'x'}))

	_, err := ReadReadyFlagFile(fs, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReadyFlag_EmptyFileIsTruncated(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocal()
	path := filepath.Join(dir, "snap.snap")

	require.NoError(t, fs.WriteFile(path, nil))

	_, err := ReadReadyFlagFile(fs, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncated)
}
