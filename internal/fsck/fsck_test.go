package fsck

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logformat"
	"github.com/drewcsillag/notecove/internal/noteid"
)

func TestRunOnEmptyStorageDirectoryIsClean(t *testing.T) {
	fs := fsadapter.NewLocal()
	sdPath := t.TempDir()

	require.NoError(t, fs.Mkdir(fs.JoinPath(sdPath, "notes")))

	report, err := Run(fs, sdPath, nil)
	require.NoError(t, err)
	require.True(t, report.Clean())
	require.Equal(t, 0, report.NotesScanned)
}

func TestRunFlagsCorruptLogFile(t *testing.T) {
	fs := fsadapter.NewLocal()
	sdPath := t.TempDir()

	noteID := noteid.New()
	profileID := noteid.New()
	instanceID := noteid.New()

	logsDir := fs.JoinPath(sdPath, "notes", noteID.String(), "logs")
	require.NoError(t, fs.Mkdir(logsDir))

	rec, err := logformat.EncodeRecord(1000, 1, []byte("payload"))
	require.NoError(t, err)

	// Flip a byte in the middle of the record to break its CRC32C trailer.
	rec[len(rec)/2] ^= 0xFF

	name := logformat.LogFilename(profileID, instanceID, 1000)
	require.NoError(t, fs.WriteFile(fs.JoinPath(logsDir, name), rec))

	report, err := Run(fs, sdPath, nil)
	require.NoError(t, err)
	require.False(t, report.Clean())

	var found bool
	for _, issue := range report.Issues {
		if issue.Kind == IssueCorruptLog {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunScopedToSingleNote(t *testing.T) {
	fs := fsadapter.NewLocal()
	sdPath := t.TempDir()

	present := noteid.New()
	absent := noteid.New()

	require.NoError(t, fs.Mkdir(fs.JoinPath(sdPath, "notes", present.String(), "logs")))

	report, err := Run(fs, sdPath, &absent)
	require.NoError(t, err)
	require.Equal(t, 1, report.NotesScanned)
	require.Empty(t, report.Issues)
}
