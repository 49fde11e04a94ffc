package notestore

import (
	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logformat"
	"github.com/drewcsillag/notecove/internal/noteid"
)

func notesRootDir(fs fsadapter.FS, sdPath string) string {
	return fs.JoinPath(sdPath, "notes")
}

func noteDir(fs fsadapter.FS, sdPath string, noteID noteid.ID) string {
	return fs.JoinPath(notesRootDir(fs, sdPath), noteID.String())
}

func logsDir(fs fsadapter.FS, sdPath string, noteID noteid.ID) string {
	return fs.JoinPath(noteDir(fs, sdPath, noteID), "logs")
}

func snapshotsDir(fs fsadapter.FS, sdPath string, noteID noteid.ID) string {
	return fs.JoinPath(noteDir(fs, sdPath, noteID), "snapshots")
}

func syncStatePath(fs fsadapter.FS, sdPath string, noteID noteid.ID) string {
	return fs.JoinPath(noteDir(fs, sdPath, noteID), "sync_state.json")
}

func skipsPath(fs fsadapter.FS, sdPath string, noteID noteid.ID) string {
	return fs.JoinPath(noteDir(fs, sdPath, noteID), "skips.json")
}

func activityDir(fs fsadapter.FS, sdPath string) string {
	return fs.JoinPath(sdPath, "activity")
}

func deletionsDir(fs fsadapter.FS, sdPath string) string {
	return fs.JoinPath(sdPath, "deletions")
}

func ownActivityLogPath(fs fsadapter.FS, sdPath string, profileID, instanceID noteid.ID) string {
	return fs.JoinPath(activityDir(fs, sdPath), logformat.ActivityFilename(profileID, instanceID))
}

func ownDeletionLogPath(fs fsadapter.FS, sdPath string, profileID, instanceID noteid.ID) string {
	return fs.JoinPath(deletionsDir(fs, sdPath), logformat.ActivityFilename(profileID, instanceID))
}

// removeAllRecursive deletes path and everything beneath it through the fs
// adapter's narrow surface (exists/list/stat/delete), since fsadapter has
// no bulk "remove tree" primitive (spec.md §4.A's operation list is
// deliberately minimal). Used only by DeleteNotePermanently, which must
// physically remove a note's directory after its deletion-log entry has
// been durably recorded.
func removeAllRecursive(fs fsadapter.FS, path string) error {
	exists, err := fs.Exists(path)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	st, err := fs.Stat(path)
	if err != nil {
		return err
	}

	if !st.IsDir {
		return fs.DeleteFile(path)
	}

	names, err := fs.ListFiles(path)
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := removeAllRecursive(fs, fs.JoinPath(path, name)); err != nil {
			return err
		}
	}

	return fs.DeleteFile(path)
}
