package main

import (
	"errors"
	"sort"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/noteid"
)

// listNoteIDs enumerates every note directory under sdPath/notes, the same
// way internal/fsck.Run discovers notes to sweep. Several subcommands
// (inspect, stale list, the watch daemon's full-sync pass) all need this
// same "every note currently on disk" view before they can do anything
// note-specific.
func listNoteIDs(fs fsadapter.FS, sdPath string) ([]noteid.ID, error) {
	notesRoot := fs.JoinPath(sdPath, "notes")

	names, err := fs.ListFiles(notesRoot)
	if err != nil {
		if errors.Is(err, fsadapter.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	ids := make([]noteid.ID, 0, len(names))

	for _, name := range names {
		id, err := noteid.Parse(name)
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	return ids, nil
}
