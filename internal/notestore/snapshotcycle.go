package notestore

import (
	"fmt"
	"time"

	"github.com/drewcsillag/notecove/internal/config"
	"github.com/drewcsillag/notecove/internal/logformat"
	"github.com/drewcsillag/notecove/internal/logsync"
	"github.com/drewcsillag/notecove/internal/noteid"
	"github.com/drewcsillag/notecove/internal/snapshot"
)

// SnapshotNow forces an immediate snapshot capture for noteID, bypassing
// the usual byte/record/age thresholds (`ncstorage snapshot <sd>
// <noteId>`, spec.md §6), then runs the same pruning pass a
// threshold-triggered capture would. Returns the new snapshot's filename.
func (m *Manager) SnapshotNow(noteID noteid.ID) (string, error) {
	a, err := m.actorFor(noteID)
	if err != nil {
		return "", err
	}

	return a.forceSnapshot(m.clock())
}

// maybeSnapshotAndPrune captures a new snapshot once any of the three
// capture thresholds (spec.md §4.I) has crossed. Whether or not it
// captured, it then prunes any log segment this instance owns that the
// best snapshot on disk fully covers, once the quarantine period since
// this instance's latest capture (or its load of the note) has elapsed.
func (a *noteActor) maybeSnapshotAndPrune(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	mgr := a.mgr
	cfg := mgr.cfg.Config()

	bytesThreshold, err := config.ParseSize(cfg.Snapshot.Bytes)
	if err != nil {
		return fmt.Errorf("notestore: parsing snapshot byte threshold: %w", err)
	}

	dir := logsDir(mgr.fs, mgr.sdPath, a.noteID)

	names, err := mgr.fs.ListFiles(dir)
	if err != nil {
		return fmt.Errorf("notestore: listing %s: %w", dir, err)
	}

	var (
		totalBytes   int64
		totalRecords int
		files        []snapshot.LogFileInfo
	)

	for _, name := range names {
		parsed, ok := logformat.ParseFilename(name)
		if !ok || parsed.Kind != logformat.KindLog {
			continue
		}

		st, err := mgr.fs.Stat(mgr.fs.JoinPath(dir, name))
		if err != nil {
			continue
		}

		key := logsync.FileKey{ProfileID: parsed.ProfileID.Bytes(), InstanceID: parsed.InstanceID.Bytes(), CreatedMs: parsed.CreatedMs}
		lastSeq := a.seqState[key]

		totalBytes += st.Size
		totalRecords += int(lastSeq)

		files = append(files, snapshot.LogFileInfo{Key: key, LastSeq: lastSeq, Filename: name})
	}

	sinceMs := now.UnixMilli() - a.lastSnapshotMs

	thresholds := snapshot.Thresholds{Bytes: bytesThreshold, Records: cfg.Snapshot.Records, AgeMs: cfg.Snapshot.AgeMs}
	if !snapshot.ShouldCapture(totalBytes, totalRecords, sinceMs, thresholds) {
		return a.pruneLocked(files, now, cfg)
	}

	if _, err := snapshot.Capture(mgr.fs, snapshotsDir(mgr.fs, mgr.sdPath, a.noteID), a.noteID, mgr.profileID, mgr.instanceID, now.UnixMilli(), a.doc); err != nil {
		return fmt.Errorf("notestore: capturing snapshot for %s: %w", a.noteID, err)
	}

	a.lastSnapshotMs = now.UnixMilli()
	a.lastSnapshotObservedAt = now

	return a.pruneLocked(files, now, cfg)
}

// forceSnapshot captures a snapshot unconditionally (the thresholds in
// maybeSnapshotAndPrune do not apply) and then prunes under the same
// rules a threshold-triggered capture would.
func (a *noteActor) forceSnapshot(now time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	mgr := a.mgr

	name, err := snapshot.Capture(mgr.fs, snapshotsDir(mgr.fs, mgr.sdPath, a.noteID), a.noteID, mgr.profileID, mgr.instanceID, now.UnixMilli(), a.doc)
	if err != nil {
		return "", fmt.Errorf("notestore: capturing snapshot for %s: %w", a.noteID, err)
	}

	a.lastSnapshotMs = now.UnixMilli()
	a.lastSnapshotObservedAt = now

	dir := logsDir(mgr.fs, mgr.sdPath, a.noteID)

	names, err := mgr.fs.ListFiles(dir)
	if err != nil {
		return name, fmt.Errorf("notestore: listing %s: %w", dir, err)
	}

	var files []snapshot.LogFileInfo

	for _, fname := range names {
		parsed, ok := logformat.ParseFilename(fname)
		if !ok || parsed.Kind != logformat.KindLog {
			continue
		}

		key := logsync.FileKey{ProfileID: parsed.ProfileID.Bytes(), InstanceID: parsed.InstanceID.Bytes(), CreatedMs: parsed.CreatedMs}
		files = append(files, snapshot.LogFileInfo{Key: key, LastSeq: a.seqState[key], Filename: fname})
	}

	if err := a.pruneLocked(files, now, mgr.cfg.Config()); err != nil {
		return name, err
	}

	return name, nil
}

// pruneLocked deletes any log file this instance owns that the current
// best snapshot on disk fully covers, provided the quarantine period since
// this instance last captured a snapshot (or loaded the note) has elapsed.
// Callers must hold a.mu.
func (a *noteActor) pruneLocked(files []snapshot.LogFileInfo, now time.Time, cfg *config.Config) error {
	mgr := a.mgr
	quarantine := time.Duration(cfg.Prune.QuarantineMs) * time.Millisecond

	loaded, err := snapshot.ReadAll(mgr.fs, snapshotsDir(mgr.fs, mgr.sdPath, a.noteID))
	if err != nil {
		return fmt.Errorf("notestore: reading snapshots for %s: %w", a.noteID, err)
	}

	best, ok := snapshot.SelectBest(loaded)
	if !ok {
		return nil
	}

	covered := best.Snapshot.CoveredSequences

	toPrune := snapshot.PruneEligible(files, covered, a.lastSnapshotObservedAt, quarantine, now, mgr.instanceID.Bytes())
	if len(toPrune) == 0 {
		return nil
	}

	dir := logsDir(mgr.fs, mgr.sdPath, a.noteID)

	for _, name := range toPrune {
		if err := mgr.fs.DeleteFile(mgr.fs.JoinPath(dir, name)); err != nil {
			return fmt.Errorf("notestore: pruning %s: %w", name, err)
		}

		if parsed, ok := logformat.ParseFilename(name); ok {
			key := logsync.FileKey{ProfileID: parsed.ProfileID.Bytes(), InstanceID: parsed.InstanceID.Bytes(), CreatedMs: parsed.CreatedMs}
			delete(a.seqState, key)
			delete(a.offsets, key)
		}
	}

	return saveSyncState(mgr.fs, syncStatePath(mgr.fs, mgr.sdPath, a.noteID), a.offsets, a.seqState)
}
