// Package snapshot implements Snapshot & Compaction (spec.md §4.I): it
// materializes a note's CRDT state into a *.snap file via the ready-flag
// protocol, selects the snapshot that dominates all others for a note on
// load, and decides which log segments a snapshot makes safe to prune.
// Grounded on the teacher's append/replace discipline in internal/fsadapter
// and internal/logformat, generalized from "write a whole config file
// atomically" to "write a whole document snapshot atomically".
package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/drewcsillag/notecove/internal/crdt"
	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logformat"
	"github.com/drewcsillag/notecove/internal/logsync"
	"github.com/drewcsillag/notecove/internal/noteid"
)

// Thresholds are the three independent triggers spec.md §4.I names for
// capturing a new snapshot; any one crossing its limit is sufficient.
type Thresholds struct {
	Bytes   int64
	Records int
	AgeMs   int64
}

// ShouldCapture reports whether any capture trigger has fired.
func ShouldCapture(totalLogBytes int64, totalLogRecords int, sinceLastSnapshotMs int64, t Thresholds) bool {
	return totalLogBytes > t.Bytes || totalLogRecords > t.Records || sinceLastSnapshotMs > t.AgeMs
}

// Capture writes a new snapshot file for noteId into snapshotsDir, using
// the ready-flag protocol (whole-file replacement discipline; spec.md
// §4.A). The returned filename follows the
// `{profile}_{instance}_{createdMs}.snap` grammar.
func Capture(fs fsadapter.FS, snapshotsDir string, noteID, profileID, instanceID noteid.ID, createdMs int64, doc *crdt.Doc) (string, error) {
	snap := logformat.Snapshot{
		NoteID:           noteID,
		CreatedMs:        createdMs,
		CoveredSequences: doc.VectorClock(),
		State:            doc.StateAsUpdate(),
	}

	encoded := logformat.EncodeSnapshot(snap)

	// Offset 0 is reserved for the ready flag byte; WriteReadyFlagFile
	// overwrites it regardless of the placeholder value.
	body := make([]byte, 1+len(encoded))
	copy(body[1:], encoded)

	name := logformat.SnapshotFilename(profileID, instanceID, createdMs)
	path := fs.JoinPath(snapshotsDir, name)

	if err := fsadapter.WriteReadyFlagFile(path, body); err != nil {
		return "", fmt.Errorf("snapshot: writing %s: %w", path, err)
	}

	return name, nil
}

// Loaded is a decoded snapshot together with the filename it came from,
// so callers can report it in diagnostics or remember it as "observed"
// for pruning purposes.
type Loaded struct {
	Filename string
	Snapshot logformat.Snapshot
}

// Read decodes one snapshot file, failing with fsadapter.ErrTruncated if
// its ready flag was never committed (spec.md §4.A: readers "fail fast
// with Truncated if the flag byte is not 0x01").
func Read(fs fsadapter.FS, snapshotsDir, filename string) (Loaded, error) {
	path := fs.JoinPath(snapshotsDir, filename)

	data, err := fsadapter.ReadReadyFlagFile(fs, path)
	if err != nil {
		return Loaded{}, err
	}

	snap, err := logformat.DecodeSnapshot(data[1:])
	if err != nil {
		return Loaded{}, fmt.Errorf("snapshot: decoding %s: %w", path, err)
	}

	return Loaded{Filename: filename, Snapshot: snap}, nil
}

// ReadAll lists snapshotsDir and decodes every `*.snap` entry, skipping
// (not failing on) any that are still mid-write (ErrTruncated) or
// corrupt — a note load degrades to its best available snapshot rather
// than aborting on one bad file, matching spec.md §7's "engine never
// crashes on malformed input".
func ReadAll(fs fsadapter.FS, snapshotsDir string) ([]Loaded, error) {
	exists, err := fs.Exists(snapshotsDir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: checking %s: %w", snapshotsDir, err)
	}

	if !exists {
		return nil, nil
	}

	names, err := fs.ListFiles(snapshotsDir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: listing %s: %w", snapshotsDir, err)
	}

	var out []Loaded

	for _, name := range names {
		parsed, ok := logformat.ParseFilename(name)
		if !ok || parsed.Kind != logformat.KindSnapshot {
			continue
		}

		loaded, err := Read(fs, snapshotsDir, name)
		if err != nil {
			continue
		}

		out = append(out, loaded)
	}

	return out, nil
}

// Dominates reports whether a's covered-sequences vector clock dominates
// b's: every instance's sequence in a is at least b's, and strictly
// greater for at least one (spec.md P5).
func Dominates(a, b map[[16]byte]uint64) bool {
	strictlyGreater := false

	for actor, bv := range b {
		if a[actor] < bv {
			return false
		}

		if a[actor] > bv {
			strictlyGreater = true
		}
	}

	for actor, av := range a {
		if _, ok := b[actor]; !ok && av > 0 {
			strictlyGreater = true
		}
	}

	return strictlyGreater
}

// SelectBest picks the snapshot to load from: the one that dominates
// every other candidate for the note, tie-broken by createdMs when two
// candidates are incomparable (spec.md §4.F step 1). Returns ok == false
// for an empty candidate list.
func SelectBest(candidates []Loaded) (Loaded, bool) {
	if len(candidates) == 0 {
		return Loaded{}, false
	}

	sorted := make([]Loaded, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Snapshot.CreatedMs < sorted[j].Snapshot.CreatedMs
	})

	best := sorted[0]

	for _, cand := range sorted[1:] {
		if preferred(cand, best) {
			best = cand
		}
	}

	return best, true
}

// preferred reports whether candidate should replace current as the
// running best: candidate dominates current, or the two are incomparable
// and candidate was captured later.
func preferred(candidate, current Loaded) bool {
	if Dominates(candidate.Snapshot.CoveredSequences, current.Snapshot.CoveredSequences) {
		return true
	}

	if Dominates(current.Snapshot.CoveredSequences, candidate.Snapshot.CoveredSequences) {
		return false
	}

	return candidate.Snapshot.CreatedMs > current.Snapshot.CreatedMs
}

// LogFileInfo is the minimal per-log-file bookkeeping PruneEligible needs:
// which instance owns the file and the highest sequence it contains.
type LogFileInfo struct {
	Key      logsync.FileKey
	LastSeq  uint64
	Filename string
}

// PruneEligible returns the filenames of log files that are safe to
// delete given the best snapshot's covered vector clock: a file by
// instance I is eligible once covered[I] >= file's last sequence, and
// the snapshot has been observed by this instance for at least
// quarantine (spec.md §4.I). Pruning is the file owner's own decision;
// callers must still only ever delete files they themselves own
// (spec.md: "no instance deletes another instance's files").
func PruneEligible(files []LogFileInfo, covered map[[16]byte]uint64, snapshotObservedAt time.Time, quarantine time.Duration, now time.Time, ownerInstance [16]byte) []string {
	if now.Sub(snapshotObservedAt) < quarantine {
		return nil
	}

	var out []string

	for _, f := range files {
		if f.Key.InstanceID != ownerInstance {
			continue
		}

		if covered[f.Key.InstanceID] >= f.LastSeq {
			out = append(out, f.Filename)
		}
	}

	return out
}
