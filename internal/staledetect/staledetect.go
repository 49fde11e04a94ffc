// Package staledetect implements the Stale-Sync Detector (spec.md §4.H):
// it tracks, per note and per peer instance, the highest sequence the Log
// Reader has actually decoded versus the highest sequence that instance's
// activity log claims to have produced, and surfaces a StaleEntry once
// that gap has persisted past a grace period. Grounded on the teacher's
// stale-file tracking in internal/sync (same "claimed vs observed, with a
// grace window before surfacing" shape, generalized from file-sync
// staleness to CRDT causal gaps).
package staledetect

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/noteid"
)

// StaleEntry describes one causal gap: source instance inst has
// advertised (via its activity log) a higher sequence than this replica
// has actually decoded from inst's log file.
type StaleEntry struct {
	SDID                    string
	NoteID                  noteid.ID
	SourceInstanceID        noteid.ID
	SourceProfileID         noteid.ID
	ExpectedSequence        uint64
	HighestSequenceObserved uint64
	Gap                     uint64
	DetectedAt              time.Time
}

// gapState tracks one (note, sourceInstance) pair's claimed/observed
// sequences and the time the gap first appeared, so GraceMs can be
// measured from first detection rather than from every poll.
type gapState struct {
	profileID  noteid.ID
	claimed    uint64
	observed   uint64
	firstSeen  time.Time
	skipped    bool
	skippedSeq uint64
}

// Detector tracks staleness for every peer instance that has ever
// contributed to one note. State is in-memory only (spec.md §4.H:
// "rebuilt on load"), except for skip decisions, which are persisted via
// SaveSkips/LoadSkips so they survive restarts.
type Detector struct {
	sdID    string
	noteID  noteid.ID
	graceMs int64
	now     func() time.Time
	gaps    map[[16]byte]*gapState
}

// New returns a Detector for one note within one SD.
func New(sdID string, noteID noteid.ID, graceMs int64) *Detector {
	return &Detector{
		sdID:    sdID,
		noteID:  noteID,
		graceMs: graceMs,
		now:     time.Now,
		gaps:    make(map[[16]byte]*gapState),
	}
}

// SetClock overrides the time source for tests.
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// Observe records the highest sequence the Log Reader has actually
// decoded from an instance's log file.
func (d *Detector) Observe(instanceID noteid.ID, seq uint64) {
	g := d.gapStateFor(instanceID, noteid.Nil)
	if seq > g.observed {
		g.observed = seq
	}

	d.refreshFirstSeen(g)
}

// Claim records the highest sequence an instance's activity log claims to
// have produced for this note.
func (d *Detector) Claim(profileID, instanceID noteid.ID, seq uint64) {
	g := d.gapStateFor(instanceID, profileID)
	if !profileID.IsNil() {
		g.profileID = profileID
	}

	if seq > g.claimed {
		g.claimed = seq
	}

	d.refreshFirstSeen(g)
}

func (d *Detector) gapStateFor(instanceID, profileID noteid.ID) *gapState {
	key := instanceID.Bytes()

	g, ok := d.gaps[key]
	if !ok {
		g = &gapState{profileID: profileID}
		d.gaps[key] = g
	}

	return g
}

// refreshFirstSeen records when a gap first appeared and clears it once
// the gap closes, so a later new gap starts its own grace period.
func (d *Detector) refreshFirstSeen(g *gapState) {
	if g.claimed > g.observed {
		if g.firstSeen.IsZero() {
			g.firstSeen = d.now()
		}

		if g.skipped && g.claimed > g.skippedSeq {
			g.skipped = false
		}
	} else {
		g.firstSeen = time.Time{}
	}
}

// ListStale returns one StaleEntry per (note, instance) gap that has
// persisted at least graceMs and has not been skipped, ordered by
// instance bytes for deterministic output.
func (d *Detector) ListStale() []StaleEntry {
	var out []StaleEntry

	grace := time.Duration(d.graceMs) * time.Millisecond
	nowT := d.now()

	for instBytes, g := range d.gaps {
		if g.skipped || g.claimed <= g.observed || g.firstSeen.IsZero() {
			continue
		}

		if nowT.Sub(g.firstSeen) < grace {
			continue
		}

		out = append(out, StaleEntry{
			SDID:                    d.sdID,
			NoteID:                  d.noteID,
			SourceInstanceID:        noteid.FromBytes(instBytes),
			SourceProfileID:         g.profileID,
			ExpectedSequence:        g.claimed,
			HighestSequenceObserved: g.observed,
			Gap:                     g.claimed - g.observed,
			DetectedAt:              g.firstSeen,
		})
	}

	return out
}

// Skip accepts the current gap for instanceID: ListStale stops reporting
// this gap unless a higher sequence is later claimed. Skip changes only the
// detector's bookkeeping; the Note Storage Manager does not filter records,
// so any record from that instance with seq <= the skipped sequence that
// later becomes readable is still applied.
func (d *Detector) Skip(instanceID noteid.ID) error {
	g, ok := d.gaps[instanceID.Bytes()]
	if !ok {
		return fmt.Errorf("staledetect: no gap tracked for instance %s", instanceID)
	}

	g.observed = g.claimed
	g.skipped = true
	g.skippedSeq = g.claimed

	return nil
}

// Retry clears any skip for instanceID and restarts the gap's grace timer,
// so a gap that still exists is reported again only after a full grace
// period from now. The caller re-runs syncNote separately; Retry only
// affects the detector's own bookkeeping.
func (d *Detector) Retry(instanceID noteid.ID) {
	g, ok := d.gaps[instanceID.Bytes()]
	if !ok {
		return
	}

	g.skipped = false

	if g.claimed > g.observed {
		g.firstSeen = d.now()
	}
}

// skipRecord is the on-disk shape persisted to notes/<id>/skips.json.
type skipRecord struct {
	InstanceID noteid.ID `json:"instanceId"`
	Sequence   uint64    `json:"sequence"`
}

// SaveSkips writes every currently-skipped gap to path so the decision
// survives a restart (spec.md §4.H: "recorded in a small persistent file
// ... so the decision survives restarts").
func (d *Detector) SaveSkips(fs fsadapter.FS, path string) error {
	var records []skipRecord

	for instBytes, g := range d.gaps {
		if !g.skipped {
			continue
		}

		records = append(records, skipRecord{
			InstanceID: noteid.FromBytes(instBytes),
			Sequence:   g.skippedSeq,
		})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("staledetect: marshaling skips: %w", err)
	}

	if err := fs.WriteFile(path, data); err != nil {
		return fmt.Errorf("staledetect: writing %s: %w", path, err)
	}

	return nil
}

// LoadSkips restores previously-persisted skip decisions. Call this
// before any Claim/Observe calls for the note so the restored skip state
// is not immediately overwritten by refreshFirstSeen.
func (d *Detector) LoadSkips(fs fsadapter.FS, path string) error {
	exists, err := fs.Exists(path)
	if err != nil {
		return fmt.Errorf("staledetect: checking %s: %w", path, err)
	}

	if !exists {
		return nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("staledetect: reading %s: %w", path, err)
	}

	var records []skipRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("staledetect: parsing %s: %w", path, err)
	}

	for _, r := range records {
		g := d.gapStateFor(r.InstanceID, noteid.Nil)
		g.skipped = true
		g.skippedSeq = r.Sequence
		g.observed = r.Sequence
		g.claimed = r.Sequence
	}

	return nil
}
