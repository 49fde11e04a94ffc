// Package crdt implements the reference CRDT core: a last-write-wins
// document that supports Apply, StateAsUpdate, and EncodeDiff. The rest of
// the storage engine programs against the Doc type and never inspects an
// op directly; this keeps the engine's commutativity/idempotence
// assumptions isolated to this package, the way spec.md's design notes
// describe "abstract behind a small trait" for the corresponding source
// dependency.
//
// A document is a set of independently-resolved registers:
//
//   - one per content block (ordered by a fractional position, the way a
//     sequence CRDT orders list elements without requiring a shared index),
//   - four fixed metadata registers (folder, pinned, soft-deleted, tags).
//
// Each register resolves concurrent writes by last-write-wins on
// (seq, actor): the op with the higher seq wins; ties (which never occur
// for a single correctly-behaving actor, since seq is per-actor monotonic,
// but can occur across actors whose Lamport clocks happen to coincide) are
// broken by comparing actor bytes so every replica picks the same winner.
package crdt

import (
	"bytes"
	"sort"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// titleMaxRunes is the title truncation length.
const titleMaxRunes = 50

// MetaKey names one of the four metadata registers a Doc tracks alongside
// its content blocks.
type MetaKey = metaKey

// MetaFolderID, MetaPinned, MetaSoftDeleted and MetaTags name the four
// metadata registers a Doc tracks alongside its content blocks.
const (
	MetaFolderID    = metaFolderID
	MetaPinned      = metaPinned
	MetaSoftDeleted = metaSoftDeleted
	MetaTags        = metaTags
)

// blockState is the resolved winner for one content block.
type blockState struct {
	actor    [16]byte
	seq      uint64
	position float64
	deleted  bool
	value    []byte
}

// metaState is the resolved winner for one metadata register.
type metaState struct {
	actor [16]byte
	seq   uint64
	value []byte
}

// Doc is a single note's CRDT content fragment plus its metadata
// registers. A Doc is safe for concurrent use; callers normally serialize
// access further via a per-note actor (internal/notestore), but Doc itself
// does not assume that.
type Doc struct {
	mu     sync.Mutex
	blocks map[[16]byte]*blockState
	meta   map[metaKey]*metaState
	clock  map[[16]byte]uint64 // actor -> highest seq applied
}

// NewDoc returns an empty document.
func NewDoc() *Doc {
	return &Doc{
		blocks: make(map[[16]byte]*blockState),
		meta:   make(map[metaKey]*metaState),
		clock:  make(map[[16]byte]uint64),
	}
}

// Apply decodes update (as produced by StateAsUpdate or EncodeDiff) and
// merges every op it contains into the document. Apply is idempotent: an
// op whose (actor, seq) has already been observed is silently skipped, so
// the same update may be delivered to Apply more than once (spec.md's
// "At-most-once visibility per record" is the Log Reader's job, not a
// precondition Apply requires).
func (d *Doc) Apply(update []byte) error {
	ops, err := decodeUpdate(update)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, o := range ops {
		d.applyOpLocked(o)
	}

	return nil
}

func (d *Doc) applyOpLocked(o op) {
	// Idempotence is per-register, via wins() (itself a no-op on a
	// repeated (seq, actor)), not a single per-actor high-water mark:
	// StateAsUpdate/EncodeDiff emit one op per register, each carrying
	// that register's own seq, in an order unrelated to seq (sortOps
	// orders content ops by blockID). A per-actor early return here
	// would advance clock[actor] to the first-applied op's seq and then
	// silently drop every later op from the same actor with a smaller
	// seq.
	if o.seq > d.clock[o.actor] {
		d.clock[o.actor] = o.seq
	}

	switch o.kind {
	case kindContent:
		cur, ok := d.blocks[o.blockID]
		if !ok || wins(o.seq, o.actor, cur.seq, cur.actor) {
			d.blocks[o.blockID] = &blockState{
				actor:    o.actor,
				seq:      o.seq,
				position: o.position,
				deleted:  o.deleted,
				value:    append([]byte(nil), o.value...),
			}
		}
	case kindMeta:
		cur, ok := d.meta[o.metaKey]
		if !ok || wins(o.seq, o.actor, cur.seq, cur.actor) {
			d.meta[o.metaKey] = &metaState{
				actor: o.actor,
				seq:   o.seq,
				value: append([]byte(nil), o.value...),
			}
		}
	}
}

// wins reports whether (seq, actor) should replace (curSeq, curActor) as
// the resolved winner of a register: strictly greater seq wins outright;
// equal seq (only possible across distinct actors) is broken by comparing
// actor bytes so every replica converges on the same winner regardless of
// application order.
func wins(seq uint64, actor [16]byte, curSeq uint64, curActor [16]byte) bool {
	if seq != curSeq {
		return seq > curSeq
	}

	return bytes.Compare(actor[:], curActor[:]) > 0
}

// sortOps puts ops in a deterministic order before encoding: by kind, then
// by blockID/metaKey, then by actor. StateAsUpdate and EncodeDiff must
// produce byte-identical output on every replica holding the same
// resolved state (spec.md invariant 6, "Convergence"); map iteration
// order is randomized in Go, so the op slice built from d.blocks/d.meta
// needs an explicit sort before it is serialized.
func sortOps(ops []op) {
	sort.Slice(ops, func(i, j int) bool {
		a, b := ops[i], ops[j]

		if a.kind != b.kind {
			return a.kind < b.kind
		}

		if a.kind == kindContent {
			if cmp := bytes.Compare(a.blockID[:], b.blockID[:]); cmp != 0 {
				return cmp < 0
			}
		} else if a.metaKey != b.metaKey {
			return a.metaKey < b.metaKey
		}

		return bytes.Compare(a.actor[:], b.actor[:]) < 0
	})
}

// StateAsUpdate returns an update encoding the document's entire current
// state: the resolved op for every content block (including tombstoned
// ones, so deletion is preserved) and every populated metadata register.
// Applying the result to a fresh Doc reproduces identical state, which is
// what Snapshot & Compaction (internal/snapshot) captures into a *.snap
// file.
func (d *Doc) StateAsUpdate() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	ops := make([]op, 0, len(d.blocks)+len(d.meta))

	for blockID, b := range d.blocks {
		ops = append(ops, op{
			kind:     kindContent,
			actor:    b.actor,
			seq:      b.seq,
			blockID:  blockID,
			position: b.position,
			deleted:  b.deleted,
			value:    b.value,
		})
	}

	for key, m := range d.meta {
		ops = append(ops, op{
			kind:    kindMeta,
			actor:   m.actor,
			seq:     m.seq,
			metaKey: key,
			value:   m.value,
		})
	}

	sortOps(ops)

	return encodeUpdate(ops)
}

// EncodeDiff returns an update containing only the ops this document
// holds whose (actor, seq) is not yet covered by stateVector, i.e. those
// with seq strictly greater than stateVector[actor]. This is the Log
// Reader's vehicle for bringing a peer up to date without resending
// everything (the same shape as a snapshot's coveredSequences map).
func (d *Doc) EncodeDiff(stateVector map[[16]byte]uint64) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	ops := make([]op, 0)

	for blockID, b := range d.blocks {
		if b.seq > stateVector[b.actor] {
			ops = append(ops, op{
				kind:     kindContent,
				actor:    b.actor,
				seq:      b.seq,
				blockID:  blockID,
				position: b.position,
				deleted:  b.deleted,
				value:    b.value,
			})
		}
	}

	for key, m := range d.meta {
		if m.seq > stateVector[m.actor] {
			ops = append(ops, op{
				kind:    kindMeta,
				actor:   m.actor,
				seq:     m.seq,
				metaKey: key,
				value:   m.value,
			})
		}
	}

	sortOps(ops)

	return encodeUpdate(ops)
}

// VectorClock returns a copy of the highest seq applied per actor.
func (d *Doc) VectorClock() map[[16]byte]uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[[16]byte]uint64, len(d.clock))
	for actor, seq := range d.clock {
		out[actor] = seq
	}

	return out
}

// Title derives the note's display title: the text of the lowest-position
// non-deleted content block, NFC-normalized and truncated to 50 runes.
// Title is never stored; it is recomputed on demand (spec.md §3, "Title is
// derived ... it is never stored as a distinct field").
func (d *Doc) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		found    bool
		best     float64
		bestText []byte
	)

	for _, b := range d.blocks {
		if b.deleted || len(b.value) == 0 {
			continue
		}

		if !found || b.position < best {
			found = true
			best = b.position
			bestText = b.value
		}
	}

	if !found {
		return ""
	}

	normalized := norm.NFC.Bytes(bestText)

	return truncateRunes(string(normalized), titleMaxRunes)
}

// truncateRunes truncates s to at most n runes, never splitting a
// multi-byte rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	count := 0

	for i := range s {
		if count == n {
			return s[:i]
		}

		count++
	}

	return s
}

// EditContent records a local content-block mutation: actor and seq are
// supplied by the caller (the per-note actor assigns seq from its own
// monotonic counter before handing it to the Log Writer). The edit is
// applied to the document immediately and also returned as an update
// ready to append to the local instance's *.crdtlog file.
func (d *Doc) EditContent(actor [16]byte, seq uint64, blockID [16]byte, position float64, deleted bool, text []byte) []byte {
	o := op{
		kind:     kindContent,
		actor:    actor,
		seq:      seq,
		blockID:  blockID,
		position: position,
		deleted:  deleted,
		value:    text,
	}

	d.mu.Lock()
	d.applyOpLocked(o)
	d.mu.Unlock()

	return encodeUpdate([]op{o})
}

// EditMeta records a local metadata-register mutation; see EditContent.
func (d *Doc) EditMeta(actor [16]byte, seq uint64, key MetaKey, value []byte) []byte {
	o := op{
		kind:    kindMeta,
		actor:   actor,
		seq:     seq,
		metaKey: key,
		value:   value,
	}

	d.mu.Lock()
	d.applyOpLocked(o)
	d.mu.Unlock()

	return encodeUpdate([]op{o})
}

// metaValue returns the current resolved value of a metadata register, or
// (nil, false) if never set.
func (d *Doc) metaValue(key metaKey) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.meta[key]
	if !ok {
		return nil, false
	}

	return m.value, true
}

// FolderID returns the note's current folder register value, or
// (nil, false) if never set (spec.md's Note.folderId is optional).
func (d *Doc) FolderID() ([]byte, bool) {
	return d.metaValue(metaFolderID)
}

// Pinned returns the note's current pinned register value.
func (d *Doc) Pinned() ([]byte, bool) {
	return d.metaValue(metaPinned)
}

// SoftDeleted returns the note's current soft-deleted register value.
func (d *Doc) SoftDeleted() ([]byte, bool) {
	return d.metaValue(metaSoftDeleted)
}

// Tags returns the note's current tags register value (an
// application-defined encoding of the tag set).
func (d *Doc) Tags() ([]byte, bool) {
	return d.metaValue(metaTags)
}
