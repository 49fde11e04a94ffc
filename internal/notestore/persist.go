package notestore

import (
	"encoding/json"
	"fmt"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logsync"
)

// syncStateFile is the on-disk shape of notes/<id>/sync_state.json: the
// byte offsets and last-decoded sequences a sync pass reached, written
// after each pass (spec.md §4.F step 3, "record the resulting
// offset_by_file"). LoadNote does not read it back; a load replays every
// log file from its start.
type syncStateFile struct {
	Offsets  []offsetEntry `json:"offsets"`
	SeqState []seqEntry    `json:"seqState"`
}

type offsetEntry struct {
	ProfileID  [16]byte `json:"profileId"`
	InstanceID [16]byte `json:"instanceId"`
	CreatedMs  int64    `json:"createdMs"`
	Offset     int64    `json:"offset"`
}

type seqEntry struct {
	ProfileID  [16]byte `json:"profileId"`
	InstanceID [16]byte `json:"instanceId"`
	CreatedMs  int64    `json:"createdMs"`
	Sequence   uint64   `json:"sequence"`
}

func loadSyncState(fs fsadapter.FS, path string) (logsync.Offsets, logsync.SeqState, error) {
	exists, err := fs.Exists(path)
	if err != nil {
		return nil, nil, fmt.Errorf("notestore: checking %s: %w", path, err)
	}

	if !exists {
		return logsync.Offsets{}, logsync.SeqState{}, nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("notestore: reading %s: %w", path, err)
	}

	var raw syncStateFile
	if err := json.Unmarshal(data, &raw); err != nil {
		// A corrupt sync_state.json is a performance concern, not a
		// correctness one: syncNote will simply re-read every log file
		// from the start, which crdt.Doc.Apply tolerates idempotently.
		return logsync.Offsets{}, logsync.SeqState{}, nil
	}

	offsets := make(logsync.Offsets, len(raw.Offsets))
	for _, e := range raw.Offsets {
		offsets[logsync.FileKey{ProfileID: e.ProfileID, InstanceID: e.InstanceID, CreatedMs: e.CreatedMs}] = e.Offset
	}

	seqState := make(logsync.SeqState, len(raw.SeqState))
	for _, e := range raw.SeqState {
		seqState[logsync.FileKey{ProfileID: e.ProfileID, InstanceID: e.InstanceID, CreatedMs: e.CreatedMs}] = e.Sequence
	}

	return offsets, seqState, nil
}

func saveSyncState(fs fsadapter.FS, path string, offsets logsync.Offsets, seqState logsync.SeqState) error {
	raw := syncStateFile{
		Offsets:  make([]offsetEntry, 0, len(offsets)),
		SeqState: make([]seqEntry, 0, len(seqState)),
	}

	for k, v := range offsets {
		raw.Offsets = append(raw.Offsets, offsetEntry{ProfileID: k.ProfileID, InstanceID: k.InstanceID, CreatedMs: k.CreatedMs, Offset: v})
	}

	for k, v := range seqState {
		raw.SeqState = append(raw.SeqState, seqEntry{ProfileID: k.ProfileID, InstanceID: k.InstanceID, CreatedMs: k.CreatedMs, Sequence: v})
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("notestore: encoding sync state: %w", err)
	}

	if err := fs.WriteFile(path, data); err != nil {
		return fmt.Errorf("notestore: writing %s: %w", path, err)
	}

	return nil
}
