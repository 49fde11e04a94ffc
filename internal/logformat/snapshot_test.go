package logformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewcsillag/notecove/internal/noteid"
)

func TestEncodeDecodeSnapshot_RoundTrip(t *testing.T) {
	noteID := noteid.New()
	actor1 := [16]byte{1}
	actor2 := [16]byte{2}

	snap := Snapshot{
		NoteID:    noteID,
		CreatedMs: 1700000000000,
		CoveredSequences: map[[16]byte]uint64{
			actor1: 10,
			actor2: 20,
		},
		State: []byte("state-as-update-bytes"),
	}

	encoded := EncodeSnapshot(snap)

	decoded, err := DecodeSnapshot(encoded)
	require.NoError(t, err)
	assert.True(t, noteID.Equal(decoded.NoteID))
	assert.Equal(t, snap.CreatedMs, decoded.CreatedMs)
	assert.Equal(t, snap.CoveredSequences, decoded.CoveredSequences)
	assert.Equal(t, snap.State, decoded.State)
}

func TestEncodeSnapshot_DeterministicAcrossMapOrder(t *testing.T) {
	noteID := noteid.New()
	covered := map[[16]byte]uint64{
		{1}: 1, {2}: 2, {3}: 3, {4}: 4, {5}: 5,
	}

	snap := Snapshot{NoteID: noteID, CreatedMs: 1, CoveredSequences: covered, State: []byte("x")}

	a := EncodeSnapshot(snap)
	b := EncodeSnapshot(snap)

	assert.Equal(t, a, b)
}

func TestDecodeSnapshot_BadMagic(t *testing.T) {
	snap := Snapshot{NoteID: noteid.New(), State: []byte("x")}
	encoded := EncodeSnapshot(snap)
	encoded[0] = 'Z'

	_, err := DecodeSnapshot(encoded)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestDecodeSnapshot_BadCRC(t *testing.T) {
	snap := Snapshot{NoteID: noteid.New(), State: []byte("x")}
	encoded := EncodeSnapshot(snap)
	encoded[len(encoded)-1] ^= 0xFF

	_, err := DecodeSnapshot(encoded)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestDecodeSnapshot_TooShort(t *testing.T) {
	_, err := DecodeSnapshot([]byte{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestEncodeDecodeSnapshot_EmptyCoveredSequences(t *testing.T) {
	snap := Snapshot{NoteID: noteid.New(), CreatedMs: 5, CoveredSequences: nil, State: []byte("s")}

	decoded, err := DecodeSnapshot(EncodeSnapshot(snap))
	require.NoError(t, err)
	assert.Empty(t, decoded.CoveredSequences)
}
