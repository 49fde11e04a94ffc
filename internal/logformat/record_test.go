package logformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRecord_RoundTrip(t *testing.T) {
	encoded, err := EncodeRecord(1700000000000, 1, []byte("payload"))
	require.NoError(t, err)

	rec, n, status := DecodeRecord(encoded)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, int64(1700000000000), rec.TimestampMs)
	assert.Equal(t, uint64(1), rec.Sequence)
	assert.Equal(t, "payload", string(rec.Payload))
}

func TestDecodeRecord_Incomplete_ShortHeader(t *testing.T) {
	_, _, status := DecodeRecord([]byte{'N', 'C', 'L'})
	assert.Equal(t, StatusIncomplete, status)
}

func TestDecodeRecord_Incomplete_ShortPayload(t *testing.T) {
	encoded, err := EncodeRecord(1, 1, []byte("hello world"))
	require.NoError(t, err)

	_, _, status := DecodeRecord(encoded[:len(encoded)-5])
	assert.Equal(t, StatusIncomplete, status)
}

func TestDecodeRecord_Corrupt_BadMagic(t *testing.T) {
	encoded, err := EncodeRecord(1, 1, []byte("x"))
	require.NoError(t, err)

	encoded[0] = 'X'

	_, _, status := DecodeRecord(encoded)
	assert.Equal(t, StatusCorrupt, status)
}

func TestDecodeRecord_Corrupt_BadCRC(t *testing.T) {
	encoded, err := EncodeRecord(1, 1, []byte("x"))
	require.NoError(t, err)

	encoded[len(encoded)-1] ^= 0xFF

	_, _, status := DecodeRecord(encoded)
	assert.Equal(t, StatusCorrupt, status)
}

func TestDecodeRecord_Corrupt_BadVersion(t *testing.T) {
	encoded, err := EncodeRecord(1, 1, []byte("x"))
	require.NoError(t, err)

	encoded[4] = 9

	_, _, status := DecodeRecord(encoded)
	assert.Equal(t, StatusCorrupt, status)
}

func TestEncodeRecord_EmptyPayloadAllowed(t *testing.T) {
	encoded, err := EncodeRecord(1, 1, nil)
	require.NoError(t, err)

	rec, _, status := DecodeRecord(encoded)
	assert.Equal(t, StatusOK, status)
	assert.Empty(t, rec.Payload)
}

func TestDecodeStream_MultipleCleanRecords(t *testing.T) {
	r1, err := EncodeRecord(100, 1, []byte("a"))
	require.NoError(t, err)
	r2, err := EncodeRecord(200, 2, []byte("b"))
	require.NoError(t, err)

	stream := append(append([]byte{}, r1...), r2...)

	records, cleanOffset, corrupt := DecodeStream(stream)
	require.Len(t, records, 2)
	assert.False(t, corrupt)
	assert.Equal(t, len(stream), cleanOffset)
	assert.Equal(t, uint64(1), records[0].Sequence)
	assert.Equal(t, uint64(2), records[1].Sequence)
}

func TestDecodeStream_StopsAtIncompleteTrailingRecord(t *testing.T) {
	r1, err := EncodeRecord(100, 1, []byte("a"))
	require.NoError(t, err)
	r2, err := EncodeRecord(200, 2, []byte("longer payload"))
	require.NoError(t, err)

	stream := append(append([]byte{}, r1...), r2[:len(r2)-3]...)

	records, cleanOffset, corrupt := DecodeStream(stream)
	require.Len(t, records, 1)
	assert.False(t, corrupt)
	assert.Equal(t, len(r1), cleanOffset)
}

func TestDecodeStream_StopsAtCorruption(t *testing.T) {
	r1, err := EncodeRecord(100, 1, []byte("a"))
	require.NoError(t, err)
	r2, err := EncodeRecord(200, 2, []byte("b"))
	require.NoError(t, err)
	r2[len(r2)-1] ^= 0xFF

	stream := append(append([]byte{}, r1...), r2...)

	records, cleanOffset, corrupt := DecodeStream(stream)
	require.Len(t, records, 1)
	assert.True(t, corrupt)
	assert.Equal(t, len(r1), cleanOffset)
}

func TestCheckSequencing_ValidRun(t *testing.T) {
	records := []Record{{Sequence: 1}, {Sequence: 2}, {Sequence: 3}}
	assert.NoError(t, CheckSequencing(records))
}

func TestCheckSequencing_Gap(t *testing.T) {
	records := []Record{{Sequence: 1}, {Sequence: 3}}
	err := CheckSequencing(records)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSequenceViolation)
}

func TestFirstSequenceViolation_NoneFound(t *testing.T) {
	records := []Record{{Sequence: 1}, {Sequence: 2}}
	assert.Equal(t, -1, FirstSequenceViolation(records))
}
