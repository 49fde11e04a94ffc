// Package logformat implements the on-disk framing for *.crdtlog and
// *.snap files plus the filename grammar that names them: per-record
// length-prefixed, CRC32C-checksummed framing for logs; magic/version/
// checksum framing for whole-file snapshot replacement. It has no
// third-party dependency: the checksum is the Castagnoli CRC32C table
// from the standard library's hash/crc32, the same way the teacher
// reaches for stdlib hashing in pkg/quickxorhash rather than an external
// checksum library.
package logformat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// logMagic identifies a *.crdtlog record.
var logMagic = [4]byte{'N', 'C', 'L', 'G'}

// LogVersion is the only record version this package writes or accepts.
const LogVersion = 1

// recordHeaderLen is the fixed portion of a record before its payload:
// magic(4) | version(1) | flags(1) | timestamp_ms(8) | sequence(8) | payload_len(4).
const recordHeaderLen = 4 + 1 + 1 + 8 + 8 + 4

// recordTrailerLen is the trailing crc32c(4).
const recordTrailerLen = 4

// castagnoli is the CRC32C polynomial table spec.md's framing uses.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrPayloadTooLarge is returned by EncodeRecord when payload exceeds the
// 4-byte length field's range.
var ErrPayloadTooLarge = errors.New("logformat: payload exceeds 2^31-1 bytes")

// Record is one decoded *.crdtlog entry.
type Record struct {
	TimestampMs int64
	Sequence    uint64
	Payload     []byte
}

// EncodeRecord produces the framed bytes for one log record.
func EncodeRecord(timestampMs int64, sequence uint64, payload []byte) ([]byte, error) {
	if len(payload) > (1<<31)-1 {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, 0, recordHeaderLen+len(payload)+recordTrailerLen)
	buf = append(buf, logMagic[:]...)
	buf = append(buf, LogVersion)
	buf = append(buf, 0) // flags: reserved, always 0 in this implementation.

	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(timestampMs))
	buf = append(buf, tsBuf[:]...)

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], sequence)
	buf = append(buf, seqBuf[:]...)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf = append(buf, lenBuf[:]...)

	buf = append(buf, payload...)

	sum := crc32.Checksum(buf, castagnoli)

	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], sum)
	buf = append(buf, crcBuf[:]...)

	return buf, nil
}

// DecodeStatus classifies the outcome of DecodeRecord.
type DecodeStatus int

const (
	// StatusOK means a full, valid record was decoded.
	StatusOK DecodeStatus = iota
	// StatusIncomplete means fewer bytes are available than the framed
	// length declares — the normal signal for a mid-transfer partial
	// file, not an error.
	StatusIncomplete
	// StatusCorrupt means the magic, version, or CRC32C check failed.
	StatusCorrupt
)

// DecodeRecord decodes one record from b starting at offset 0. It returns
// the decoded record, the offset just past it, and a status. Callers
// decoding a stream call this repeatedly, slicing b to start at
// nextOffset each time.
func DecodeRecord(b []byte) (rec Record, nextOffset int, status DecodeStatus) {
	if len(b) < recordHeaderLen {
		return Record{}, 0, StatusIncomplete
	}

	if [4]byte(b[0:4]) != logMagic {
		return Record{}, 0, StatusCorrupt
	}

	if b[4] != LogVersion {
		return Record{}, 0, StatusCorrupt
	}

	timestampMs := int64(binary.LittleEndian.Uint64(b[6:14]))
	sequence := binary.LittleEndian.Uint64(b[14:22])
	payloadLen := binary.LittleEndian.Uint32(b[22:26])

	total := recordHeaderLen + int(payloadLen) + recordTrailerLen
	if len(b) < total {
		return Record{}, 0, StatusIncomplete
	}

	payload := b[recordHeaderLen : recordHeaderLen+int(payloadLen)]
	wantCrc := binary.LittleEndian.Uint32(b[recordHeaderLen+int(payloadLen) : total])
	gotCrc := crc32.Checksum(b[0:recordHeaderLen+int(payloadLen)], castagnoli)

	if gotCrc != wantCrc {
		return Record{}, 0, StatusCorrupt
	}

	return Record{
		TimestampMs: timestampMs,
		Sequence:    sequence,
		Payload:     append([]byte(nil), payload...),
	}, total, StatusOK
}

// DecodeStream decodes as many complete records from b as it can,
// stopping at the first Incomplete or Corrupt boundary. It returns the
// decoded records, the offset of the last clean boundary reached, and
// whether that stop was due to corruption (vs. a clean EOF or an
// incomplete trailing record, neither of which is an error per spec.md
// §4.E: "do not advance past the corruption").
func DecodeStream(b []byte) (records []Record, cleanOffset int, corrupt bool) {
	offset := 0

	for offset < len(b) {
		rec, n, status := DecodeRecord(b[offset:])

		switch status {
		case StatusOK:
			records = append(records, rec)
			offset += n
		case StatusIncomplete:
			return records, offset, false
		case StatusCorrupt:
			return records, offset, true
		}
	}

	return records, offset, false
}

// validateSequencing is a convenience for callers that need spec.md
// §4.E step 4: verify each record's sequence is exactly the previous
// plus one (starting at 1). It returns the index of the first
// out-of-sequence record, or -1 if records are fully in order.
func validateSequencing(records []Record) int {
	var expected uint64 = 1

	for i, r := range records {
		if r.Sequence != expected {
			return i
		}

		expected++
	}

	return -1
}

// FirstSequenceViolation reports the index of the first record whose
// sequence breaks the expected 1,2,3,... run, or -1 if none does. A
// violation at index i is treated as Corrupt starting at that record
// (spec.md §4.E step 4).
func FirstSequenceViolation(records []Record) int {
	return validateSequencing(records)
}

// ErrSequenceViolation mirrors spec.md §7's taxonomy entry for a record
// whose sequence is not previous+1.
var ErrSequenceViolation = errors.New("logformat: sequence violation")

// CheckSequencing returns ErrSequenceViolation, wrapped with the
// offending sequence number, if records are not a strict 1,2,3,... run.
func CheckSequencing(records []Record) error {
	if i := validateSequencing(records); i >= 0 {
		return fmt.Errorf("%w: got %d, want %d", ErrSequenceViolation, records[i].Sequence, i+1)
	}

	return nil
}
