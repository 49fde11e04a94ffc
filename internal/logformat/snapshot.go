package logformat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/drewcsillag/notecove/internal/noteid"
)

// snapMagic identifies a *.snap file.
var snapMagic = [4]byte{'N', 'C', 'S', 'N'}

// SnapVersion is the only snapshot version this package writes or
// accepts.
const SnapVersion = 1

// ErrCorruptSnapshot covers bad magic, bad version, or a failed CRC32C
// check on a snapshot file (spec.md §7, "Corrupt").
var ErrCorruptSnapshot = errors.New("logformat: corrupt snapshot")

// Snapshot is a decoded *.snap file (minus its ready-flag byte, which
// fsadapter's ready-flag protocol owns).
type Snapshot struct {
	NoteID           noteid.ID
	CreatedMs        int64
	CoveredSequences map[[16]byte]uint64
	State            []byte
}

// sortedActorKeys returns the keys of m sorted lexicographically by raw
// bytes, giving EncodeSnapshot a deterministic map encoding (two
// snapshots capturing the same vector clock must encode to identical
// bytes).
func sortedActorKeys(m map[[16]byte]uint64) [][16]byte {
	keys := make([][16]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		for b := 0; b < 16; b++ {
			if keys[i][b] != keys[j][b] {
				return keys[i][b] < keys[j][b]
			}
		}

		return false
	})

	return keys
}

// EncodeSnapshot produces the framed bytes for a snapshot's body: magic |
// version | noteId(16) | createdMs(8 LE) | coveredSequences (varint map) |
// stateLen(4 LE) | state | crc32c(4 LE). The caller is responsible for
// the leading ready-flag byte (see fsadapter.WriteReadyFlagFile).
func EncodeSnapshot(s Snapshot) []byte {
	var buf []byte

	buf = append(buf, snapMagic[:]...)
	buf = append(buf, SnapVersion)

	idBytes := s.NoteID.Bytes()
	buf = append(buf, idBytes[:]...)

	var createdBuf [8]byte
	binary.LittleEndian.PutUint64(createdBuf[:], uint64(s.CreatedMs))
	buf = append(buf, createdBuf[:]...)

	buf = appendVarint(buf, uint64(len(s.CoveredSequences)))

	for _, actor := range sortedActorKeys(s.CoveredSequences) {
		buf = append(buf, actor[:]...)
		buf = appendVarint(buf, s.CoveredSequences[actor])
	}

	var stateLenBuf [4]byte
	binary.LittleEndian.PutUint32(stateLenBuf[:], uint32(len(s.State)))
	buf = append(buf, stateLenBuf[:]...)
	buf = append(buf, s.State...)

	sum := crc32.Checksum(buf, castagnoli)

	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], sum)
	buf = append(buf, crcBuf[:]...)

	return buf
}

// DecodeSnapshot is the inverse of EncodeSnapshot. It does not interpret
// the ready-flag byte; callers read the file via fsadapter's ready-flag
// protocol first and pass this function only the body that follows it.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	const headerLen = 4 + 1 + 16 + 8
	if len(b) < headerLen {
		return Snapshot{}, fmt.Errorf("%w: too short", ErrCorruptSnapshot)
	}

	if [4]byte(b[0:4]) != snapMagic {
		return Snapshot{}, fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}

	if b[4] != SnapVersion {
		return Snapshot{}, fmt.Errorf("%w: bad version %d", ErrCorruptSnapshot, b[4])
	}

	var idBytes [16]byte
	copy(idBytes[:], b[5:21])

	createdMs := int64(binary.LittleEndian.Uint64(b[21:29]))

	rest := b[29:]

	count, n, err := readVarint(rest)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	rest = rest[n:]

	covered := make(map[[16]byte]uint64, count)

	for i := uint64(0); i < count; i++ {
		if len(rest) < 16 {
			return Snapshot{}, fmt.Errorf("%w: truncated covered-sequences map", ErrCorruptSnapshot)
		}

		var actor [16]byte
		copy(actor[:], rest[0:16])
		rest = rest[16:]

		seq, n, err := readVarint(rest)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}

		rest = rest[n:]
		covered[actor] = seq
	}

	if len(rest) < 4 {
		return Snapshot{}, fmt.Errorf("%w: missing state length", ErrCorruptSnapshot)
	}

	stateLen := binary.LittleEndian.Uint32(rest[0:4])
	rest = rest[4:]

	if uint32(len(rest)) < stateLen+4 {
		return Snapshot{}, fmt.Errorf("%w: truncated state or crc", ErrCorruptSnapshot)
	}

	state := rest[0:stateLen]
	wantCrc := binary.LittleEndian.Uint32(rest[stateLen : stateLen+4])

	bodyLen := len(b) - len(rest) + int(stateLen)
	gotCrc := crc32.Checksum(b[0:bodyLen], castagnoli)

	if gotCrc != wantCrc {
		return Snapshot{}, fmt.Errorf("%w: crc mismatch", ErrCorruptSnapshot)
	}

	return Snapshot{
		NoteID:           noteid.FromBytes(idBytes),
		CreatedMs:        createdMs,
		CoveredSequences: covered,
		State:            append([]byte(nil), state...),
	}, nil
}
