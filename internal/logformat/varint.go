package logformat

import "errors"

// errVarintTruncated is returned by readVarint when b ends before the
// varint's terminating byte (high bit clear) is reached.
var errVarintTruncated = errors.New("logformat: truncated varint")

// appendVarint appends v to buf using the same base-128 continuation
// encoding as encoding/binary.AppendUvarint, kept local so this package's
// on-disk format does not depend on a specific encoding/binary version's
// helper surface.
func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}

	return append(buf, byte(v))
}

// readVarint decodes a varint from the start of b, returning the value
// and the number of bytes consumed.
func readVarint(b []byte) (uint64, int, error) {
	var (
		v  uint64
		sh uint
	)

	for i, by := range b {
		if i > 9 {
			return 0, 0, errVarintTruncated
		}

		v |= uint64(by&0x7f) << sh

		if by&0x80 == 0 {
			return v, i + 1, nil
		}

		sh += 7
	}

	return 0, 0, errVarintTruncated
}
