package crdt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// kind discriminates what an op mutates: note content (an ordered text
// block) or one of the small metadata registers tracked alongside content.
type kind uint8

const (
	kindContent kind = iota
	kindMeta
)

// metaKey identifies which metadata register a kindMeta op targets.
type metaKey uint8

const (
	metaFolderID metaKey = iota
	metaPinned
	metaSoftDeleted
	metaTags
)

// op is a single CRDT mutation: either "this content block now reads this
// text" or "this metadata register now holds this value". Every op carries
// a Lamport-style (actor, seq) stamp used for last-write-wins resolution;
// seq is monotonically increasing per actor and matches the log record
// sequence the op was appended under (spec §3, "Log record").
//
// An op is the payload carried by one `*.crdtlog` record. It is encoded
// with a small fixed-field binary layout rather than a general-purpose
// serialization format, matching the framing discipline used for the log
// records themselves (internal/logformat).
type op struct {
	kind     kind
	actor    [16]byte
	seq      uint64
	blockID  [16]byte // valid when kind == kindContent
	position float64  // fractional ordering index, valid when kind == kindContent
	deleted  bool
	metaKey  metaKey // valid when kind == kindMeta
	value    []byte  // text (content) or register payload (meta)
}

// encodeOp produces the binary payload for a single op. Layout:
//
//	kind(1) | actor(16) | seq(8 LE) | deleted(1) |
//	  content: blockID(16) | position(8 LE float64 bits) | valueLen(4 LE) | value
//	  meta:    metaKey(1)  | valueLen(4 LE) | value
func encodeOp(o op) []byte {
	var buf []byte

	buf = append(buf, byte(o.kind))
	buf = append(buf, o.actor[:]...)

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], o.seq)
	buf = append(buf, seqBuf[:]...)

	if o.deleted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	switch o.kind {
	case kindContent:
		buf = append(buf, o.blockID[:]...)

		var posBuf [8]byte
		binary.LittleEndian.PutUint64(posBuf[:], floatBits(o.position))
		buf = append(buf, posBuf[:]...)
	case kindMeta:
		buf = append(buf, byte(o.metaKey))
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(o.value)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, o.value...)

	return buf
}

// decodeOp is the inverse of encodeOp.
func decodeOp(b []byte) (op, error) {
	var o op

	const headerLen = 1 + 16 + 8 + 1
	if len(b) < headerLen {
		return op{}, fmt.Errorf("crdt: op payload too short: %d bytes", len(b))
	}

	o.kind = kind(b[0])
	copy(o.actor[:], b[1:17])
	o.seq = binary.LittleEndian.Uint64(b[17:25])
	o.deleted = b[25] != 0

	rest := b[headerLen:]

	switch o.kind {
	case kindContent:
		const contentHeaderLen = 16 + 8 + 4
		if len(rest) < contentHeaderLen {
			return op{}, fmt.Errorf("crdt: content op payload too short: %d bytes", len(rest))
		}

		copy(o.blockID[:], rest[0:16])
		o.position = bitsFloat(binary.LittleEndian.Uint64(rest[16:24]))

		n := binary.LittleEndian.Uint32(rest[24:28])
		rest = rest[28:]

		if uint32(len(rest)) < n {
			return op{}, fmt.Errorf("crdt: content op value truncated")
		}

		o.value = append([]byte(nil), rest[:n]...)
	case kindMeta:
		if len(rest) < 1+4 {
			return op{}, fmt.Errorf("crdt: meta op payload too short: %d bytes", len(rest))
		}

		o.metaKey = metaKey(rest[0])
		n := binary.LittleEndian.Uint32(rest[1:5])
		rest = rest[5:]

		if uint32(len(rest)) < n {
			return op{}, fmt.Errorf("crdt: meta op value truncated")
		}

		o.value = append([]byte(nil), rest[:n]...)
	default:
		return op{}, fmt.Errorf("crdt: unknown op kind %d", o.kind)
	}

	return o, nil
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}

func bitsFloat(u uint64) float64 {
	return math.Float64frombits(u)
}

// encodeUpdate concatenates a sequence of ops into a single update blob,
// each prefixed with its own length so decodeUpdate can split them back
// apart. This is the wire shape of the byte slices Doc.Apply,
// Doc.StateAsUpdate and Doc.EncodeDiff pass around.
func encodeUpdate(ops []op) []byte {
	var buf []byte

	for _, o := range ops {
		payload := encodeOp(o)

		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, payload...)
	}

	return buf
}

// decodeUpdate is the inverse of encodeUpdate.
func decodeUpdate(b []byte) ([]op, error) {
	var ops []op

	for len(b) > 0 {
		if len(b) < 4 {
			return nil, fmt.Errorf("crdt: update framing truncated: %d trailing bytes", len(b))
		}

		n := binary.LittleEndian.Uint32(b[0:4])
		b = b[4:]

		if uint32(len(b)) < n {
			return nil, fmt.Errorf("crdt: update op truncated: want %d bytes, have %d", n, len(b))
		}

		o, err := decodeOp(b[:n])
		if err != nil {
			return nil, err
		}

		ops = append(ops, o)
		b = b[n:]
	}

	return ops, nil
}
