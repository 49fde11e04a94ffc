package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeOp_ContentRoundTrip(t *testing.T) {
	o := op{
		kind:     kindContent,
		actor:    [16]byte{1, 2, 3},
		seq:      42,
		blockID:  [16]byte{9, 9, 9},
		position: 3.14159,
		deleted:  false,
		value:    []byte("hello world"),
	}

	encoded := encodeOp(o)

	decoded, err := decodeOp(encoded)
	require.NoError(t, err)
	assert.Equal(t, o, decoded)
}

func TestEncodeDecodeOp_MetaRoundTrip(t *testing.T) {
	o := op{
		kind:    kindMeta,
		actor:   [16]byte{4, 5, 6},
		seq:     7,
		deleted: true,
		metaKey: metaPinned,
		value:   []byte{1},
	}

	encoded := encodeOp(o)

	decoded, err := decodeOp(encoded)
	require.NoError(t, err)
	assert.Equal(t, o, decoded)
}

func TestEncodeDecodeOp_EmptyValue(t *testing.T) {
	o := op{kind: kindContent, actor: [16]byte{1}, seq: 1, blockID: [16]byte{2}, value: nil}

	decoded, err := decodeOp(encodeOp(o))
	require.NoError(t, err)
	assert.Empty(t, decoded.value)
}

func TestDecodeOp_TooShort(t *testing.T) {
	_, err := decodeOp([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeOp_UnknownKind(t *testing.T) {
	o := op{kind: kind(99), actor: [16]byte{1}, seq: 1}
	_, err := decodeOp(encodeOp(o))
	require.Error(t, err)
}

func TestDecodeOp_ContentValueTruncated(t *testing.T) {
	o := op{kind: kindContent, actor: [16]byte{1}, seq: 1, blockID: [16]byte{2}, value: []byte("abc")}
	encoded := encodeOp(o)

	_, err := decodeOp(encoded[:len(encoded)-2])
	require.Error(t, err)
}

func TestEncodeDecodeUpdate_MultipleOps(t *testing.T) {
	ops := []op{
		{kind: kindContent, actor: [16]byte{1}, seq: 1, blockID: [16]byte{10}, value: []byte("a")},
		{kind: kindMeta, actor: [16]byte{1}, seq: 2, metaKey: metaFolderID, value: []byte("folder-1")},
		{kind: kindContent, actor: [16]byte{2}, seq: 1, blockID: [16]byte{11}, value: []byte("b")},
	}

	encoded := encodeUpdate(ops)

	decoded, err := decodeUpdate(encoded)
	require.NoError(t, err)
	assert.Equal(t, ops, decoded)
}

func TestDecodeUpdate_Empty(t *testing.T) {
	decoded, err := decodeUpdate(nil)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeUpdate_TruncatedFraming(t *testing.T) {
	_, err := decodeUpdate([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestFloatBitsRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 3.14159, 1e300, -1e-300} {
		assert.Equal(t, f, bitsFloat(floatBits(f)))
	}
}
