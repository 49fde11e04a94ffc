package logformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarint_RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)} {
		buf := appendVarint(nil, v)

		got, n, err := readVarint(buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), n)
	}
}

func TestReadVarint_Truncated(t *testing.T) {
	_, _, err := readVarint([]byte{0x80, 0x80})
	require.Error(t, err)
	assert.ErrorIs(t, err, errVarintTruncated)
}

func TestReadVarint_EmptyInput(t *testing.T) {
	_, _, err := readVarint(nil)
	require.Error(t, err)
}
