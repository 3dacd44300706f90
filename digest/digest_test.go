package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCopiesValue(t *testing.T) {
	raw := []byte{0xcb, 0xf4, 0x39, 0x26}
	d, err := New("CRC32", raw)
	require.NoError(t, err)

	raw[0] = 0x00
	assert.Equal(t, "crc32", d.Algorithm())
	assert.Equal(t, "cbf43926", d.Hex())
	assert.Equal(t, 4, d.Size())
}

func TestNewRejectsOutOfRangeSizes(t *testing.T) {
	_, err := New("crc32", nil)
	require.Error(t, err)

	_, err = New("crc32", make([]byte, MaxSize+1))
	require.Error(t, err)

	_, err = New("", []byte{0x01})
	require.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	d, err := Parse("crc32:cbf43926")
	require.NoError(t, err)
	assert.Equal(t, "crc32:cbf43926", d.String())

	parsed, err := Parse(d.String())
	require.NoError(t, err)
	assert.True(t, d.Equal(parsed))
}

func TestParseValidatesKnownAlgorithms(t *testing.T) {
	// sha256 digests must be 64 hex characters; the OCI validation catches
	// truncated values that generic hex decoding would let through.
	_, err := Parse("sha256:abcd")
	require.Error(t, err)

	_, err = Parse("sha256:" + strings.Repeat("ab", 32))
	require.NoError(t, err)
}

func TestEqualIsByteExact(t *testing.T) {
	a := MustNew("crc32", []byte{0xcb, 0xf4, 0x39, 0x26})
	b := MustNew("crc32", []byte{0xcb, 0xf4, 0x39, 0x26})
	c := MustNew("crc32", []byte{0xcb, 0xf4, 0x39, 0x27})
	otherAlg := MustNew("sum32", []byte{0xcb, 0xf4, 0x39, 0x26})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(otherAlg))
}

func TestZeroDigest(t *testing.T) {
	var d Digest
	assert.True(t, d.IsZero())
	assert.Empty(t, d.String())
}
