package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSFV(t *testing.T) {
	input := strings.Join([]string{
		"; Generated by some tool",
		"",
		"a.bin CBF43926",
		"name with spaces.bin\t00000000",
		"archive.zip#readme.txt EC4AC3D0",
	}, "\n")

	m, err := ParseSFV(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())

	assert.Equal(t, "a.bin", m.Entries[0].Path)
	assert.Equal(t, "crc32", m.Entries[0].Algorithm)
	assert.Equal(t, "cbf43926", m.Entries[0].Expected.Hex())
	assert.False(t, m.Entries[0].InContainer())

	assert.Equal(t, "name with spaces.bin", m.Entries[1].Path)

	assert.True(t, m.Entries[2].InContainer())
	assert.Equal(t, "archive.zip", m.Entries[2].Path)
	assert.Equal(t, "readme.txt", m.Entries[2].Member)
	assert.Equal(t, "archive.zip#readme.txt", m.Entries[2].DisplayPath())
}

func TestParseSFVRejectsMalformedLines(t *testing.T) {
	for _, input := range []string{
		"nochecksum",
		"a.bin 123",
		"a.bin nothexval",
	} {
		_, err := ParseSFV(strings.NewReader(input))
		assert.Error(t, err, "input %q", input)
	}
}

func TestParseSum(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"d41d8cd98f00b204e9800998ecf8427e  empty.bin",
		"9e107d9d372bb6826bd81d3542a419d6 *fox.txt",
	}, "\n")

	m, err := ParseSum("md5", strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())
	assert.Equal(t, "empty.bin", m.Entries[0].Path)
	assert.Equal(t, "md5", m.Entries[0].Algorithm)
	assert.Equal(t, "fox.txt", m.Entries[1].Path)
}

func TestParseExtended(t *testing.T) {
	input := strings.Join([]string{
		"crc32:cbf43926  a.bin",
		"sha256:" + strings.Repeat("ab", 32) + "  b.bin",
	}, "\n")

	m, err := ParseExtended(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())
	assert.Equal(t, "crc32", m.Entries[0].Algorithm)
	assert.Equal(t, "sha256", m.Entries[1].Algorithm)
}

func TestParseExtendedRejectsTruncatedKnownAlgorithm(t *testing.T) {
	_, err := ParseExtended(strings.NewReader("sha256:abcd  b.bin"))
	require.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	for _, tc := range []struct {
		path      string
		format    Format
		algorithm string
	}{
		{path: "files.sfv", format: FormatSFV, algorithm: "crc32"},
		{path: "files.MD5", format: FormatSum, algorithm: "md5"},
		{path: "files.sha256", format: FormatSum, algorithm: "sha256"},
		{path: "files.sum", format: FormatExtended},
	} {
		format, algorithm, err := DetectFormat(tc.path)
		require.NoError(t, err, tc.path)
		assert.Equal(t, tc.format, format)
		assert.Equal(t, tc.algorithm, algorithm)
	}

	_, _, err := DetectFormat("files.unknown")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	m, err := ParseFile("files.sfv", strings.NewReader("a.bin CBF43926"))
	require.NoError(t, err)
	assert.Equal(t, "files.sfv", m.Path)
	require.Equal(t, 1, m.Len())
}
