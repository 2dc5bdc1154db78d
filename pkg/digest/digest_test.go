package digest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumKnownVectors(t *testing.T) {
	testCases := []struct {
		input string
		hex   string
		key   string
	}{
		{
			input: "",
			hex:   "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			key:   "47DEQpj8HBSa-_TImW-5JCeuQeRkm5NMpJWZG3hSuFU",
		},
		{
			input: "hello world",
			hex:   "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			key:   "uU0nuZNNPgilLlLX2n2r-sSE7-N6U4DukIj3rOLvzek",
		},
	}

	for _, tc := range testCases {
		d := Sum([]byte(tc.input))
		assert.Equal(t, tc.hex, d.Hex(), "hex for %q", tc.input)
		assert.Equal(t, tc.key, d.Key(), "key for %q", tc.input)
	}
}

func TestSumDeterministic(t *testing.T) {
	payload := []byte("the same bytes every time")
	first := Sum(payload)
	second := Sum(payload)
	assert.Equal(t, first, second)
}

func TestSumReaderMatchesSum(t *testing.T) {
	payload := strings.Repeat("bundle content ", 4096)

	d, n, err := SumReader(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, Sum([]byte(payload)), d)
}

func TestSumReaderEmpty(t *testing.T) {
	d, n, err := SumReader(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, Sum(nil), d)
}

func TestParseHexRoundTrip(t *testing.T) {
	d := Sum([]byte("round trip"))
	parsed, ok := ParseHex(d.Hex())
	require.True(t, ok)
	assert.Equal(t, d, parsed)
}

func TestValidHex(t *testing.T) {
	testCases := []struct {
		hash  string
		valid bool
	}{
		{Sum(nil).Hex(), true},
		{"", false},
		{"abc", false},
		{strings.Repeat("g", 64), false},
		{strings.ToUpper(Sum(nil).Hex()), false},
		{Sum(nil).Hex() + "00", false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.valid, ValidHex(tc.hash), "hash %q", tc.hash)
	}
}
