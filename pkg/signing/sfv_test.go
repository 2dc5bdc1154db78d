package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDictionary(t *testing.T) {
	out := EncodeDictionary(map[string]string{
		"branch":  "main",
		"channel": "production",
	})
	assert.Equal(t, `branch="main", channel="production"`, out)
}

func TestEncodeDictionaryEscaping(t *testing.T) {
	out := EncodeDictionary(map[string]string{
		"note": `say "hi" \ bye`,
	})
	assert.Equal(t, `note="say \"hi\" \\ bye"`, out)
}

func TestEncodeDictionarySkipsInvalidKeys(t *testing.T) {
	out := EncodeDictionary(map[string]string{
		"ok":      "1",
		"bad key": "2",
		"bad,key": "3",
	})
	assert.Equal(t, `ok="1"`, out)
}

func TestDecodeDictionaryRoundTrip(t *testing.T) {
	dict := map[string]string{
		"branch":     "release/1.2",
		"commit.sha": "abc123",
		"note":       `quoted "value" with \ and , comma`,
		"empty":      "",
	}

	decoded := DecodeDictionary(EncodeDictionary(dict))
	assert.Equal(t, dict, decoded)
}

func TestDecodeDictionaryEmptyInput(t *testing.T) {
	assert.Empty(t, DecodeDictionary(""))
	assert.Empty(t, DecodeDictionary("   \t "))
}

func TestDecodeDictionaryTolerantOfMalformedPairs(t *testing.T) {
	testCases := []struct {
		input    string
		expected map[string]string
	}{
		{`a="1", garbage, b="2"`, map[string]string{"a": "1", "b": "2"}},
		{`a="1", b=unquoted, c="3"`, map[string]string{"a": "1", "c": "3"}},
		{`a="unterminated`, map[string]string{}},
		{`a="1" trailing, b="2"`, map[string]string{"b": "2"}},
		{`=,=,=`, map[string]string{}},
		{`bad key="1", good="2"`, map[string]string{"good": "2"}},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, DecodeDictionary(tc.input), "input %q", tc.input)
	}
}

func TestManifestFiltersProjection(t *testing.T) {
	metadata := map[string]string{
		"branch":  "main",
		"channel": "production",
		"commit":  "abc123",
	}

	// All keys when none specified.
	assert.Equal(t,
		`branch="main", channel="production", commit="abc123"`,
		ManifestFilters(metadata))

	// Projection onto requested keys, absent ones dropped.
	assert.Equal(t,
		`branch="main"`,
		ManifestFilters(metadata, "branch", "nonexistent"))
}

func TestManifestFiltersEmpty(t *testing.T) {
	assert.Equal(t, "", ManifestFilters(nil))
	assert.Equal(t, "", ManifestFilters(map[string]string{}))
	assert.Equal(t, "", ManifestFilters(map[string]string{"a": "1"}, "missing"))
}
