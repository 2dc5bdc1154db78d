package signing

import (
	"regexp"
	"sort"
	"strings"
)

// sfvKeyPattern restricts dictionary keys to the characters the filter
// header contract allows.
var sfvKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidSFVKey reports whether a key may appear in an SFV dictionary.
func ValidSFVKey(key string) bool {
	return sfvKeyPattern.MatchString(key)
}

// EncodeDictionary serializes a flat string dictionary as
// `key="value", key2="value2"`, escaping backslash and double quote inside
// values. Keys are emitted in sorted order so the encoding is deterministic.
// Keys with invalid characters are skipped.
func EncodeDictionary(dict map[string]string) string {
	keys := make([]string, 0, len(dict))
	for key := range dict {
		if ValidSFVKey(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(key)
		b.WriteString(`="`)
		b.WriteString(escapeSFVValue(dict[key]))
		b.WriteString(`"`)
	}
	return b.String()
}

func escapeSFVValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `"`, `\"`)
}

// DecodeDictionary parses an SFV dictionary string. Malformed pairs are
// skipped rather than failing the whole parse; whatever well-formed pairs
// can be recovered are returned. Empty or all-whitespace input yields an
// empty dictionary.
func DecodeDictionary(input string) map[string]string {
	dict := make(map[string]string)

	for _, member := range splitMembers(input) {
		key, value, ok := decodeMember(member)
		if ok && ValidSFVKey(key) {
			dict[key] = value
		}
	}
	return dict
}

// splitMembers splits the dictionary on commas outside quoted values, so
// values containing commas stay intact.
func splitMembers(input string) []string {
	var (
		members  []string
		start    int
		inQuotes bool
	)
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '\\':
			if inQuotes && i+1 < len(input) {
				i++
			}
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				members = append(members, input[start:i])
				start = i + 1
			}
		}
	}
	members = append(members, input[start:])
	return members
}

// decodeMember parses one `key="value"` member, unescaping the value. ok is
// false for anything malformed: no '=', unquoted value, unterminated quote,
// or trailing garbage after the closing quote.
func decodeMember(member string) (key, value string, ok bool) {
	member = strings.TrimSpace(member)
	if member == "" {
		return "", "", false
	}

	eq := strings.IndexByte(member, '=')
	if eq < 0 {
		return "", "", false
	}

	key = strings.TrimSpace(member[:eq])
	raw := strings.TrimSpace(member[eq+1:])
	if len(raw) < 2 || raw[0] != '"' {
		return "", "", false
	}

	var b strings.Builder
	for i := 1; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			if i+1 >= len(raw) {
				return "", "", false
			}
			i++
			b.WriteByte(raw[i])
		case '"':
			if i != len(raw)-1 {
				return "", "", false
			}
			return key, b.String(), true
		default:
			b.WriteByte(raw[i])
		}
	}
	return "", "", false
}

// ManifestFilters projects metadata onto filterKeys (or all metadata keys if
// none are given), drops keys absent from the metadata, and serializes the
// projection. An empty projection yields an empty string, not an empty
// dictionary literal.
func ManifestFilters(metadata map[string]string, filterKeys ...string) string {
	if len(metadata) == 0 {
		return ""
	}

	projection := metadata
	if len(filterKeys) > 0 {
		projection = make(map[string]string, len(filterKeys))
		for _, key := range filterKeys {
			if value, present := metadata[key]; present {
				projection[key] = value
			}
		}
	}

	if len(projection) == 0 {
		return ""
	}
	return EncodeDictionary(projection)
}
