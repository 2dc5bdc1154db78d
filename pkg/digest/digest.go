// Package digest computes the content digests that key the asset store.
// A digest is the SHA-256 of the payload, exposed as URL-safe unpadded
// base64 (the canonical asset key) and as lowercase hex (used for storage
// paths and external contracts that cannot carry base64).
package digest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
)

// HexLength is the length of a hex-encoded digest.
const HexLength = 64

// Digest is a SHA-256 content digest.
type Digest [sha256.Size]byte

// Sum digests the given bytes. Any byte sequence, including empty, has a
// well-defined digest.
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// SumReader digests a stream, returning the digest and the number of bytes
// read. Used during ingestion so large bundle entries are never buffered
// twice.
func SumReader(r io.Reader) (Digest, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, 0, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, n, nil
}

// Key returns the canonical URL-safe unpadded base64 encoding.
func (d Digest) Key() string {
	return base64.RawURLEncoding.EncodeToString(d[:])
}

// Hex returns the lowercase hex encoding.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// ParseHex decodes a lowercase hex digest. Returns false for anything that
// is not exactly a 64-character hex string.
func ParseHex(s string) (Digest, bool) {
	if len(s) != HexLength {
		return Digest{}, false
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, false
	}
	var d Digest
	copy(d[:], raw)
	return d, true
}

// ValidHex reports whether s is a well-formed lowercase hex digest.
func ValidHex(s string) bool {
	if len(s) != HexLength {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
