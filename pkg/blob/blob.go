// Package blob stores binary content on the local filesystem keyed by the
// hex content digest. Content at a given digest never changes, so writes are
// idempotent and reads never race a partial write: content lands in a temp
// file first and is renamed into place.
package blob

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"otacast/pkg/digest"
	"otacast/pkg/log"
)

const dirPerm = 0750

// NotFoundError is returned when no content exists for a digest.
type NotFoundError struct {
	Hash string
}

func (e NotFoundError) Error() string {
	return "content not found"
}

// InvalidHashError is returned when a digest has invalid format.
type InvalidHashError struct {
	Hash string
}

func (e InvalidHashError) Error() string {
	return "invalid content hash"
}

// MismatchError is returned when streamed content does not hash to the
// digest it was stored under.
type MismatchError struct {
	Want string
	Got  string
}

func (e MismatchError) Error() string {
	return "content does not match digest"
}

// Store is a filesystem-backed content store.
type Store struct {
	dir string
}

// New creates a store rooted at dir. The directory is created if missing.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// contentPath shards content into two directory levels so no single
// directory accumulates millions of entries: dir/ab/cd/<rest-of-hash>.
func (s *Store) contentPath(hash string) string {
	return filepath.Join(s.dir, hash[:2], hash[2:4], hash[4:])
}

// Write persists content for the given hex digest. Writing a digest that
// already exists is a no-op: content addressing guarantees the bytes are
// identical. The stream is re-hashed on the way in and rejected with a
// MismatchError if it does not produce the claimed digest.
func (s *Store) Write(hash string, r io.Reader) error {
	exists, err := s.Exists(hash)
	if err != nil {
		return err
	}
	if exists {
		log.Debug().Str("hash", hash).Msg("Content already stored")
		return nil
	}

	target := s.contentPath(hash)
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".blob-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	sum, _, err := digest.SumReader(io.TeeReader(r, tmp))
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if sum.Hex() != hash {
		_ = os.Remove(tmpName)
		return MismatchError{Want: hash, Got: sum.Hex()}
	}

	// Rename is atomic within a filesystem; a concurrent writer of the same
	// digest just wins the race with identical bytes.
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	log.Debug().Str("hash", hash).Msg("Content stored")
	return nil
}

// Open returns a reader over the content for a digest along with its size.
// The caller owns closing the reader.
func (s *Store) Open(hash string) (io.ReadCloser, int64, error) {
	if !digest.ValidHex(hash) {
		return nil, 0, InvalidHashError{Hash: hash}
	}

	f, err := os.Open(s.contentPath(hash))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, NotFoundError{Hash: hash}
	}
	if err != nil {
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}

	return f, info.Size(), nil
}

// Exists reports whether content is stored for a digest.
func (s *Store) Exists(hash string) (bool, error) {
	if !digest.ValidHex(hash) {
		return false, InvalidHashError{Hash: hash}
	}

	_, err := os.Stat(s.contentPath(hash))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes content for a digest. Only garbage collection calls this;
// the serving path never deletes.
func (s *Store) Delete(hash string) error {
	if !digest.ValidHex(hash) {
		return InvalidHashError{Hash: hash}
	}

	err := os.Remove(s.contentPath(hash))
	if errors.Is(err, fs.ErrNotExist) {
		return NotFoundError{Hash: hash}
	}
	return err
}
