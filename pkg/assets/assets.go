// Package assets is the content-addressed asset store: the catalog row and
// the blob bytes behind one contract. Dedup is by content digest, so storing
// the same bytes twice costs one row and one blob, ever.
package assets

import (
	"bytes"
	"context"
	"errors"
	"io"

	"otacast/pkg/blob"
	"otacast/pkg/catalog"
	"otacast/pkg/digest"
	"otacast/pkg/log"
	"otacast/pkg/models"
)

// NotFoundError is returned when no asset exists for a digest.
type NotFoundError struct {
	Hash string
}

func (e NotFoundError) Error() string {
	return "asset not found"
}

// Content is stored asset content ready to be served. The caller owns
// closing the reader.
type Content struct {
	Reader      io.ReadCloser
	ContentType string
	Size        int64
}

// Store combines the catalog asset table with the blob store.
type Store struct {
	catalog *catalog.Store
	blobs   *blob.Store
}

// New creates an asset store over the given catalog and blob store.
func New(catalogStore *catalog.Store, blobStore *blob.Store) *Store {
	return &Store{catalog: catalogStore, blobs: blobStore}
}

// Put stores content and returns its asset record. If an asset with the same
// digest already exists the existing record is returned and no bytes are
// written: hash equality implies content equality.
func (s *Store) Put(ctx context.Context, content []byte, contentType string) (*models.Asset, error) {
	hash := digest.Sum(content).Hex()

	// Bytes land before the row: a failure here leaves at worst an orphan
	// blob for garbage collection, never a row pointing at missing content.
	// The write is a no-op when the blob already exists.
	if err := s.blobs.Write(hash, bytes.NewReader(content)); err != nil {
		return nil, err
	}

	asset, created, err := s.catalog.UpsertAsset(ctx, hash, int64(len(content)), contentType)
	if err != nil {
		return nil, err
	}
	if created {
		log.Debug().Str("hash", hash).Int("size", len(content)).Msg("Asset stored")
	}

	return asset, nil
}

// GetContent retrieves stored content by its hex digest.
func (s *Store) GetContent(ctx context.Context, hash string) (*Content, error) {
	asset, err := s.catalog.GetAssetByHash(ctx, hash)
	if errors.Is(err, catalog.ErrAssetNotFound) {
		return nil, NotFoundError{Hash: hash}
	}
	if err != nil {
		return nil, err
	}

	reader, size, err := s.blobs.Open(hash)
	var notFound blob.NotFoundError
	if errors.As(err, &notFound) {
		return nil, NotFoundError{Hash: hash}
	}
	if err != nil {
		return nil, err
	}

	return &Content{
		Reader:      reader,
		ContentType: asset.ContentType,
		Size:        size,
	}, nil
}
