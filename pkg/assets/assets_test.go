package assets

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otacast/pkg/blob"
	"otacast/pkg/catalog"
	"otacast/pkg/digest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()

	catalogStore, err := catalog.NewStore(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalogStore.Close() })

	blobStore, err := blob.New(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	return New(catalogStore, blobStore)
}

func TestPutAndGetContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	content := []byte("var x = 1;")
	asset, err := s.Put(ctx, content, "application/javascript")
	require.NoError(t, err)
	assert.Equal(t, digest.Sum(content).Hex(), asset.Hash)
	assert.Equal(t, int64(len(content)), asset.Size)

	got, err := s.GetContent(ctx, asset.Hash)
	require.NoError(t, err)
	defer got.Reader.Close()

	assert.Equal(t, "application/javascript", got.ContentType)
	assert.Equal(t, int64(len(content)), got.Size)

	data, err := io.ReadAll(got.Reader)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestPutIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	content := []byte("identical bytes")

	first, err := s.Put(ctx, content, "application/octet-stream")
	require.NoError(t, err)

	// Same bytes under a different declared type reuse the same record.
	second, err := s.Put(ctx, content, "text/plain")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, "application/octet-stream", second.ContentType)
}

func TestGetContentNotFound(t *testing.T) {
	s := newTestStore(t)

	missing := digest.Sum([]byte("never uploaded")).Hex()
	_, err := s.GetContent(context.Background(), missing)

	var notFound NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, missing, notFound.Hash)
}

func TestPutEmptyContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	asset, err := s.Put(ctx, nil, "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, digest.Sum(nil).Hex(), asset.Hash)
	assert.Equal(t, int64(0), asset.Size)

	got, err := s.GetContent(ctx, asset.Hash)
	require.NoError(t, err)
	defer got.Reader.Close()
	assert.Equal(t, int64(0), got.Size)
}
