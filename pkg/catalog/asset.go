package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"otacast/pkg/models"
)

// UpsertAsset records an asset by its content digest. If a row with the same
// hash already exists it is returned unchanged: hash equality implies content
// equality, so no re-validation happens. The second return value reports
// whether a new row was created. Two uploads racing on the same digest both
// succeed and land on the single row (UNIQUE on hash plus ON CONFLICT).
func (s *Store) UpsertAsset(ctx context.Context, hash string, size int64, contentType string) (*models.Asset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (hash, size, content_type, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(hash) DO NOTHING`,
		hash, size, contentType, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	asset, err := s.getAssetByHash(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	return asset, affected > 0, nil
}

// GetAssetByHash retrieves an asset record by its content digest.
func (s *Store) GetAssetByHash(ctx context.Context, hash string) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getAssetByHash(ctx, hash)
}

func (s *Store) getAssetByHash(ctx context.Context, hash string) (*models.Asset, error) {
	asset := &models.Asset{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, hash, size, content_type, created_at FROM assets WHERE hash = ?`,
		hash,
	).Scan(&asset.ID, &asset.Hash, &asset.Size, &asset.ContentType, &asset.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return asset, nil
}
