package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"otacast/pkg/models"
)

// UpdateAssetParams describes one asset reference created alongside an update.
type UpdateAssetParams struct {
	AssetID  int64
	Platform string
	IsLaunch bool
	FileName string
}

// CreateUpdateParams carries everything needed to publish an update.
type CreateUpdateParams struct {
	ChannelID         int64
	RuntimeVersion    string
	RolloutPercentage int
	Metadata          map[string]string
	Assets            []UpdateAssetParams
}

// UpdateAssetInfo is an update_assets row joined with its asset, as consumed
// by manifest assembly.
type UpdateAssetInfo struct {
	Platform    string
	IsLaunch    bool
	FileName    string
	Hash        string
	Size        int64
	ContentType string
}

// CreateUpdate publishes an update together with its asset references in a
// single transaction. A failure leaves no partial rows.
func (s *Store) CreateUpdate(ctx context.Context, params CreateUpdateParams) (*models.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, err := marshalMap(params.Metadata)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO updates (id, channel_id, runtime_version, is_enabled, rollout_percentage, metadata, created_at)
			 VALUES (?, ?, ?, TRUE, ?, ?, ?)`,
			id, params.ChannelID, params.RuntimeVersion, params.RolloutPercentage, metadataJSON, now,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}

		for _, assetParams := range params.Assets {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO update_assets (update_id, asset_id, platform, is_launch, file_name)
				 VALUES (?, ?, ?, ?, ?)`,
				id, assetParams.AssetID, assetParams.Platform, assetParams.IsLaunch, assetParams.FileName,
			)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrDatabaseError, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.Update{
		ID:                id,
		ChannelID:         params.ChannelID,
		RuntimeVersion:    params.RuntimeVersion,
		IsEnabled:         true,
		RolloutPercentage: params.RolloutPercentage,
		Metadata:          params.Metadata,
		CreatedAt:         now,
	}, nil
}

const updateColumns = `id, channel_id, runtime_version, is_enabled, rollout_percentage, metadata, download_count, install_count, created_at`

func scanUpdate(scan func(dest ...interface{}) error) (*models.Update, error) {
	upd := &models.Update{}
	var metadataJSON sql.NullString
	err := scan(
		&upd.ID, &upd.ChannelID, &upd.RuntimeVersion, &upd.IsEnabled,
		&upd.RolloutPercentage, &metadataJSON,
		&upd.DownloadCount, &upd.InstallCount, &upd.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	upd.Metadata, err = unmarshalMap(metadataJSON)
	if err != nil {
		return nil, err
	}
	return upd, nil
}

// GetUpdate retrieves an update by id.
func (s *Store) GetUpdate(ctx context.Context, id string) (*models.Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+updateColumns+` FROM updates WHERE id = ?`, id)

	upd, err := scanUpdate(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUpdateNotFound
	}
	if err != nil {
		if errors.Is(err, ErrDatabaseError) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return upd, nil
}

// ListEnabledUpdates returns the enabled updates for a channel and runtime
// version, newest first. These are the resolution candidates.
func (s *Store) ListEnabledUpdates(ctx context.Context, channelID int64, runtimeVersion string) ([]models.Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+updateColumns+` FROM updates
		 WHERE channel_id = ? AND runtime_version = ? AND is_enabled = TRUE
		 ORDER BY created_at DESC, rowid DESC`,
		channelID, runtimeVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var updates []models.Update
	for rows.Next() {
		upd, scanErr := scanUpdate(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, scanErr)
		}
		updates = append(updates, *upd)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return updates, nil
}

// ListUpdateAssets returns the assets referenced by an update, joined with
// their content records.
func (s *Store) ListUpdateAssets(ctx context.Context, updateID string) ([]UpdateAssetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT ua.platform, ua.is_launch, ua.file_name, a.hash, a.size, a.content_type
		 FROM update_assets ua
		 INNER JOIN assets a ON a.id = ua.asset_id
		 WHERE ua.update_id = ?
		 ORDER BY ua.id`,
		updateID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var infos []UpdateAssetInfo
	for rows.Next() {
		var info UpdateAssetInfo
		if scanErr := rows.Scan(&info.Platform, &info.IsLaunch, &info.FileName, &info.Hash, &info.Size, &info.ContentType); scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, scanErr)
		}
		infos = append(infos, info)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return infos, nil
}

// SetUpdateEnabled flips an update's enabled flag. Disabling removes it from
// candidate selection on the next check.
func (s *Store) SetUpdateEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateUpdate(ctx, id, `is_enabled = ?`, enabled)
}

// SetUpdateRollout changes the fallback rollout percentage.
func (s *Store) SetUpdateRollout(ctx context.Context, id string, percentage int) error {
	if percentage < 0 || percentage > 100 {
		return fmt.Errorf("%w: rollout percentage %d out of range", ErrInvalidRule, percentage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateUpdate(ctx, id, `rollout_percentage = ?`, percentage)
}

// IncrementDownloadCount bumps the served-manifest counter.
func (s *Store) IncrementDownloadCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateUpdate(ctx, id, `download_count = download_count + 1`)
}

// IncrementInstallCount bumps the client-reported install counter.
func (s *Store) IncrementInstallCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateUpdate(ctx, id, `install_count = install_count + 1`)
}

func (s *Store) updateUpdate(ctx context.Context, id string, set string, args ...interface{}) error {
	args = append(args, id)
	result, err := s.db.ExecContext(ctx,
		`UPDATE updates SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrUpdateNotFound
	}
	return nil
}
