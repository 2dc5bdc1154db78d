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

const channelColumns = `id, project, name, key, public_key_pem, private_key_pem, is_enabled, is_deleted, created_at, updated_at`

func scanChannel(row *sql.Row) (*models.Channel, error) {
	ch := &models.Channel{}
	err := row.Scan(
		&ch.ID, &ch.Project, &ch.Name, &ch.Key,
		&ch.PublicKeyPEM, &ch.PrivateKeyPEM,
		&ch.IsEnabled, &ch.IsDeleted, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return ch, nil
}

// CreateChannel creates a channel with a freshly issued opaque key.
func (s *Store) CreateChannel(ctx context.Context, project, name string) (*models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := uuid.NewString()
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (project, name, key, is_enabled, is_deleted, created_at, updated_at)
		 VALUES (?, ?, ?, TRUE, FALSE, ?, ?)`,
		project, name, key, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return &models.Channel{
		ID:        id,
		Project:   project,
		Name:      name,
		Key:       key,
		IsEnabled: true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetChannelByKey resolves the channel a client addressed by its opaque key.
// Soft-deleted channels are invisible here.
func (s *Store) GetChannelByKey(ctx context.Context, key string) (*models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE key = ? AND is_deleted = FALSE`, key)
	return scanChannel(row)
}

// GetChannel retrieves a channel by id, including soft-deleted ones, for
// operator tooling.
func (s *Store) GetChannel(ctx context.Context, id int64) (*models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	return scanChannel(row)
}

// RegenerateChannelKey issues a new key for a channel, invalidating the old
// one immediately.
func (s *Store) RegenerateChannelKey(ctx context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := uuid.NewString()
	if err := s.updateChannel(ctx, id, `key = ?`, key); err != nil {
		return "", err
	}
	return key, nil
}

// SetChannelSigningKeys configures the RSA key pair used to sign manifests
// served for this channel. Empty strings clear signing.
func (s *Store) SetChannelSigningKeys(ctx context.Context, id int64, publicPEM, privatePEM string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateChannel(ctx, id, `public_key_pem = ?, private_key_pem = ?`, publicPEM, privatePEM)
}

// SetChannelEnabled flips the enabled flag. Disabled channels fail manifest
// checks at the protocol level.
func (s *Store) SetChannelEnabled(ctx context.Context, id int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateChannel(ctx, id, `is_enabled = ?`, enabled)
}

// SoftDeleteChannel marks a channel deleted. Rows are never physically
// removed while updates reference them.
func (s *Store) SoftDeleteChannel(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateChannel(ctx, id, `is_deleted = TRUE`)
}

func (s *Store) updateChannel(ctx context.Context, id int64, set string, args ...interface{}) error {
	args = append(args, time.Now().UTC(), id)
	result, err := s.db.ExecContext(ctx,
		`UPDATE channels SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrChannelNotFound
	}
	return nil
}
