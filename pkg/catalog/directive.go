package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"otacast/pkg/models"
)

// CreateDirectiveParams carries the fields of a new directive. ExpiresAt nil
// means the directive never expires.
type CreateDirectiveParams struct {
	ChannelID      int64
	RuntimeVersion string
	Type           string
	Parameters     map[string]string
	Extra          map[string]string
	ExpiresAt      *time.Time
}

// CreateDirective records a new, immediately active directive.
func (s *Store) CreateDirective(ctx context.Context, params CreateDirectiveParams) (*models.Directive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parametersJSON, err := marshalMap(params.Parameters)
	if err != nil {
		return nil, err
	}
	extraJSON, err := marshalMap(params.Extra)
	if err != nil {
		return nil, err
	}

	var expiresAt sql.NullTime
	if params.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: params.ExpiresAt.UTC(), Valid: true}
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO directives (channel_id, runtime_version, type, parameters, extra, is_active, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, TRUE, ?, ?)`,
		params.ChannelID, params.RuntimeVersion, params.Type, parametersJSON, extraJSON, expiresAt, now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return &models.Directive{
		ID:             id,
		ChannelID:      params.ChannelID,
		RuntimeVersion: params.RuntimeVersion,
		Type:           params.Type,
		Parameters:     params.Parameters,
		Extra:          params.Extra,
		IsActive:       true,
		ExpiresAt:      params.ExpiresAt,
		CreatedAt:      now,
	}, nil
}

const directiveColumns = `id, channel_id, runtime_version, type, parameters, extra, is_active, expires_at, created_at`

func scanDirective(scan func(dest ...interface{}) error) (*models.Directive, error) {
	d := &models.Directive{}
	var (
		parametersJSON sql.NullString
		extraJSON      sql.NullString
		expiresAt      sql.NullTime
	)
	err := scan(&d.ID, &d.ChannelID, &d.RuntimeVersion, &d.Type, &parametersJSON, &extraJSON, &d.IsActive, &expiresAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	if d.Parameters, err = unmarshalMap(parametersJSON); err != nil {
		return nil, err
	}
	if d.Extra, err = unmarshalMap(extraJSON); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		d.ExpiresAt = &t
	}
	return d, nil
}

// ActiveDirective returns the single directive currently governing a
// (channel, runtime version) scope, or nil when none is active. Expiry is
// evaluated here against the given instant, never written back. When several
// directives are simultaneously active the most recently created one wins,
// with the row id as the stable tie-break.
func (s *Store) ActiveDirective(ctx context.Context, channelID int64, runtimeVersion string, now time.Time) (*models.Directive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+directiveColumns+` FROM directives
		 WHERE channel_id = ? AND runtime_version = ? AND is_active = TRUE
		   AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		channelID, runtimeVersion, now.UTC(),
	)

	d, err := scanDirective(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, ErrDatabaseError) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return d, nil
}

// ListDirectives returns all directives of a channel, newest first.
func (s *Store) ListDirectives(ctx context.Context, channelID int64) ([]models.Directive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+directiveColumns+` FROM directives
		 WHERE channel_id = ?
		 ORDER BY created_at DESC, id DESC`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var directives []models.Directive
	for rows.Next() {
		d, scanErr := scanDirective(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, scanErr)
		}
		directives = append(directives, *d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return directives, nil
}

// DeactivateDirective turns a directive off. Takes effect on the next
// resolution call.
func (s *Store) DeactivateDirective(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execDirective(ctx, `UPDATE directives SET is_active = FALSE WHERE id = ?`, id)
}

// DeleteDirective removes a directive entirely.
func (s *Store) DeleteDirective(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execDirective(ctx, `DELETE FROM directives WHERE id = ?`, id)
}

func (s *Store) execDirective(ctx context.Context, query string, id int64) error {
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrDirectiveNotFound
	}
	return nil
}
