package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"otacast/pkg/models"
)

// ValidateRuleValue checks that a rule value matches the shape its type
// requires. Rejected at the boundary before any row is written.
func ValidateRuleValue(ruleType string, value models.RuleValue) error {
	switch ruleType {
	case models.RuleTypePercentage:
		if value.Percentage < 0 || value.Percentage > 100 {
			return fmt.Errorf("%w: percentage %d out of range", ErrInvalidRule, value.Percentage)
		}
	case models.RuleTypeDeviceID:
		if len(value.Include) == 0 {
			return fmt.Errorf("%w: device_id rule requires a non-empty include list", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unknown rule type %q", ErrInvalidRule, ruleType)
	}
	return nil
}

// CreateRule attaches a rollout rule to an update.
func (s *Store) CreateRule(ctx context.Context, updateID, ruleType string, value models.RuleValue, priority int, enabled bool) (*models.RolloutRule, error) {
	if err := ValidateRuleValue(ruleType, value); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to serialize rule value: %w", ErrDatabaseError, err)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO rollout_rules (update_id, type, value, priority, is_enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		updateID, ruleType, string(valueJSON), priority, enabled, now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return &models.RolloutRule{
		ID:        id,
		UpdateID:  updateID,
		Type:      ruleType,
		Value:     value,
		Priority:  priority,
		IsEnabled: enabled,
		CreatedAt: now,
	}, nil
}

// ListRules returns all rules of an update in evaluation order: priority
// descending, creation order (id) ascending on ties.
func (s *Store) ListRules(ctx context.Context, updateID string) ([]models.RolloutRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, update_id, type, value, priority, is_enabled, created_at
		 FROM rollout_rules WHERE update_id = ?
		 ORDER BY priority DESC, id ASC`,
		updateID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var rules []models.RolloutRule
	for rows.Next() {
		var (
			rule      models.RolloutRule
			valueJSON string
		)
		if scanErr := rows.Scan(&rule.ID, &rule.UpdateID, &rule.Type, &valueJSON, &rule.Priority, &rule.IsEnabled, &rule.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, scanErr)
		}
		if unmarshalErr := json.Unmarshal([]byte(valueJSON), &rule.Value); unmarshalErr != nil {
			return nil, fmt.Errorf("%w: failed to parse rule value: %w", ErrDatabaseError, unmarshalErr)
		}
		rules = append(rules, rule)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return rules, nil
}

// DeleteRule removes a rollout rule.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM rollout_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}
