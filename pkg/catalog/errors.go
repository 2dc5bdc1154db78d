package catalog

import "errors"

var (
	// ErrChannelNotFound is returned when no channel matches the given key or id.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrUpdateNotFound is returned when the requested update does not exist.
	ErrUpdateNotFound = errors.New("update not found")

	// ErrAssetNotFound is returned when the requested asset does not exist.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrRuleNotFound is returned when the requested rollout rule does not exist.
	ErrRuleNotFound = errors.New("rollout rule not found")

	// ErrDirectiveNotFound is returned when the requested directive does not exist.
	ErrDirectiveNotFound = errors.New("directive not found")

	// ErrInvalidRule is returned when a rule value does not match its type.
	ErrInvalidRule = errors.New("invalid rollout rule")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("database error")
)
