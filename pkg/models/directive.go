package models

import "time"

// DirectiveRollBackToEmbedded instructs clients to discard all hot updates
// and boot the bundle embedded in the native binary.
const DirectiveRollBackToEmbedded = "rollBackToEmbedded"

// Directive is a channel-and-runtime-scoped override instruction. An active,
// unexpired directive pre-empts all update resolution for its scope.
type Directive struct {
	ID             int64             `json:"id"`
	ChannelID      int64             `json:"channel_id"`
	RuntimeVersion string            `json:"runtime_version"`
	Type           string            `json:"type"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
	IsActive       bool              `json:"is_active"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Expired reports whether the directive's expiry has passed at the given
// instant. Expiry is derived at read time and never written back.
func (d *Directive) Expired(now time.Time) bool {
	return d.ExpiresAt != nil && !d.ExpiresAt.After(now)
}
