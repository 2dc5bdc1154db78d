package models

import "time"

// Channel is a named deployment target that clients address by an opaque key.
// The key is immutable once issued; regenerating it invalidates the old one.
type Channel struct {
	ID            int64     `json:"id"`
	Project       string    `json:"project"`
	Name          string    `json:"name"`
	Key           string    `json:"key"`
	PublicKeyPEM  string    `json:"-"`
	PrivateKeyPEM string    `json:"-"`
	IsEnabled     bool      `json:"is_enabled"`
	IsDeleted     bool      `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SigningEnabled reports whether manifests served for this channel are signed.
func (c *Channel) SigningEnabled() bool {
	return c.PrivateKeyPEM != ""
}
