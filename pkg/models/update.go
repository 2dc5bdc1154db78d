package models

import "time"

// Platform scopes an asset to a client platform. The empty string means
// platform-neutral.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformNeutral = ""
)

// Update is one published bundle revision for a channel at a specific
// runtime version. Rows are never mutated in place except for counters,
// enablement and rollout settings.
type Update struct {
	ID                string            `json:"id"`
	ChannelID         int64             `json:"channel_id"`
	RuntimeVersion    string            `json:"runtime_version"`
	IsEnabled         bool              `json:"is_enabled"`
	RolloutPercentage int               `json:"rollout_percentage"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	DownloadCount     int64             `json:"download_count"`
	InstallCount      int64             `json:"install_count"`
	CreatedAt         time.Time         `json:"created_at"`
}
