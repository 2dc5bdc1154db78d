package models

import "time"

// Check outcomes. These are first-class results of the resolution state
// machine, never error returns.
const (
	OutcomeRollback        = "rollback"
	OutcomeNoUpdate        = "noUpdate"
	OutcomeUpdateAvailable = "updateAvailable"
)

// CheckRequest carries everything a client presents on a manifest check.
// DeviceID and EmbeddedUpdateID are optional.
type CheckRequest struct {
	ChannelKey       string `json:"channel_key"`
	RuntimeVersion   string `json:"runtime_version"`
	Platform         string `json:"platform"`
	DeviceID         string `json:"device_id,omitempty"`
	EmbeddedUpdateID string `json:"embedded_update_id,omitempty"`
}

// ManifestAsset describes one asset referenced by a manifest. Key is the
// URL-safe base64 content digest, URL the path it is served from.
type ManifestAsset struct {
	Key         string `json:"key"`
	Hash        string `json:"hash"`
	ContentType string `json:"contentType"`
	FileName    string `json:"fileName,omitempty"`
	URL         string `json:"url"`
}

// Manifest is the structured description of an update served to a client.
type Manifest struct {
	ID             string            `json:"id"`
	CreatedAt      time.Time         `json:"createdAt"`
	RuntimeVersion string            `json:"runtimeVersion"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	LaunchAsset    ManifestAsset     `json:"launchAsset"`
	Assets         []ManifestAsset   `json:"assets"`
}

// DirectivePayload is the wire form of a directive inside a rollback outcome.
type DirectivePayload struct {
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// CheckResult is the discriminated outcome of a manifest check.
type CheckResult struct {
	Type            string            `json:"type"`
	Directive       *DirectivePayload `json:"directive,omitempty"`
	Manifest        *Manifest         `json:"manifest,omitempty"`
	Signature       string            `json:"signature,omitempty"`
	ManifestFilters string            `json:"manifestFilters,omitempty"`
}
