package models

import "time"

// Rollout rule types. Unknown types are skipped during evaluation so newer
// operators can attach rule types older servers do not understand yet.
const (
	RuleTypePercentage = "percentage"
	RuleTypeDeviceID   = "device_id"
)

// RuleValue is the type-specific payload of a rollout rule. Percentage rules
// use Percentage, device allow-list rules use Include.
type RuleValue struct {
	Percentage int      `json:"percentage,omitempty"`
	Include    []string `json:"include,omitempty"`
}

// RolloutRule is an ordered eligibility rule attached to an update. Rules are
// evaluated in descending priority order; the first rule that decides wins.
type RolloutRule struct {
	ID        int64     `json:"id"`
	UpdateID  string    `json:"update_id"`
	Type      string    `json:"type"`
	Value     RuleValue `json:"value"`
	Priority  int       `json:"priority"`
	IsEnabled bool      `json:"is_enabled"`
	CreatedAt time.Time `json:"created_at"`
}
