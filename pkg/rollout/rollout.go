// Package rollout decides whether a given device is eligible for a given
// update. Decisions are pure functions of the request and the stored rules,
// so two concurrent checks for the same device always agree without
// coordination.
package rollout

import (
	"crypto/sha256"
	"encoding/binary"
	"slices"
	"sort"

	"otacast/pkg/models"
)

// Request carries the device-side selectors rules can match on.
type Request struct {
	DeviceID string
}

// Bucket maps a (device, update) pair onto [0, 100). The bucket is the
// big-endian uint32 of the first 4 bytes of SHA-256(deviceID + updateID),
// mod 100. The bucket does not depend on the percentage, so raising a
// percentage never evicts an already-included device: eligible at P implies
// eligible at every P' >= P.
func Bucket(deviceID, updateID string) int {
	sum := sha256.Sum256([]byte(deviceID + updateID))
	return int(binary.BigEndian.Uint32(sum[:4]) % 100)
}

// inBucket is the percentage predicate shared by percentage rules and the
// fallback. A device without an identifier cannot be bucketed and is never
// included by a percentage.
func inBucket(deviceID, updateID string, percentage int) bool {
	if deviceID == "" {
		return false
	}
	return Bucket(deviceID, updateID) < percentage
}

// IsEligible evaluates the update's rules against a request. Enabled rules
// run in descending priority (creation order on ties); the first rule that
// decides wins. Device allow-list rules only decide inclusion: a device not
// on the list falls through to the next rule. If no rule decides, the
// update's own rollout percentage with deterministic bucketing is the
// fallback.
func IsEligible(update *models.Update, rules []models.RolloutRule, req Request) bool {
	ordered := make([]models.RolloutRule, 0, len(rules))
	for _, rule := range rules {
		if rule.IsEnabled {
			ordered = append(ordered, rule)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, rule := range ordered {
		if decided, eligible := evaluate(rule, update.ID, req); decided {
			return eligible
		}
	}

	return inBucket(req.DeviceID, update.ID, update.RolloutPercentage)
}

// evaluate runs one rule. decided is false when the rule does not apply to
// this request and evaluation should continue; unknown rule types never
// decide.
func evaluate(rule models.RolloutRule, updateID string, req Request) (decided, eligible bool) {
	switch rule.Type {
	case models.RuleTypeDeviceID:
		if req.DeviceID != "" && slices.Contains(rule.Value.Include, req.DeviceID) {
			return true, true
		}
		return false, false
	case models.RuleTypePercentage:
		return true, inBucket(req.DeviceID, updateID, rule.Value.Percentage)
	default:
		return false, false
	}
}
