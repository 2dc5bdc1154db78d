package rollout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"otacast/pkg/models"
)

const testUpdateID = "11111111-1111-1111-1111-111111111111"

// TestBucketPinned pins the bucketing function: big-endian uint32 of the
// first 4 bytes of SHA-256(deviceID + updateID), mod 100. These values must
// never change, or staged rollouts flap across deploys.
func TestBucketPinned(t *testing.T) {
	testCases := []struct {
		deviceID string
		updateID string
		bucket   int
	}{
		{"device-a", "11111111-1111-1111-1111-111111111111", 49},
		{"device-b", "11111111-1111-1111-1111-111111111111", 74},
		{"device-c", "11111111-1111-1111-1111-111111111111", 64},
		{"device-a", "22222222-2222-2222-2222-222222222222", 90},
		{"alpha", "upd-1", 23},
		{"delta", "upd-1", 86},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.bucket, Bucket(tc.deviceID, tc.updateID),
			"bucket(%s, %s)", tc.deviceID, tc.updateID)
	}
}

func TestBucketDeterministic(t *testing.T) {
	for range 100 {
		assert.Equal(t, Bucket("device-a", testUpdateID), Bucket("device-a", testUpdateID))
	}
}

func update(percentage int) *models.Update {
	return &models.Update{ID: testUpdateID, RolloutPercentage: percentage}
}

func TestFallbackPercentageEdges(t *testing.T) {
	req := Request{DeviceID: "device-a"}

	assert.False(t, IsEligible(update(0), nil, req), "nobody at 0%%")
	assert.True(t, IsEligible(update(100), nil, req), "everybody at 100%%")

	// device-a buckets to 49 for this update.
	assert.False(t, IsEligible(update(49), nil, req))
	assert.True(t, IsEligible(update(50), nil, req))
}

// TestMonotonicity checks that a device eligible at percentage P stays
// eligible at every percentage above P.
func TestMonotonicity(t *testing.T) {
	for deviceIdx := range 50 {
		deviceID := fmt.Sprintf("device-%04d", deviceIdx)
		enrolledAt := -1
		for percentage := 0; percentage <= 100; percentage++ {
			eligible := IsEligible(update(percentage), nil, Request{DeviceID: deviceID})
			if eligible && enrolledAt == -1 {
				enrolledAt = percentage
			}
			if enrolledAt != -1 {
				assert.True(t, eligible,
					"device %s enrolled at %d fell out at %d", deviceID, enrolledAt, percentage)
			}
		}
	}
}

// TestUniformDistribution checks statistical spread: 10,000 devices against
// a 50% rollout should land near half.
func TestUniformDistribution(t *testing.T) {
	upd := update(50)
	eligibleCount := 0
	for deviceIdx := range 10000 {
		if IsEligible(upd, nil, Request{DeviceID: fmt.Sprintf("device-%05d", deviceIdx)}) {
			eligibleCount++
		}
	}
	assert.Greater(t, eligibleCount, 4500, "eligible count %d below tolerance", eligibleCount)
	assert.Less(t, eligibleCount, 5500, "eligible count %d above tolerance", eligibleCount)
}

func TestMissingDeviceID(t *testing.T) {
	req := Request{}

	// Cannot bucket an unknown device.
	assert.False(t, IsEligible(update(100), nil, req))

	rules := []models.RolloutRule{
		{ID: 1, Type: models.RuleTypePercentage, Value: models.RuleValue{Percentage: 100}, IsEnabled: true},
	}
	assert.False(t, IsEligible(update(0), rules, req))
}

// TestRulePriority checks that an allow-list rule at higher priority decides
// before a 0% percentage rule, and that devices off the list fall through.
func TestRulePriority(t *testing.T) {
	rules := []models.RolloutRule{
		{ID: 1, Type: models.RuleTypeDeviceID, Value: models.RuleValue{Include: []string{"vip-device"}}, Priority: 100, IsEnabled: true},
		{ID: 2, Type: models.RuleTypePercentage, Value: models.RuleValue{Percentage: 0}, Priority: 50, IsEnabled: true},
	}

	assert.True(t, IsEligible(update(0), rules, Request{DeviceID: "vip-device"}))
	assert.False(t, IsEligible(update(100), rules, Request{DeviceID: "ordinary-device"}),
		"device off the list must be decided by the 0%% rule, not the fallback")
}

func TestDisabledRulesSkipped(t *testing.T) {
	rules := []models.RolloutRule{
		{ID: 1, Type: models.RuleTypePercentage, Value: models.RuleValue{Percentage: 0}, Priority: 100, IsEnabled: false},
	}
	assert.True(t, IsEligible(update(100), rules, Request{DeviceID: "device-a"}))
}

func TestRuleOrderIndependentOfSliceOrder(t *testing.T) {
	allowRule := models.RolloutRule{ID: 2, Type: models.RuleTypeDeviceID, Value: models.RuleValue{Include: []string{"device-a"}}, Priority: 100, IsEnabled: true}
	blockRule := models.RolloutRule{ID: 1, Type: models.RuleTypePercentage, Value: models.RuleValue{Percentage: 0}, Priority: 50, IsEnabled: true}

	// Priority ordering happens inside IsEligible, whatever order rows arrive in.
	assert.True(t, IsEligible(update(0), []models.RolloutRule{blockRule, allowRule}, Request{DeviceID: "device-a"}))
}

func TestUnknownRuleTypeNeverDecides(t *testing.T) {
	rules := []models.RolloutRule{
		{ID: 1, Type: "geo_fence", Value: models.RuleValue{}, Priority: 100, IsEnabled: true},
		{ID: 2, Type: models.RuleTypePercentage, Value: models.RuleValue{Percentage: 100}, Priority: 50, IsEnabled: true},
	}
	assert.True(t, IsEligible(update(0), rules, Request{DeviceID: "device-a"}))
}
