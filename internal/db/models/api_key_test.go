package models

import (
	"testing"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
)

func TestAPIKeyUsability(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	key := NewAPIKey("owner", "name", "hash", "mask", 10)
	assert.True(t, key.IsUsable(now))

	key.ExpiresAt = bun.NullTime{Time: now}
	assert.True(t, key.IsExpired(now))
	assert.False(t, key.IsUsable(now))
	assert.True(t, key.IsUsable(now.Add(-time.Second)))

	key.ExpiresAt = bun.NullTime{}
	key.IsRevoked = true
	assert.False(t, key.IsUsable(now))
}

func TestAPIKeyAllows(t *testing.T) {
	key := NewAPIKey("owner", "name", "hash", "mask", 10)
	key.CanUseAITextDetection = false

	assert.True(t, key.Allows(types.EndpointDeepfake))
	assert.True(t, key.Allows(types.EndpointAIMedia))
	assert.False(t, key.Allows(types.EndpointAIText))
	assert.False(t, key.Allows(types.Endpoint("other")))
}

func TestAPIKeyUsageOn(t *testing.T) {
	key := NewAPIKey("owner", "name", "hash", "mask", 10)
	key.DailyUsage = 7
	key.UsageDate = "2025-03-01"

	assert.Equal(t, 7, key.UsageOn("2025-03-01"))
	assert.Equal(t, 3, key.RemainingOn("2025-03-01"))
	assert.Equal(t, 0, key.UsageOn("2025-03-02"))
	assert.Equal(t, 10, key.RemainingOn("2025-03-02"))

	late := time.Date(2025, 3, 1, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	assert.Equal(t, "2025-03-02", Day(late))
}
