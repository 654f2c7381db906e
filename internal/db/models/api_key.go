package models

import (
	"time"

	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DayLayout is the format of APIKey.UsageDate.
const DayLayout = "2006-01-02"

type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:k"`

	ID      uuid.UUID `bun:",type:uuid,pk"`
	OwnerID string    `bun:",notnull"`
	Name    string    `bun:",notnull"`
	KeyHash string    `bun:",notnull,unique"`
	KeyMask string    `bun:",notnull"`

	DailyLimit int    `bun:",notnull"`
	DailyUsage int    `bun:",notnull,default:0"`
	UsageDate  string `bun:",notnull,default:''"`

	CanUseDeepfakeDetection bool `bun:"can_use_deepfake_detection,notnull"`
	CanUseAITextDetection   bool `bun:"can_use_ai_text_detection,notnull"`
	CanUseAIMediaDetection  bool `bun:"can_use_ai_media_detection,notnull"`

	IsRevoked bool         `bun:",notnull,default:false"`
	RevokedAt bun.NullTime `bun:",nullzero"`

	ExpiresAt  bun.NullTime `bun:",nullzero"`
	LastUsedAt bun.NullTime `bun:",nullzero"`
	CreatedAt  time.Time    `bun:",notnull"`
}

func NewAPIKey(ownerID, name, keyHash, keyMask string, dailyLimit int) *APIKey {
	return &APIKey{
		ID:                      uuid.Must(uuid.NewRandom()),
		OwnerID:                 ownerID,
		Name:                    name,
		KeyHash:                 keyHash,
		KeyMask:                 keyMask,
		DailyLimit:              dailyLimit,
		CanUseDeepfakeDetection: true,
		CanUseAITextDetection:   true,
		CanUseAIMediaDetection:  true,
		CreatedAt:               time.Now().UTC(),
	}
}

// Day returns the UTC calendar day t falls on, in UsageDate form.
func Day(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

func (k *APIKey) IsExpired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && !now.Before(k.ExpiresAt.Time)
}

func (k *APIKey) IsUsable(now time.Time) bool {
	return !k.IsRevoked && !k.IsExpired(now)
}

func (k *APIKey) Allows(endpoint types.Endpoint) bool {
	switch endpoint {
	case types.EndpointDeepfake:
		return k.CanUseDeepfakeDetection
	case types.EndpointAIText:
		return k.CanUseAITextDetection
	case types.EndpointAIMedia:
		return k.CanUseAIMediaDetection
	}
	return false
}

// UsageOn is the number of admissions charged on day. A stored counter from
// an earlier day reads as zero.
func (k *APIKey) UsageOn(day string) int {
	if k.UsageDate != day {
		return 0
	}
	return k.DailyUsage
}

func (k *APIKey) RemainingOn(day string) int {
	remaining := k.DailyLimit - k.UsageOn(day)
	if remaining < 0 {
		return 0
	}
	return remaining
}
