package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/api/middleware"
	"github.com/dmi-project/dmi-gateway/internal/db/models"
	"github.com/dmi-project/dmi-gateway/internal/services/keys"
	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultUsageLimit = 50
	maxUsageLimit     = 500
)

type KeyResponse struct {
	ID                      string     `json:"id"`
	Name                    string     `json:"name"`
	KeyMask                 string     `json:"key_mask"`
	Key                     string     `json:"key,omitempty"`
	DailyLimit              int        `json:"daily_limit"`
	DailyUsage              int        `json:"daily_usage"`
	Remaining               int        `json:"remaining"`
	CanUseDeepfakeDetection bool       `json:"can_use_deepfake_detection"`
	CanUseAITextDetection   bool       `json:"can_use_ai_text_detection"`
	CanUseAIMediaDetection  bool       `json:"can_use_ai_media_detection"`
	IsRevoked               bool       `json:"is_revoked"`
	RevokedAt               *time.Time `json:"revoked_at,omitempty"`
	ExpiresAt               *time.Time `json:"expires_at,omitempty"`
	LastUsedAt              *time.Time `json:"last_used_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

type UsageResponse struct {
	ID             string    `json:"id"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	Code           string    `json:"code"`
	Success        bool      `json:"success"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type createKeyRequest struct {
	Name                    string `json:"name"`
	DailyLimit              *int   `json:"daily_limit"`
	ExpiresDays             *int   `json:"expires_days"`
	CanUseDeepfakeDetection *bool  `json:"can_use_deepfake_detection"`
	CanUseAITextDetection   *bool  `json:"can_use_ai_text_detection"`
	CanUseAIMediaDetection  *bool  `json:"can_use_ai_media_detection"`
}

type updateKeyRequest struct {
	Name                    *string `json:"name"`
	DailyLimit              *int    `json:"daily_limit"`
	CanUseDeepfakeDetection *bool   `json:"can_use_deepfake_detection"`
	CanUseAITextDetection   *bool   `json:"can_use_ai_text_detection"`
	CanUseAIMediaDetection  *bool   `json:"can_use_ai_media_detection"`
}

func optionalTime(t bun.NullTime) *time.Time {
	if t.IsZero() {
		return nil
	}
	value := t.Time
	return &value
}

func newKeyResponse(key *models.APIKey, now time.Time) KeyResponse {
	day := models.Day(now)
	return KeyResponse{
		ID:                      key.ID.String(),
		Name:                    key.Name,
		KeyMask:                 key.KeyMask,
		DailyLimit:              key.DailyLimit,
		DailyUsage:              key.UsageOn(day),
		Remaining:               key.RemainingOn(day),
		CanUseDeepfakeDetection: key.CanUseDeepfakeDetection,
		CanUseAITextDetection:   key.CanUseAITextDetection,
		CanUseAIMediaDetection:  key.CanUseAIMediaDetection,
		IsRevoked:               key.IsRevoked,
		RevokedAt:               optionalTime(key.RevokedAt),
		ExpiresAt:               optionalTime(key.ExpiresAt),
		LastUsedAt:              optionalTime(key.LastUsedAt),
		CreatedAt:               key.CreatedAt,
	}
}

func newUsageResponse(entry *models.UsageEntry) UsageResponse {
	return UsageResponse{
		ID:             entry.ID.String(),
		Endpoint:       entry.Endpoint,
		Method:         entry.Method,
		Code:           entry.Code,
		Success:        entry.Success,
		StatusCode:     entry.StatusCode,
		ResponseTimeMs: entry.ResponseTimeMs,
		IPAddress:      entry.IPAddress,
		UserAgent:      entry.UserAgent,
		CreatedAt:      entry.CreatedAt,
	}
}

// keyID reads the :id path parameter. Malformed ids cannot name any key.
func keyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, types.NewError(types.CodeKeyNotFound, ""))
		return uuid.Nil, false
	}
	return id, true
}

func ListKeys(c *gin.Context) {
	app := getApp(c)

	list, err := app.Keys.List(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	result := make([]KeyResponse, 0, len(list))
	for i := range list {
		result = append(result, newKeyResponse(&list[i], now))
	}
	respondOK(c, http.StatusOK, result)
}

func CreateKey(c *gin.Context) {
	app := getApp(c)

	// an empty body creates a key with every default
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, types.NewError(types.CodeKeyInvalidRequest, "Invalid request body."))
		return
	}

	key, secret, err := app.Keys.Create(c.Request.Context(), keys.CreateParams{
		OwnerID:                 middleware.OwnerID(c),
		Name:                    req.Name,
		DailyLimit:              req.DailyLimit,
		ExpiresInDays:           req.ExpiresDays,
		CanUseDeepfakeDetection: req.CanUseDeepfakeDetection,
		CanUseAITextDetection:   req.CanUseAITextDetection,
		CanUseAIMediaDetection:  req.CanUseAIMediaDetection,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	result := newKeyResponse(key, time.Now())
	result.Key = secret
	respondOK(c, http.StatusCreated, result)
}

func GetKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}

	key, err := getApp(c).Keys.Get(c.Request.Context(), middleware.OwnerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, newKeyResponse(key, time.Now()))
}

func UpdateKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}

	var req updateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.CodeKeyInvalidRequest, "Invalid request body."))
		return
	}

	key, err := getApp(c).Keys.Update(c.Request.Context(), middleware.OwnerID(c), id, keys.UpdateParams{
		Name:                    req.Name,
		DailyLimit:              req.DailyLimit,
		CanUseDeepfakeDetection: req.CanUseDeepfakeDetection,
		CanUseAITextDetection:   req.CanUseAITextDetection,
		CanUseAIMediaDetection:  req.CanUseAIMediaDetection,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, newKeyResponse(key, time.Now()))
}

func RevokeKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}

	key, err := getApp(c).Keys.Revoke(c.Request.Context(), middleware.OwnerID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, newKeyResponse(key, time.Now()))
}

func KeyUsage(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}

	limit := defaultUsageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, types.NewError(types.CodeKeyInvalidRequest, "limit must be a positive integer."))
			return
		}
		limit = min(n, maxUsageLimit)
	}

	entries, err := getApp(c).Keys.Usage(c.Request.Context(), middleware.OwnerID(c), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := make([]UsageResponse, 0, len(entries))
	for i := range entries {
		result = append(result, newUsageResponse(&entries[i]))
	}
	respondOK(c, http.StatusOK, result)
}
