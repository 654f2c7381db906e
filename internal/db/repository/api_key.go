package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/db/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type IAPIKeyRepository interface {
	Repository[models.APIKey]
	WithTx(tx bun.Tx) IAPIKeyRepository
	GetAPIKeyWithHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error)
	UpdateSettings(ctx context.Context, apiKey *models.APIKey) error
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	Admit(ctx context.Context, id uuid.UUID, day string) (bool, error)
	Release(ctx context.Context, id uuid.UUID, day string) (bool, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

type APIKeyRepository struct {
	db bun.IDB
}

func NewAPIKeyRepository(db *bun.DB) IAPIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(ctx context.Context, apiKey *models.APIKey) (*models.APIKey, error) {
	if apiKey == nil {
		return nil, fmt.Errorf("apikey model is nil")
	}

	if err := r.db.NewInsert().Model(apiKey).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return apiKey, nil
}

func (r *APIKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	var apiKey models.APIKey
	if err := r.db.NewSelect().Model(&apiKey).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &apiKey, nil
}

func (r *APIKeyRepository) GetAPIKeyWithHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	var apiKey models.APIKey
	if err := r.db.NewSelect().Model(&apiKey).Where("key_hash = ?", keyHash).Scan(ctx); err != nil {
		return nil, err
	}

	return &apiKey, nil
}

func (r *APIKeyRepository) ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	apiKeys := []models.APIKey{}
	err := r.db.NewSelect().
		Model(&apiKeys).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return apiKeys, nil
}

// UpdateSettings writes the mutable settings of a live key. Revocation
// fields are never part of the update.
func (r *APIKeyRepository) UpdateSettings(ctx context.Context, apiKey *models.APIKey) error {
	_, err := r.db.NewUpdate().
		Model(apiKey).
		Column("name", "daily_limit", "can_use_deepfake_detection", "can_use_ai_text_detection", "can_use_ai_media_detection").
		WherePK().
		Where("is_revoked = ?", false).
		Exec(ctx)
	return err
}

// Revoke is one-way; a revoked key keeps its original revoked_at.
func (r *APIKeyRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.APIKey)(nil)).
		Set("is_revoked = ?", true).
		Set("revoked_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("is_revoked = ?", false).
		Exec(ctx)
	return err
}

// Admit charges one unit of quota for day in a single statement. A counter
// left over from an earlier day restarts at one. It reports false, without
// changing anything, when the key is revoked or already at its limit.
func (r *APIKeyRepository) Admit(ctx context.Context, id uuid.UUID, day string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.APIKey)(nil)).
		Set("daily_usage = CASE WHEN usage_date = ? THEN daily_usage + 1 ELSE 1 END", day).
		Set("usage_date = ?", day).
		Where("id = ?", id).
		Where("is_revoked = ?", false).
		Where("(usage_date <> ? OR daily_usage < daily_limit)", day).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

// Release gives back a unit charged on day and reports whether a unit was
// returned. Once the day has rolled over the counter belongs to a new day and
// is left alone.
func (r *APIKeyRepository) Release(ctx context.Context, id uuid.UUID, day string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.APIKey)(nil)).
		Set("daily_usage = daily_usage - 1").
		Where("id = ?", id).
		Where("usage_date = ?", day).
		Where("daily_usage > 0").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (r *APIKeyRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.APIKey)(nil)).
		Set("last_used_at = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *APIKeyRepository) WithTx(tx bun.Tx) IAPIKeyRepository {
	return &APIKeyRepository{db: tx}
}
