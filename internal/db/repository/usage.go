package repository

import (
	"context"
	"fmt"

	"github.com/dmi-project/dmi-gateway/internal/db/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type IUsageRepository interface {
	Repository[models.UsageEntry]
	WithTx(tx bun.Tx) IUsageRepository
	ListByKey(ctx context.Context, keyID uuid.UUID, limit int) ([]models.UsageEntry, error)
	CountByKey(ctx context.Context, keyID uuid.UUID) (int, error)
}

type UsageRepository struct {
	db bun.IDB
}

func NewUsageRepository(db *bun.DB) IUsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Create(ctx context.Context, entry *models.UsageEntry) (*models.UsageEntry, error) {
	if entry == nil {
		return nil, fmt.Errorf("usage entry model is nil")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.Must(uuid.NewRandom())
	}

	if _, err := r.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *UsageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UsageEntry, error) {
	var entry models.UsageEntry
	if err := r.db.NewSelect().Model(&entry).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &entry, nil
}

// ListByKey returns the newest entries for a key first.
func (r *UsageRepository) ListByKey(ctx context.Context, keyID uuid.UUID, limit int) ([]models.UsageEntry, error) {
	entries := []models.UsageEntry{}
	query := r.db.NewSelect().
		Model(&entries).
		Where("api_key_id = ?", keyID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *UsageRepository) CountByKey(ctx context.Context, keyID uuid.UUID) (int, error) {
	return r.db.NewSelect().
		Model((*models.UsageEntry)(nil)).
		Where("api_key_id = ?", keyID).
		Count(ctx)
}

func (r *UsageRepository) WithTx(tx bun.Tx) IUsageRepository {
	return &UsageRepository{db: tx}
}
