package migrations

import (
	"context"

	"github.com/dmi-project/dmi-gateway/internal/db/models"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*models.UsageEntry)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		_, err := db.NewCreateIndex().
			Model((*models.UsageEntry)(nil)).
			Index("usage_entries_api_key_id_created_at_idx").
			Column("api_key_id", "created_at").
			IfNotExists().
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropTable().Model((*models.UsageEntry)(nil)).IfExists().Exec(ctx)
		return err
	})
}
