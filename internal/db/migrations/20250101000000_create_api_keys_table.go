package migrations

import (
	"context"

	"github.com/dmi-project/dmi-gateway/internal/db/models"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*models.APIKey)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		_, err := db.NewCreateIndex().
			Model((*models.APIKey)(nil)).
			Index("api_keys_owner_id_idx").
			Column("owner_id").
			IfNotExists().
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropTable().Model((*models.APIKey)(nil)).IfExists().Exec(ctx)
		return err
	})
}
