package migrations

import (
	"context"
	"fmt"

	"github.com/dmi-project/dmi-gateway/internal/config"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// InitMigrations points the migration set at this package's directory so
// create-go writes new files next to the existing ones.
func InitMigrations() error {
	if config.IsLoaded() && config.GetConfig().Environment == "prod" {
		return nil
	}

	if err := Migrations.DiscoverCaller(); err != nil {
		return fmt.Errorf("error discovering caller: %w", err)
	}

	return nil
}

// Apply creates the migration tables if needed and runs every pending
// migration.
func Apply(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to init migrations: %w", err)
	}

	if err := migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock migrations: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return group, nil
}
