package db

import (
	"context"
	"fmt"

	"github.com/dmi-project/dmi-gateway/internal/config"
	"github.com/dmi-project/dmi-gateway/internal/db/drivers"

	"github.com/uptrace/bun/extra/bundebug"
)

func NewConnection(ctx context.Context, cfg *config.Config) (drivers.Driver, error) {
	return Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
}

// Open connects with the named driver and attaches the bundebug hook, which
// stays silent unless BUNDEBUG is set.
func Open(ctx context.Context, driver, dsn string) (drivers.Driver, error) {
	var (
		conn drivers.Driver
		err  error
	)

	switch driver {
	case config.DriverSQLite:
		conn, err = drivers.NewSQLiteDriver(ctx, dsn)
	case config.DriverLibSQL:
		conn, err = drivers.NewLibSQLDriver(ctx, dsn)
	case config.DriverPG:
		conn, err = drivers.NewPGDriver(ctx, dsn)
	default:
		return nil, fmt.Errorf("invalid database driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	conn.GetDB().AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv(),
	))

	return conn, nil
}
