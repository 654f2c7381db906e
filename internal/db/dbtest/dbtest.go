// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/dmi-project/dmi-gateway/internal/config"
	"github.com/dmi-project/dmi-gateway/internal/db"
	"github.com/dmi-project/dmi-gateway/internal/db/migrations"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// New returns a private in-memory sqlite database with every migration
// applied. It is closed when the test ends.
func New(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	conn, err := db.Open(ctx, config.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = migrations.Apply(ctx, conn.GetDB())
	require.NoError(t, err)

	return conn.GetDB()
}
