package keys

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/db/dbtest"
	"github.com/dmi-project/dmi-gateway/internal/db/repository"
	"github.com/dmi-project/dmi-gateway/internal/types"
	"github.com/dmi-project/dmi-gateway/internal/utils/hashutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, repository.IAPIKeyRepository) {
	t.Helper()

	db := dbtest.New(t)
	keys := repository.NewAPIKeyRepository(db)
	svc := NewService(keys, repository.NewUsageRepository(db), 1000, zap.NewNop()).
		WithClock(func() time.Time { return now })
	return svc, keys
}

func ptr[T any](v T) *T {
	return &v
}

func TestCreateDefaults(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	key, secret, err := svc.Create(ctx, CreateParams{OwnerID: "owner-1", Name: "  prod  "})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(secret, SecretPrefix))
	assert.Equal(t, "prod", key.Name)
	assert.Equal(t, 1000, key.DailyLimit)
	assert.True(t, key.CanUseDeepfakeDetection)
	assert.True(t, key.CanUseAITextDetection)
	assert.True(t, key.CanUseAIMediaDetection)
	assert.True(t, key.ExpiresAt.IsZero())
	assert.NotContains(t, key.KeyMask, secret[8:len(secret)-4])
	assert.True(t, strings.HasSuffix(key.KeyMask, secret[len(secret)-4:]))

	stored, err := repo.GetAPIKeyWithHash(ctx, hashutil.Sha3256Hash([]byte(secret)))
	require.NoError(t, err)
	assert.Equal(t, key.ID, stored.ID)
	assert.NotEqual(t, secret, stored.KeyHash)
}

func TestCreateWithOptions(t *testing.T) {
	svc, _ := newService(t)

	key, _, err := svc.Create(context.Background(), CreateParams{
		OwnerID:               "owner-1",
		DailyLimit:            ptr(5),
		ExpiresInDays:         ptr(30),
		CanUseAITextDetection: ptr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, "API Key", key.Name)
	assert.Equal(t, 5, key.DailyLimit)
	assert.False(t, key.CanUseAITextDetection)
	assert.True(t, key.ExpiresAt.Time.Equal(now.AddDate(0, 0, 30)))
}

func TestCreateRejectsInvalid(t *testing.T) {
	svc, _ := newService(t)

	tests := []CreateParams{
		{OwnerID: ""},
		{OwnerID: "o", DailyLimit: ptr(0)},
		{OwnerID: "o", ExpiresInDays: ptr(-1)},
		{OwnerID: "o", Name: strings.Repeat("n", 101)},
	}
	for _, params := range tests {
		_, _, err := svc.Create(context.Background(), params)
		assert.Equal(t, types.CodeKeyInvalidRequest, types.CodeOf(err))
	}
}

func TestOwnerScoping(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	key, _, err := svc.Create(ctx, CreateParams{OwnerID: "owner-1"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "owner-2", key.ID)
	assert.Equal(t, types.CodeKeyNotFound, types.CodeOf(err))

	_, err = svc.Revoke(ctx, "owner-2", key.ID)
	assert.Equal(t, types.CodeKeyNotFound, types.CodeOf(err))

	_, err = svc.Get(ctx, "owner-1", uuid.New())
	assert.Equal(t, types.CodeKeyNotFound, types.CodeOf(err))

	list, err := svc.List(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateAndRevoke(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	key, _, err := svc.Create(ctx, CreateParams{OwnerID: "owner-1"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "owner-1", key.ID, UpdateParams{Name: ptr("renamed"), DailyLimit: ptr(20), CanUseAIMediaDetection: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 20, updated.DailyLimit)
	assert.False(t, updated.CanUseAIMediaDetection)

	_, err = svc.Update(ctx, "owner-1", key.ID, UpdateParams{DailyLimit: ptr(-3)})
	assert.Equal(t, types.CodeKeyInvalidRequest, types.CodeOf(err))

	revoked, err := svc.Revoke(ctx, "owner-1", key.ID)
	require.NoError(t, err)
	assert.True(t, revoked.IsRevoked)

	again, err := svc.Revoke(ctx, "owner-1", key.ID)
	require.NoError(t, err)
	assert.True(t, again.IsRevoked)
	assert.True(t, again.RevokedAt.Time.Equal(revoked.RevokedAt.Time))

	_, err = svc.Update(ctx, "owner-1", key.ID, UpdateParams{Name: ptr("back")})
	assert.Equal(t, types.CodeKeyRevoked, types.CodeOf(err))
}

func TestRevokeByID(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	key, _, err := svc.Create(ctx, CreateParams{OwnerID: "owner-1"})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeByID(ctx, key.ID))
	stored, err := repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRevoked)

	assert.Equal(t, types.CodeKeyNotFound, types.CodeOf(svc.RevokeByID(ctx, uuid.New())))
}
