package authgate

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/db/models"
	"github.com/dmi-project/dmi-gateway/internal/db/repository"
	"github.com/dmi-project/dmi-gateway/internal/types"
	"github.com/dmi-project/dmi-gateway/internal/utils/hashutil"

	"go.uber.org/zap"
)

// Gate resolves the X-API-Key header into a usable key. It never writes.
type Gate struct {
	repo   repository.IAPIKeyRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewGate(repo repository.IAPIKeyRepository, logger *zap.Logger) *Gate {
	return &Gate{
		repo:   repo,
		logger: logger.Named("authgate"),
		now:    time.Now,
	}
}

func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

func (g *Gate) Resolve(ctx context.Context, header string, endpoint types.Endpoint) (*models.APIKey, error) {
	secret := strings.TrimSpace(header)
	if secret == "" {
		return nil, types.NewError(types.CodeAuthMissing, "")
	}

	key, err := g.repo.GetAPIKeyWithHash(ctx, hashutil.Sha3256Hash([]byte(secret)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewError(types.CodeAuthInvalid, "")
		}

		g.logger.Error("failed to look up api key", zap.Error(err))
		return nil, types.WrapError(types.CodeProcessingError, err)
	}

	if !key.IsUsable(g.now()) {
		return nil, types.NewError(types.CodeAuthInvalid, "")
	}
	if !key.Allows(endpoint) {
		return key, types.NewError(types.CodeAuthForbidden, "")
	}

	return key, nil
}
