package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/db/models"
	"github.com/dmi-project/dmi-gateway/internal/db/repository"
	"github.com/dmi-project/dmi-gateway/internal/types"
	"github.com/dmi-project/dmi-gateway/internal/utils/hashutil"
	"github.com/dmi-project/dmi-gateway/internal/utils/randutil"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const (
	SecretPrefix     = "dmi_"
	secretLength     = 32
	maxNameLength    = 100
	maxExpiresInDays = 3650
)

type CreateParams struct {
	OwnerID                 string
	Name                    string
	DailyLimit              *int
	ExpiresInDays           *int
	CanUseDeepfakeDetection *bool
	CanUseAITextDetection   *bool
	CanUseAIMediaDetection  *bool
}

type UpdateParams struct {
	Name                    *string
	DailyLimit              *int
	CanUseDeepfakeDetection *bool
	CanUseAITextDetection   *bool
	CanUseAIMediaDetection  *bool
}

// Service manages keys on behalf of their owners. Every lookup is scoped to
// the owner; a key belonging to someone else reads as not found.
type Service struct {
	keys         repository.IAPIKeyRepository
	usage        repository.IUsageRepository
	defaultLimit int
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(keys repository.IAPIKeyRepository, usage repository.IUsageRepository, defaultLimit int, logger *zap.Logger) *Service {
	return &Service{
		keys:         keys,
		usage:        usage,
		defaultLimit: defaultLimit,
		logger:       logger.Named("keys"),
		now:          time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func invalid(message string) error {
	return types.NewError(types.CodeKeyInvalidRequest, message)
}

// Create issues a new key. The plaintext secret is returned here and never
// again; only its hash and mask are stored.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.APIKey, string, error) {
	owner := strings.TrimSpace(params.OwnerID)
	if owner == "" {
		return nil, "", invalid("Owner is required.")
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = "API Key"
	}
	if len(name) > maxNameLength {
		return nil, "", invalid(fmt.Sprintf("Name must be at most %d characters.", maxNameLength))
	}

	limit := s.defaultLimit
	if params.DailyLimit != nil {
		if *params.DailyLimit <= 0 {
			return nil, "", invalid("Daily limit must be positive.")
		}
		limit = *params.DailyLimit
	}

	random, err := randutil.RandomString(secretLength)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate api key: %w", err)
	}
	secret := SecretPrefix + random

	key := models.NewAPIKey(owner, name, hashutil.Sha3256Hash([]byte(secret)), randutil.MaskString(secret, 8, 4), limit)
	key.CreatedAt = s.now().UTC()

	if params.ExpiresInDays != nil {
		days := *params.ExpiresInDays
		if days <= 0 || days > maxExpiresInDays {
			return nil, "", invalid(fmt.Sprintf("Expiry must be between 1 and %d days.", maxExpiresInDays))
		}
		key.ExpiresAt = bun.NullTime{Time: key.CreatedAt.AddDate(0, 0, days)}
	}

	applyCapabilities(key, params.CanUseDeepfakeDetection, params.CanUseAITextDetection, params.CanUseAIMediaDetection)

	created, err := s.keys.Create(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store api key: %w", err)
	}

	s.logger.Info("api key created", zap.String("key_id", created.ID.String()), zap.String("owner_id", owner))
	return created, secret, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	keys, err := s.keys.ListAPIKeysByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

func (s *Service) Get(ctx context.Context, ownerID string, id uuid.UUID) (*models.APIKey, error) {
	key, err := s.keys.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewError(types.CodeKeyNotFound, "")
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	if key.OwnerID != ownerID {
		return nil, types.NewError(types.CodeKeyNotFound, "")
	}
	return key, nil
}

func (s *Service) Update(ctx context.Context, ownerID string, id uuid.UUID, params UpdateParams) (*models.APIKey, error) {
	key, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if key.IsRevoked {
		return nil, types.NewError(types.CodeKeyRevoked, "Revoked API keys cannot be modified.")
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" || len(name) > maxNameLength {
			return nil, invalid(fmt.Sprintf("Name must be between 1 and %d characters.", maxNameLength))
		}
		key.Name = name
	}
	if params.DailyLimit != nil {
		if *params.DailyLimit <= 0 {
			return nil, invalid("Daily limit must be positive.")
		}
		key.DailyLimit = *params.DailyLimit
	}
	applyCapabilities(key, params.CanUseDeepfakeDetection, params.CanUseAITextDetection, params.CanUseAIMediaDetection)

	if err := s.keys.UpdateSettings(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to update api key: %w", err)
	}
	return key, nil
}

// Revoke disables a key for good. Revoking twice is not an error.
func (s *Service) Revoke(ctx context.Context, ownerID string, id uuid.UUID) (*models.APIKey, error) {
	key, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if key.IsRevoked {
		return key, nil
	}

	if err := s.keys.Revoke(ctx, id, s.now()); err != nil {
		return nil, fmt.Errorf("failed to revoke api key: %w", err)
	}

	s.logger.Info("api key revoked", zap.String("key_id", id.String()))
	return s.keys.GetByID(ctx, id)
}

// RevokeByID revokes without an owner check. Used by the operator CLI.
func (s *Service) RevokeByID(ctx context.Context, id uuid.UUID) error {
	if _, err := s.keys.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.NewError(types.CodeKeyNotFound, "")
		}
		return err
	}
	return s.keys.Revoke(ctx, id, s.now())
}

func (s *Service) Usage(ctx context.Context, ownerID string, id uuid.UUID, limit int) ([]models.UsageEntry, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}

	entries, err := s.usage.ListByKey(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}
	return entries, nil
}

func applyCapabilities(key *models.APIKey, deepfake, aiText, aiMedia *bool) {
	if deepfake != nil {
		key.CanUseDeepfakeDetection = *deepfake
	}
	if aiText != nil {
		key.CanUseAITextDetection = *aiText
	}
	if aiMedia != nil {
		key.CanUseAIMediaDetection = *aiMedia
	}
}
