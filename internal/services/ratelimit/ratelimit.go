package ratelimit

import (
	"context"
	"time"

	"github.com/dmi-project/dmi-gateway/internal/db/models"
	"github.com/dmi-project/dmi-gateway/internal/db/repository"
	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ticket identifies one unit of quota charged against a key.
type Ticket struct {
	KeyID uuid.UUID
	Day   string
}

type Limiter struct {
	repo   repository.IAPIKeyRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewLimiter(repo repository.IAPIKeyRepository, logger *zap.Logger) *Limiter {
	return &Limiter{
		repo:   repo,
		logger: logger.Named("ratelimit"),
		now:    time.Now,
	}
}

// WithClock replaces the clock used to pick the quota day.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Admit charges one request against the key's quota for the current UTC day.
// A refused request leaves the counter untouched.
func (l *Limiter) Admit(ctx context.Context, key *models.APIKey) (*Ticket, error) {
	day := models.Day(l.now())

	ok, err := l.repo.Admit(ctx, key.ID, day)
	if err != nil {
		l.logger.Error("failed to admit request", zap.String("key_id", key.ID.String()), zap.Error(err))
		return nil, types.WrapError(types.CodeProcessingError, err)
	}
	if !ok {
		return nil, types.NewError(types.CodeRateExceeded, "")
	}

	if key.UsageDate == day {
		key.DailyUsage++
	} else {
		key.UsageDate = day
		key.DailyUsage = 1
	}

	return &Ticket{KeyID: key.ID, Day: day}, nil
}

// Release refunds a ticket and reports whether a unit was actually returned.
// Failures are logged.
func (l *Limiter) Release(ctx context.Context, ticket *Ticket) bool {
	if ticket == nil {
		return false
	}

	ok, err := l.repo.Release(ctx, ticket.KeyID, ticket.Day)
	if err != nil {
		l.logger.Warn("failed to release quota", zap.String("key_id", ticket.KeyID.String()), zap.Error(err))
		return false
	}
	return ok
}

// Remaining reports the quota left today as last seen on key.
func (l *Limiter) Remaining(key *models.APIKey) int {
	return key.RemainingOn(models.Day(l.now()))
}
