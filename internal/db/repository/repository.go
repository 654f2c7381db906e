package repository

import (
	"context"

	"github.com/google/uuid"
)

type Repository[T any] interface {
	Create(ctx context.Context, arg *T) (*T, error)
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
}
