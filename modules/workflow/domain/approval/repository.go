package approval

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Save(ctx context.Context, r *Request) error
	ListByEntity(ctx context.Context, entityID uuid.UUID, entityType string) ([]*Request, error)
	List(ctx context.Context) ([]*Request, error)
}
