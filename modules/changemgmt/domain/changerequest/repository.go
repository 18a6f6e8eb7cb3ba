package changerequest

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ChangeRequest, error)
	Save(ctx context.Context, cr *ChangeRequest) error
	List(ctx context.Context) ([]*ChangeRequest, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*ChangeRequest, error)
}
