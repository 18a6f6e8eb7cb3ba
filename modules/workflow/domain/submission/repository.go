package submission

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	Save(ctx context.Context, s *Submission) error
	List(ctx context.Context) ([]*Submission, error)
}
