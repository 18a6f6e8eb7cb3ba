package board

import "context"

type Repository interface {
	GetByID(ctx context.Context, id string) (*Card, error)
	Save(ctx context.Context, c *Card) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Card, error)
}
