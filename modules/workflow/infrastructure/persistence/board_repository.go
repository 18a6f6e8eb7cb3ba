package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/northbeam/capitalgate/modules/workflow/domain/board"
	"github.com/northbeam/capitalgate/pkg/store"
)

const boardCardsCollection = "board_cards"

type BoardCardRepository struct {
	store store.Store
}

func NewBoardCardRepository(s store.Store) board.Repository {
	return &BoardCardRepository{store: s}
}

func (r *BoardCardRepository) GetByID(ctx context.Context, id string) (*board.Card, error) {
	doc, err := r.store.Read(ctx, boardCardsCollection, id)
	if err != nil {
		return nil, err
	}
	var c board.Card
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode board card %s: %w", id, err)
	}
	return &c, nil
}

func (r *BoardCardRepository) Save(ctx context.Context, c *board.Card) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode board card %s: %w", c.ID, err)
	}
	return r.store.Write(ctx, boardCardsCollection, c.ID, doc)
}

func (r *BoardCardRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, boardCardsCollection, id)
}

func (r *BoardCardRepository) List(ctx context.Context) ([]*board.Card, error) {
	recs, err := r.store.List(ctx, boardCardsCollection)
	if err != nil {
		return nil, err
	}
	out := make([]*board.Card, 0, len(recs))
	for _, rec := range recs {
		var c board.Card
		if err := json.Unmarshal(rec.Doc, &c); err != nil {
			return nil, fmt.Errorf("decode board card %s: %w", rec.ID, err)
		}
		out = append(out, &c)
	}
	return out, nil
}
