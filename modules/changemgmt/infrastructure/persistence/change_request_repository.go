// Package persistence implements the change-management repositories over
// the pluggable JSON record store.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/northbeam/capitalgate/modules/changemgmt/domain/changerequest"
	"github.com/northbeam/capitalgate/pkg/store"
)

const changeRequestsCollection = "change_requests"

type ChangeRequestRepository struct {
	store store.Store
}

func NewChangeRequestRepository(s store.Store) changerequest.Repository {
	return &ChangeRequestRepository{store: s}
}

func (r *ChangeRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*changerequest.ChangeRequest, error) {
	doc, err := r.store.Read(ctx, changeRequestsCollection, id.String())
	if err != nil {
		return nil, err
	}
	var cr changerequest.ChangeRequest
	if err := json.Unmarshal(doc, &cr); err != nil {
		return nil, fmt.Errorf("decode change request %s: %w", id, err)
	}
	return &cr, nil
}

func (r *ChangeRequestRepository) Save(ctx context.Context, cr *changerequest.ChangeRequest) error {
	doc, err := json.Marshal(cr)
	if err != nil {
		return fmt.Errorf("encode change request %s: %w", cr.ID, err)
	}
	return r.store.Write(ctx, changeRequestsCollection, cr.ID.String(), doc)
}

func (r *ChangeRequestRepository) List(ctx context.Context) ([]*changerequest.ChangeRequest, error) {
	recs, err := r.store.List(ctx, changeRequestsCollection)
	if err != nil {
		return nil, err
	}
	out := make([]*changerequest.ChangeRequest, 0, len(recs))
	for _, rec := range recs {
		var cr changerequest.ChangeRequest
		if err := json.Unmarshal(rec.Doc, &cr); err != nil {
			return nil, fmt.Errorf("decode change request %s: %w", rec.ID, err)
		}
		out = append(out, &cr)
	}
	return out, nil
}

func (r *ChangeRequestRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*changerequest.ChangeRequest, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*changerequest.ChangeRequest, 0, len(all))
	for _, cr := range all {
		if cr.ProjectID == projectID {
			out = append(out, cr)
		}
	}
	return out, nil
}
