package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/northbeam/capitalgate/modules/workflow/domain/approval"
	"github.com/northbeam/capitalgate/pkg/store"
)

const approvalRequestsCollection = "approval_requests"

type ApprovalRequestRepository struct {
	store store.Store
}

func NewApprovalRequestRepository(s store.Store) approval.Repository {
	return &ApprovalRequestRepository{store: s}
}

func (r *ApprovalRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*approval.Request, error) {
	doc, err := r.store.Read(ctx, approvalRequestsCollection, id.String())
	if err != nil {
		return nil, err
	}
	var req approval.Request
	if err := json.Unmarshal(doc, &req); err != nil {
		return nil, fmt.Errorf("decode approval request %s: %w", id, err)
	}
	return &req, nil
}

func (r *ApprovalRequestRepository) Save(ctx context.Context, req *approval.Request) error {
	doc, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode approval request %s: %w", req.ID, err)
	}
	return r.store.Write(ctx, approvalRequestsCollection, req.ID.String(), doc)
}

func (r *ApprovalRequestRepository) List(ctx context.Context) ([]*approval.Request, error) {
	recs, err := r.store.List(ctx, approvalRequestsCollection)
	if err != nil {
		return nil, err
	}
	out := make([]*approval.Request, 0, len(recs))
	for _, rec := range recs {
		var req approval.Request
		if err := json.Unmarshal(rec.Doc, &req); err != nil {
			return nil, fmt.Errorf("decode approval request %s: %w", rec.ID, err)
		}
		out = append(out, &req)
	}
	return out, nil
}

func (r *ApprovalRequestRepository) ListByEntity(ctx context.Context, entityID uuid.UUID, entityType string) ([]*approval.Request, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*approval.Request, 0, len(all))
	for _, req := range all {
		if req.EntityID == entityID && req.EntityType == entityType {
			out = append(out, req)
		}
	}
	return out, nil
}
