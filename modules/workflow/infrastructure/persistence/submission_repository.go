// Package persistence implements the workflow repositories over the
// pluggable JSON record store.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	"github.com/northbeam/capitalgate/pkg/store"
)

const submissionsCollection = "submissions"

type SubmissionRepository struct {
	store store.Store
}

func NewSubmissionRepository(s store.Store) submission.Repository {
	return &SubmissionRepository{store: s}
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*submission.Submission, error) {
	doc, err := r.store.Read(ctx, submissionsCollection, id.String())
	if err != nil {
		return nil, err
	}
	var s submission.Submission
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("decode submission %s: %w", id, err)
	}
	return &s, nil
}

func (r *SubmissionRepository) Save(ctx context.Context, s *submission.Submission) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode submission %s: %w", s.ID, err)
	}
	return r.store.Write(ctx, submissionsCollection, s.ID.String(), doc)
}

func (r *SubmissionRepository) List(ctx context.Context) ([]*submission.Submission, error) {
	recs, err := r.store.List(ctx, submissionsCollection)
	if err != nil {
		return nil, err
	}
	out := make([]*submission.Submission, 0, len(recs))
	for _, rec := range recs {
		var s submission.Submission
		if err := json.Unmarshal(rec.Doc, &s); err != nil {
			return nil, fmt.Errorf("decode submission %s: %w", rec.ID, err)
		}
		out = append(out, &s)
	}
	return out, nil
}
