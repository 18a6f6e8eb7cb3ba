package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/northbeam/capitalgate/modules/workflow/domain/approval"
	"github.com/northbeam/capitalgate/modules/workflow/domain/events"
	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	"github.com/northbeam/capitalgate/pkg/eventbus"
	"github.com/northbeam/capitalgate/pkg/identity"
	"github.com/northbeam/capitalgate/pkg/serrors"
)

// EntityTypeSubmission tags approval rows raised by the main workflow;
// change governance uses its own entity type.
const (
	EntityTypeSubmission    = "SUBMISSION"
	EntityTypeChangeRequest = "CHANGE_REQUEST"
)

// ApprovalService owns the approval-request ledger: creation, cancellation,
// decisions, and per-principal listings.
type ApprovalService struct {
	requests approval.Repository
	bus      eventbus.EventBus
	log      *logrus.Logger
	now      func() time.Time
}

func NewApprovalService(requests approval.Repository, bus eventbus.EventBus, log *logrus.Logger) *ApprovalService {
	return &ApprovalService{requests: requests, bus: bus, log: log, now: time.Now}
}

// CreateRequestsForSubmission raises one PENDING request per resolvable role
// context. Creation is idempotent: a role that already has a pending row for
// the same approver is skipped. Only newly created rows are returned.
func (s *ApprovalService) CreateRequestsForSubmission(
	ctx context.Context,
	sub *submission.Submission,
	roles []submission.RoleContext,
	createdBy string,
) ([]*approval.Request, error) {
	existing, err := s.requests.ListByEntity(ctx, sub.ID, EntityTypeSubmission)
	if err != nil {
		return nil, serrors.Persistence("listing approval requests failed", err)
	}

	stage := stageContextFor(sub)
	now := s.now().UTC()
	var created []*approval.Request

	for _, role := range roles {
		ap, ok := sub.ResolveApprover(role)
		if !ok {
			// No one to approve: the role is skipped entirely.
			continue
		}
		if s.findPending(existing, role, ap.Principal.Email) != nil {
			continue
		}

		req := &approval.Request{
			ID:               uuid.New(),
			EntityID:         sub.ID,
			EntityType:       EntityTypeSubmission,
			Stage:            stage,
			Role:             role,
			ApproverUserID:   ap.Principal.UserID,
			ApproverEmail:    ap.Principal.Email,
			ApproverObjectID: ap.Principal.ObjectID,
			ApproverName:     ap.DisplayName,
			Status:           approval.StatusPending,
			CreatedByUserID:  createdBy,
			RequestedAt:      now,
			UpdatedAt:        now,
		}
		if err := s.requests.Save(ctx, req); err != nil {
			return created, serrors.Persistence("saving approval request failed", err)
		}
		sub.UpsertApprovalStage(submission.ApprovalStage{
			Stage:  stage,
			Role:   role,
			Status: submission.StagePending,
		})
		created = append(created, req)

		if s.bus != nil {
			s.bus.Publish(events.ApprovalRequestCreated{Request: req, SubmissionTitle: sub.Title})
		}
	}
	return created, nil
}

func (s *ApprovalService) findPending(rows []*approval.Request, role submission.RoleContext, email string) *approval.Request {
	for _, row := range rows {
		if row.Status == approval.StatusPending &&
			row.Role == role &&
			strings.EqualFold(strings.TrimSpace(row.ApproverEmail), strings.TrimSpace(email)) {
			return row
		}
	}
	return nil
}

// CancelPendingNoLongerRequired retracts PENDING rows whose role context is
// no longer in the required set, or whose approver no longer matches the
// currently-assigned person. Runs whenever sponsor contacts change so a
// request sent to a since-replaced sponsor is never left dangling.
func (s *ApprovalService) CancelPendingNoLongerRequired(
	ctx context.Context,
	sub *submission.Submission,
	reason string,
) ([]*approval.Request, error) {
	rows, err := s.requests.ListByEntity(ctx, sub.ID, EntityTypeSubmission)
	if err != nil {
		return nil, serrors.Persistence("listing approval requests failed", err)
	}

	required := lo.SliceToMap(sub.RequiredRoleContexts(), func(r submission.RoleContext) (submission.RoleContext, bool) {
		return r, true
	})

	now := s.now().UTC()
	var cancelled []*approval.Request
	for _, row := range rows {
		if row.Status != approval.StatusPending {
			continue
		}
		if required[row.Role] && stillAddressedTo(sub, row) {
			continue
		}

		row.Status = approval.StatusCancelled
		row.CancelReason = reason
		row.UpdatedAt = now
		if err := s.requests.Save(ctx, row); err != nil {
			return cancelled, serrors.Persistence("cancelling approval request failed", err)
		}
		cancelled = append(cancelled, row)
	}
	return cancelled, nil
}

// stillAddressedTo reports whether a pending row is addressed to the person
// the role currently resolves to. Email is the comparison key when either
// side carries one; legacy name-only rows compare on display name, so an
// unchanged name-only approver never counts as a mismatch.
func stillAddressedTo(sub *submission.Submission, row *approval.Request) bool {
	ap, ok := sub.ResolveApprover(row.Role)
	if !ok {
		return false
	}
	rowEmail := strings.TrimSpace(row.ApproverEmail)
	resolved := strings.TrimSpace(ap.Principal.Email)
	if rowEmail != "" || resolved != "" {
		return strings.EqualFold(rowEmail, resolved)
	}
	return strings.EqualFold(strings.TrimSpace(row.ApproverName), strings.TrimSpace(ap.DisplayName))
}

type DecideParams struct {
	Principal identity.Principal
	Decision  approval.Decision
	// Stage narrows matching to one stage context; nil matches any.
	Stage *submission.StageContext
	// RequestID pins the decision to one row; nil matches by identity alone.
	RequestID *uuid.UUID
	Comment   string
}

// DecideForPrincipal applies a decision to the unique open row assigned to
// the principal. Zero matches yield the deliberately generic
// no-pending-assigned error; multiple matches resolve to the oldest row.
func (s *ApprovalService) DecideForPrincipal(
	ctx context.Context,
	sub *submission.Submission,
	params DecideParams,
) (*approval.Request, error) {
	return s.DecideForEntity(ctx, sub.ID, EntityTypeSubmission, params)
}

// DecideForEntity is the entity-agnostic decision path shared by the main
// workflow and change governance.
func (s *ApprovalService) DecideForEntity(
	ctx context.Context,
	entityID uuid.UUID,
	entityType string,
	params DecideParams,
) (*approval.Request, error) {
	status, ok := approval.StatusForDecision(params.Decision)
	if !ok {
		return nil, serrors.Validation("INVALID_DECISION", "decision must be APPROVED, REJECTED or NEED_MORE_INFO")
	}

	rows, err := s.requests.ListByEntity(ctx, entityID, entityType)
	if err != nil {
		return nil, serrors.Persistence("listing approval requests failed", err)
	}

	candidates := lo.Filter(rows, func(row *approval.Request, _ int) bool {
		if !row.Open() {
			return false
		}
		if params.RequestID != nil && row.ID != *params.RequestID {
			return false
		}
		if params.Stage != nil && row.Stage != *params.Stage {
			return false
		}
		return row.Approver().Matches(params.Principal)
	})
	if len(candidates) == 0 {
		return nil, serrors.NoPendingApproval()
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].RequestedAt.Before(candidates[j].RequestedAt)
	})
	row := candidates[0]

	now := s.now().UTC()
	row.Status = status
	row.Comment = params.Comment
	row.DecidedAt = &now
	row.UpdatedAt = now
	if err := s.requests.Save(ctx, row); err != nil {
		return nil, serrors.Persistence("saving approval decision failed", err)
	}
	return row, nil
}

// ListPendingForPrincipal returns the open rows assigned to the principal,
// newest first.
func (s *ApprovalService) ListPendingForPrincipal(ctx context.Context, p identity.Principal) ([]*approval.Request, error) {
	all, err := s.requests.List(ctx)
	if err != nil {
		return nil, serrors.Persistence("listing approval requests failed", err)
	}
	out := lo.Filter(all, func(row *approval.Request, _ int) bool {
		return row.Open() && row.Approver().Matches(p)
	})
	sortNewestFirst(out)
	return out, nil
}

// ListInitiatedBy returns every row raised by the user, newest first.
func (s *ApprovalService) ListInitiatedBy(ctx context.Context, userID string) ([]*approval.Request, error) {
	all, err := s.requests.List(ctx)
	if err != nil {
		return nil, serrors.Persistence("listing approval requests failed", err)
	}
	out := lo.Filter(all, func(row *approval.Request, _ int) bool {
		return row.CreatedByUserID == userID
	})
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(rows []*approval.Request) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].RequestedAt.After(rows[j].RequestedAt)
	})
}

// CreateRequest raises one PENDING row for an arbitrary entity. A pending
// row for the same role and approver is returned as-is instead of being
// duplicated; the boolean reports whether a new row was created.
func (s *ApprovalService) CreateRequest(
	ctx context.Context,
	entityID uuid.UUID,
	entityType string,
	stage submission.StageContext,
	role submission.RoleContext,
	ap submission.Approver,
	createdBy string,
) (*approval.Request, bool, error) {
	existing, err := s.requests.ListByEntity(ctx, entityID, entityType)
	if err != nil {
		return nil, false, serrors.Persistence("listing approval requests failed", err)
	}
	if row := s.findPending(existing, role, ap.Principal.Email); row != nil {
		return row, false, nil
	}

	now := s.now().UTC()
	req := &approval.Request{
		ID:               uuid.New(),
		EntityID:         entityID,
		EntityType:       entityType,
		Stage:            stage,
		Role:             role,
		ApproverUserID:   ap.Principal.UserID,
		ApproverEmail:    ap.Principal.Email,
		ApproverObjectID: ap.Principal.ObjectID,
		ApproverName:     ap.DisplayName,
		Status:           approval.StatusPending,
		CreatedByUserID:  createdBy,
		RequestedAt:      now,
		UpdatedAt:        now,
	}
	if err := s.requests.Save(ctx, req); err != nil {
		return nil, false, serrors.Persistence("saving approval request failed", err)
	}
	return req, true, nil
}

// ListForEntity returns every ledger row on the entity.
func (s *ApprovalService) ListForEntity(ctx context.Context, entityID uuid.UUID, entityType string) ([]*approval.Request, error) {
	rows, err := s.requests.ListByEntity(ctx, entityID, entityType)
	if err != nil {
		return nil, serrors.Persistence("listing approval requests failed", err)
	}
	return rows, nil
}

// CancelOpenForEntity retracts every open row on the entity, used when a
// review cycle is aborted wholesale.
func (s *ApprovalService) CancelOpenForEntity(
	ctx context.Context,
	entityID uuid.UUID,
	entityType, reason string,
) ([]*approval.Request, error) {
	rows, err := s.requests.ListByEntity(ctx, entityID, entityType)
	if err != nil {
		return nil, serrors.Persistence("listing approval requests failed", err)
	}
	now := s.now().UTC()
	var cancelled []*approval.Request
	for _, row := range rows {
		if !row.Open() {
			continue
		}
		row.Status = approval.StatusCancelled
		row.CancelReason = reason
		row.UpdatedAt = now
		if err := s.requests.Save(ctx, row); err != nil {
			return cancelled, serrors.Persistence("cancelling approval request failed", err)
		}
		cancelled = append(cancelled, row)
	}
	return cancelled, nil
}

func stageContextFor(sub *submission.Submission) submission.StageContext {
	if sub.Canonical().Stage == submission.StageFunding {
		return submission.StageContextFunding
	}
	return submission.StageContextProposal
}
