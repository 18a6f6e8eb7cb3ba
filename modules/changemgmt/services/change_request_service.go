// Package services orchestrates the change-control cycle over live
// capital projects.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/northbeam/capitalgate/modules/changemgmt/domain/changerequest"
	"github.com/northbeam/capitalgate/modules/workflow/domain/approval"
	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	wfservices "github.com/northbeam/capitalgate/modules/workflow/services"
	"github.com/northbeam/capitalgate/pkg/serrors"
	"github.com/northbeam/capitalgate/pkg/store"
)

// changeGovernanceChain is the ordered set of roles asked to review a
// submitted change. Roles that resolve to no one are skipped.
var changeGovernanceChain = []submission.RoleContext{
	submission.RoleBusinessSponsor,
	submission.RoleFinanceSponsor,
	submission.RoleGovernanceReview,
	submission.RolePMOAdmin,
}

// changeEligibleStates are the lifecycle states from which a change request
// may be raised. Everything earlier is still directly editable.
var changeEligibleStates = map[submission.LifecycleStatus]bool{
	submission.LifecycleFundingApproved:  true,
	submission.LifecycleLiveActive:       true,
	submission.LifecycleLiveChangeReview: true,
}

// ChangeRequestService owns the change-request aggregate. Approval rows are
// delegated to the shared ledger; the submission aggregate is only ever
// mutated here through snapshot-then-apply.
type ChangeRequestService struct {
	changes     changerequest.Repository
	submissions submission.Repository
	approvals   *wfservices.ApprovalService
	log         *logrus.Logger
	thresholds  changerequest.Thresholds

	// governanceReviewers resolves the committee-side roles that have no
	// per-project contact on the submission.
	governanceReviewers map[submission.RoleContext]submission.Approver

	now func() time.Time
}

func NewChangeRequestService(
	changes changerequest.Repository,
	submissions submission.Repository,
	approvals *wfservices.ApprovalService,
	log *logrus.Logger,
	thresholds changerequest.Thresholds,
	governanceReviewers map[submission.RoleContext]submission.Approver,
) *ChangeRequestService {
	return &ChangeRequestService{
		changes:             changes,
		submissions:         submissions,
		approvals:           approvals,
		log:                 log,
		thresholds:          thresholds,
		governanceReviewers: governanceReviewers,
		now:                 time.Now,
	}
}

type CreateChangeInput struct {
	ProjectID uuid.UUID
	Title     string
	Reason    string
	Proposed  changerequest.ProposedChanges
	CreatedBy string
}

// CreateDraft opens a change request against a funded or live project. The
// request must actually change something.
func (s *ChangeRequestService) CreateDraft(ctx context.Context, in CreateChangeInput) (*changerequest.ChangeRequest, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, serrors.Validation("FIELD_REQUIRED", "title is required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, serrors.Validation("FIELD_REQUIRED", "reason is required")
	}

	sub, err := s.getSubmission(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	ls := submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow)
	if !changeEligibleStates[ls] {
		return nil, serrors.Conflict("NOT_CHANGE_ELIGIBLE",
			fmt.Sprintf("submission in status %s cannot receive change requests", ls))
	}

	deltas := computeDeltas(sub, in.Proposed)
	if len(deltas) == 0 {
		return nil, serrors.Validation("NO_CHANGES", "change request proposes no field changes")
	}

	now := s.now()
	cr := changerequest.New(in.ProjectID, strings.TrimSpace(in.Title), in.Reason, in.CreatedBy, now)
	cr.Proposed = in.Proposed
	cr.Deltas = deltas

	impact, err := s.assessImpact(ctx, sub, in.Proposed, len(deltas))
	if err != nil {
		return nil, err
	}
	cr.Severity = changerequest.AssessSeverity(impact, s.thresholds)

	if err := s.changes.Save(ctx, cr); err != nil {
		return nil, serrors.Persistence("saving change request failed", err)
	}
	return cr, nil
}

// Submit moves a draft into review: the governance chain is asked to
// approve and a live project is flagged as under change review.
func (s *ChangeRequestService) Submit(ctx context.Context, id uuid.UUID, actor string) (*changerequest.ChangeRequest, error) {
	cr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changerequest.CanTransition(cr.Status, changerequest.StatusSubmitted) {
		return nil, serrors.Conflict("INVALID_TRANSITION",
			fmt.Sprintf("change request in status %s cannot be submitted", cr.Status))
	}
	sub, err := s.getSubmission(ctx, cr.ProjectID)
	if err != nil {
		return nil, err
	}

	raised := 0
	for _, role := range changeGovernanceChain {
		ap, ok := s.resolveReviewer(sub, role)
		if !ok {
			continue
		}
		if _, _, err := s.approvals.CreateRequest(ctx, cr.ID, wfservices.EntityTypeChangeRequest,
			submission.StageContextChangeRequest, role, ap, actor); err != nil {
			return nil, err
		}
		raised++
	}
	if raised == 0 {
		return nil, serrors.Conflict("NO_APPROVERS", "no resolvable reviewer for this change request")
	}

	now := s.now()
	cr.Status = changerequest.StatusSubmitted
	cr.UpdatedAt = now.UTC()
	if err := s.changes.Save(ctx, cr); err != nil {
		return nil, serrors.Persistence("saving change request failed", err)
	}

	if submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow) == submission.LifecycleLiveActive {
		sub.SetLifecycle(submission.LifecycleLiveChangeReview, now)
		sub.AppendAudit(actor, "CHANGE_REVIEW_STARTED", cr.ID.String(), now)
		if err := s.submissions.Save(ctx, sub); err != nil {
			return nil, serrors.Persistence("saving submission failed", err)
		}
	}
	return cr, nil
}

// Decide applies one reviewer's decision. Any rejection settles the whole
// request; the last outstanding approval approves it.
func (s *ChangeRequestService) Decide(
	ctx context.Context,
	id uuid.UUID,
	params wfservices.DecideParams,
) (*changerequest.ChangeRequest, error) {
	cr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr.Status != changerequest.StatusSubmitted && cr.Status != changerequest.StatusUnderReview {
		return nil, serrors.Conflict("INVALID_TRANSITION",
			fmt.Sprintf("change request in status %s is not open for decisions", cr.Status))
	}
	if params.Decision != approval.DecisionApproved && strings.TrimSpace(params.Comment) == "" {
		return nil, serrors.Validation("COMMENT_REQUIRED",
			"a comment is required when rejecting or requesting more information")
	}

	row, err := s.approvals.DecideForEntity(ctx, cr.ID, wfservices.EntityTypeChangeRequest, params)
	if err != nil {
		return nil, err
	}

	now := s.now()
	decidedBy := row.ApproverName
	if decidedBy == "" {
		decidedBy = row.ApproverEmail
	}
	cr.AppendApproval(changerequest.Approval{
		Role:      row.Role,
		DecidedBy: decidedBy,
		Decision:  string(row.Status),
		Comment:   params.Comment,
		At:        now.UTC(),
	})

	switch row.Status {
	case approval.StatusRejected:
		cr.Status = changerequest.StatusRejected
		if _, err := s.approvals.CancelOpenForEntity(ctx, cr.ID, wfservices.EntityTypeChangeRequest,
			"change request rejected"); err != nil {
			return nil, err
		}
		if err := s.releaseSubmission(ctx, cr, decidedBy, now); err != nil {
			return nil, err
		}
	case approval.StatusApproved:
		open, err := s.openRowCount(ctx, cr.ID)
		if err != nil {
			return nil, err
		}
		if open == 0 {
			cr.Status = changerequest.StatusApproved
		} else {
			cr.Status = changerequest.StatusUnderReview
		}
	default:
		cr.Status = changerequest.StatusUnderReview
	}

	cr.UpdatedAt = now.UTC()
	if err := s.changes.Save(ctx, cr); err != nil {
		return nil, serrors.Persistence("saving change request failed", err)
	}
	return cr, nil
}

// Implement snapshots the project, applies the approved changes, and
// returns the project to active. With closeAfter the request is closed in
// the same call.
func (s *ChangeRequestService) Implement(ctx context.Context, id uuid.UUID, actor string, closeAfter bool) (*changerequest.ChangeRequest, error) {
	cr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changerequest.CanTransition(cr.Status, changerequest.StatusImplemented) {
		return nil, serrors.Conflict("INVALID_TRANSITION",
			fmt.Sprintf("change request in status %s cannot be implemented", cr.Status))
	}
	sub, err := s.getSubmission(ctx, cr.ProjectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cr.TakeSnapshot(sub, now)
	cr.Apply(sub)
	sub.AppendAudit(actor, "CHANGE_IMPLEMENTED", cr.ID.String(), now)
	if submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow) == submission.LifecycleLiveChangeReview {
		sub.SetLifecycle(submission.LifecycleLiveActive, now)
	} else {
		sub.UpdatedAt = now.UTC()
		sub.SyncLegacyDisplay()
	}
	if err := s.submissions.Save(ctx, sub); err != nil {
		return nil, serrors.Persistence("saving submission failed", err)
	}

	implementedAt := now.UTC()
	cr.Status = changerequest.StatusImplemented
	cr.ImplementedAt = &implementedAt
	cr.UpdatedAt = implementedAt
	if closeAfter {
		cr.Status = changerequest.StatusClosed
	}
	if err := s.changes.Save(ctx, cr); err != nil {
		return nil, serrors.Persistence("saving change request failed", err)
	}
	return cr, nil
}

// Close finishes an implemented change request.
func (s *ChangeRequestService) Close(ctx context.Context, id uuid.UUID, actor string) (*changerequest.ChangeRequest, error) {
	cr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !changerequest.CanTransition(cr.Status, changerequest.StatusClosed) {
		return nil, serrors.Conflict("INVALID_TRANSITION",
			fmt.Sprintf("change request in status %s cannot be closed", cr.Status))
	}
	cr.Status = changerequest.StatusClosed
	cr.UpdatedAt = s.now().UTC()
	if err := s.changes.Save(ctx, cr); err != nil {
		return nil, serrors.Persistence("saving change request failed", err)
	}
	return cr, nil
}

func (s *ChangeRequestService) AddComment(ctx context.Context, id uuid.UUID, author, body string) (*changerequest.ChangeRequest, error) {
	if strings.TrimSpace(body) == "" {
		return nil, serrors.Validation("FIELD_REQUIRED", "comment body is required")
	}
	cr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	cr.Comments = append(cr.Comments, changerequest.Comment{
		ID:     uuid.New(),
		Author: author,
		Body:   body,
		At:     now,
	})
	cr.UpdatedAt = now
	if err := s.changes.Save(ctx, cr); err != nil {
		return nil, serrors.Persistence("saving change request failed", err)
	}
	return cr, nil
}

func (s *ChangeRequestService) AddAttachment(ctx context.Context, id uuid.UUID, addedBy, fileName, url string) (*changerequest.ChangeRequest, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, serrors.Validation("FIELD_REQUIRED", "file name is required")
	}
	cr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	cr.Attachments = append(cr.Attachments, changerequest.Attachment{
		ID:       uuid.New(),
		FileName: fileName,
		URL:      url,
		AddedBy:  addedBy,
		At:       now,
	})
	cr.UpdatedAt = now
	if err := s.changes.Save(ctx, cr); err != nil {
		return nil, serrors.Persistence("saving change request failed", err)
	}
	return cr, nil
}

func (s *ChangeRequestService) Get(ctx context.Context, id uuid.UUID) (*changerequest.ChangeRequest, error) {
	cr, err := s.changes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, serrors.NotFound("NOT_FOUND", "change request not found")
		}
		return nil, serrors.Persistence("reading change request failed", err)
	}
	return cr, nil
}

// ListByProject returns the project's change requests, newest first.
func (s *ChangeRequestService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*changerequest.ChangeRequest, error) {
	out, err := s.changes.ListByProject(ctx, projectID)
	if err != nil {
		return nil, serrors.Persistence("listing change requests failed", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *ChangeRequestService) getSubmission(ctx context.Context, id uuid.UUID) (*submission.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, serrors.NotFound("NOT_FOUND", "submission not found")
		}
		return nil, serrors.Persistence("reading submission failed", err)
	}
	return sub, nil
}

func (s *ChangeRequestService) resolveReviewer(sub *submission.Submission, role submission.RoleContext) (submission.Approver, bool) {
	if ap, ok := s.governanceReviewers[role]; ok && ap.Resolvable() {
		return ap, true
	}
	return sub.ResolveApprover(role)
}

func (s *ChangeRequestService) openRowCount(ctx context.Context, id uuid.UUID) (int, error) {
	rows, err := s.approvals.ListForEntity(ctx, id, wfservices.EntityTypeChangeRequest)
	if err != nil {
		return 0, err
	}
	open := 0
	for _, row := range rows {
		if row.Open() {
			open++
		}
	}
	return open, nil
}

// releaseSubmission returns a project parked in change review to active when
// its change request dies before implementation.
func (s *ChangeRequestService) releaseSubmission(ctx context.Context, cr *changerequest.ChangeRequest, actor string, now time.Time) error {
	sub, err := s.getSubmission(ctx, cr.ProjectID)
	if err != nil {
		return err
	}
	if submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow) != submission.LifecycleLiveChangeReview {
		return nil
	}
	sub.SetLifecycle(submission.LifecycleLiveActive, now)
	sub.AppendAudit(actor, "CHANGE_REVIEW_ENDED", cr.ID.String(), now)
	if err := s.submissions.Save(ctx, sub); err != nil {
		return serrors.Persistence("saving submission failed", err)
	}
	return nil
}

// assessImpact derives the severity inputs for a proposed change, folding in
// budget growth from previously implemented changes on the same project.
func (s *ChangeRequestService) assessImpact(
	ctx context.Context,
	sub *submission.Submission,
	p changerequest.ProposedChanges,
	changedFields int,
) (changerequest.Impact, error) {
	impact := changerequest.Impact{
		BudgetBefore:  sub.Budget,
		BudgetAfter:   sub.Budget,
		ChangedFields: changedFields,
	}
	if p.Budget != nil {
		impact.BudgetAfter = *p.Budget
	}
	if p.EndDate != nil {
		impact.ScheduleShiftDays = changerequest.ScheduleShiftDays(sub.EndDate, p.EndDate)
	}

	baseline, err := s.baselineBudget(ctx, sub)
	if err != nil {
		return impact, err
	}
	if baseline > 0 {
		impact.CumulativeBudgetPercent = (impact.BudgetAfter - baseline) / baseline * 100
	}
	return impact, nil
}

// baselineBudget is the budget originally approved for the project: the
// oldest implementation snapshot when changes have already landed, the
// current budget otherwise.
func (s *ChangeRequestService) baselineBudget(ctx context.Context, sub *submission.Submission) (float64, error) {
	history, err := s.changes.ListByProject(ctx, sub.ID)
	if err != nil {
		return 0, serrors.Persistence("listing change requests failed", err)
	}
	baseline := sub.Budget
	var oldest *time.Time
	for _, cr := range history {
		if cr.Snapshot == nil {
			continue
		}
		if oldest == nil || cr.Snapshot.TakenAt.Before(*oldest) {
			t := cr.Snapshot.TakenAt
			oldest = &t
			baseline = cr.Snapshot.Budget
		}
	}
	return baseline, nil
}

func computeDeltas(sub *submission.Submission, p changerequest.ProposedChanges) []changerequest.FieldDelta {
	var out []changerequest.FieldDelta
	add := func(field, oldV, newV string) {
		if oldV != newV {
			out = append(out, changerequest.FieldDelta{Field: field, Old: oldV, New: newV})
		}
	}
	if p.Title != nil {
		add("title", sub.Title, *p.Title)
	}
	if p.Description != nil {
		add("description", sub.Description, *p.Description)
	}
	if p.Budget != nil {
		add("budget", formatFloat(sub.Budget), formatFloat(*p.Budget))
	}
	if p.StartDate != nil {
		add("start_date", formatDate(sub.StartDate), formatDate(p.StartDate))
	}
	if p.EndDate != nil {
		add("end_date", formatDate(sub.EndDate), formatDate(p.EndDate))
	}
	if p.BenefitsValue != nil {
		add("benefits_value", formatFloat(sub.BenefitsValue), formatFloat(*p.BenefitsValue))
	}
	if p.RiskLevel != nil {
		add("risk_level", sub.RiskLevel, *p.RiskLevel)
	}
	if p.Priority != nil {
		add("priority", sub.Priority, *p.Priority)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
