package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/northbeam/capitalgate/modules/workflow/domain/approval"
	"github.com/northbeam/capitalgate/modules/workflow/domain/events"
	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	"github.com/northbeam/capitalgate/pkg/eventbus"
	"github.com/northbeam/capitalgate/pkg/serrors"
)

// Action names the explicit workflow actions a requester can invoke on a
// submission. Approval decisions travel through DecideApproval instead.
type Action string

const (
	ActionSendToSponsor Action = "SEND_TO_SPONSOR"
	ActionStartFunding  Action = "START_FUNDING"
	ActionGoLive        Action = "GO_LIVE"
)

// GovernanceGate names the two committee gates that sit behind sponsor
// approval. They are decided by governance officers, not by rows in the
// approval-request ledger.
type GovernanceGate string

const (
	GatePGOFGO GovernanceGate = "PGO_FGO"
	GateSPO    GovernanceGate = "SPO"
)

// WorkflowService orchestrates submission lifecycle transitions. It owns the
// submission aggregate and delegates approval-request row mechanics to
// ApprovalService.
type WorkflowService struct {
	submissions submission.Repository
	approvals   *ApprovalService
	bus         eventbus.EventBus
	log         *logrus.Logger
	now         func() time.Time
}

func NewWorkflowService(
	submissions submission.Repository,
	approvals *ApprovalService,
	bus eventbus.EventBus,
	log *logrus.Logger,
) *WorkflowService {
	return &WorkflowService{
		submissions: submissions,
		approvals:   approvals,
		bus:         bus,
		log:         log,
		now:         time.Now,
	}
}

type CreateSubmissionInput struct {
	Title       string
	Description string
	Budget      float64
	StartDate   *time.Time
	EndDate     *time.Time
	RiskLevel   string
	Priority    string
	CreatedBy   string
}

func (s *WorkflowService) Create(ctx context.Context, in CreateSubmissionInput) (*submission.Submission, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, serrors.Validation("FIELD_REQUIRED", "title is required")
	}
	now := s.now()
	sub := submission.New(in.Title, in.CreatedBy, now)
	sub.Description = in.Description
	sub.Budget = in.Budget
	sub.StartDate = in.StartDate
	sub.EndDate = in.EndDate
	sub.RiskLevel = in.RiskLevel
	sub.Priority = in.Priority
	sub.AppendAudit(in.CreatedBy, "CREATED", "", now)

	if err := s.submissions.Save(ctx, sub); err != nil {
		return nil, serrors.Persistence("saving submission failed", err)
	}
	return sub, nil
}

func (s *WorkflowService) Get(ctx context.Context, id uuid.UUID) (*submission.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "submission")
	}
	return sub, nil
}

// List returns all submissions ordered by creation time, newest first.
func (s *WorkflowService) List(ctx context.Context) ([]*submission.Submission, error) {
	subs, err := s.submissions.List(ctx)
	if err != nil {
		return nil, serrors.Persistence("listing submissions failed", err)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	return subs, nil
}

type UpdateSubmissionInput struct {
	Title         *string
	Description   *string
	Budget        *float64
	StartDate     *time.Time
	EndDate       *time.Time
	BenefitsValue *float64
	RiskLevel     *string
	Priority      *string
	Actor         string
}

// Update edits submission fields through the plain workflow path. Only
// draft-equivalent states are editable; live projects must raise a change
// request instead.
func (s *WorkflowService) Update(ctx context.Context, id uuid.UUID, in UpdateSubmissionInput) (*submission.Submission, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ls := submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow)
	if !submission.IsWorkflowEditable(ls) {
		return nil, serrors.Conflict("NOT_EDITABLE",
			fmt.Sprintf("submission in status %s cannot be edited directly", ls))
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, serrors.Validation("FIELD_REQUIRED", "title is required")
		}
		sub.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		sub.Description = *in.Description
	}
	if in.Budget != nil {
		sub.Budget = *in.Budget
	}
	if in.StartDate != nil {
		sub.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		sub.EndDate = in.EndDate
	}
	if in.BenefitsValue != nil {
		sub.BenefitsValue = *in.BenefitsValue
	}
	if in.RiskLevel != nil {
		sub.RiskLevel = *in.RiskLevel
	}
	if in.Priority != nil {
		sub.Priority = *in.Priority
	}

	now := s.now()
	sub.UpdatedAt = now.UTC()
	sub.AppendAudit(in.Actor, "UPDATED", "", now)
	if err := s.submissions.Save(ctx, sub); err != nil {
		return nil, serrors.Persistence("saving submission failed", err)
	}
	return sub, nil
}

// UpdateSponsorContacts replaces sponsor assignments and immediately
// reconciles the request ledger: rows addressed to replaced sponsors are
// cancelled and rows for newly required sponsors are raised.
func (s *WorkflowService) UpdateSponsorContacts(
	ctx context.Context,
	id uuid.UUID,
	changes map[submission.RoleContext]*submission.ContactRef,
	actor string,
) (*submission.Submission, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for role, contact := range changes {
		sub.SetContact(role, contact)
		sub.AppendAudit(actor, "SPONSOR_CHANGED", string(role), now)
	}
	sub.UpdatedAt = now.UTC()

	if _, err := s.approvals.CancelPendingNoLongerRequired(ctx, sub, "sponsor assignment changed"); err != nil {
		return nil, err
	}
	if roles := sub.RequiredRoleContexts(); len(roles) > 0 {
		if _, err := s.approvals.CreateRequestsForSubmission(ctx, sub, roles, actor); err != nil {
			return nil, err
		}
	}

	if err := s.submissions.Save(ctx, sub); err != nil {
		return nil, serrors.Persistence("saving submission failed", err)
	}
	return sub, nil
}

// AssignProjectManager records the PM assignment on the submission.
func (s *WorkflowService) AssignProjectManager(
	ctx context.Context,
	id uuid.UUID,
	pm submission.Assignment,
	actor string,
) (*submission.Submission, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	pm.Role = submission.RoleProjectManager

	replaced := false
	for i := range sub.Assignments {
		if sub.Assignments[i].Role == submission.RoleProjectManager {
			sub.Assignments[i] = pm
			replaced = true
			break
		}
	}
	if !replaced {
		sub.Assignments = append(sub.Assignments, pm)
	}

	now := s.now()
	sub.UpdatedAt = now.UTC()
	sub.AppendAudit(actor, "PM_ASSIGNED", pm.DisplayName, now)
	if err := s.submissions.Save(ctx, sub); err != nil {
		return nil, serrors.Persistence("saving submission failed", err)
	}
	return sub, nil
}

// ApplyAction executes an explicit workflow action.
func (s *WorkflowService) ApplyAction(ctx context.Context, id uuid.UUID, action Action, actor string) (*submission.Submission, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ls := submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow)
	now := s.now()

	switch action {
	case ActionSendToSponsor:
		var next submission.LifecycleStatus
		switch ls {
		case submission.LifecycleProposalDraft:
			next = submission.LifecycleProposalSponsorReview
		case submission.LifecycleFundingDraft:
			next = submission.LifecycleFundingSponsorReview
		default:
			return nil, serrors.Conflict("INVALID_TRANSITION",
				fmt.Sprintf("cannot send to sponsor from %s", ls))
		}
		s.transition(sub, next, actor, now)
		roles := sub.RequiredRoleContexts()
		created, err := s.approvals.CreateRequestsForSubmission(ctx, sub, roles, actor)
		if err != nil {
			return nil, err
		}
		if len(created) == 0 {
			return nil, serrors.Conflict("NO_APPROVERS",
				"no resolvable sponsor is assigned to review this submission")
		}

	case ActionStartFunding:
		if ls != submission.LifecycleProposalApproved {
			return nil, serrors.Conflict("INVALID_TRANSITION",
				fmt.Sprintf("cannot start funding from %s", ls))
		}
		sub.Workflow.EntityType = "FUNDING_REQUEST"
		s.transition(sub, submission.LifecycleFundingDraft, actor, now)

	case ActionGoLive:
		if ls != submission.LifecycleFundingApproved {
			return nil, serrors.Conflict("INVALID_TRANSITION",
				fmt.Sprintf("cannot go live from %s", ls))
		}
		sub.Workflow.FundingStatus = "Live"
		s.transition(sub, submission.LifecycleLiveActive, actor, now)

	default:
		return nil, serrors.Validation("INVALID_ACTION", fmt.Sprintf("unknown action %s", action))
	}

	if err := s.submissions.Save(ctx, sub); err != nil {
		return nil, serrors.Persistence("saving submission failed", err)
	}
	return sub, nil
}

// RecordGovernanceDecision applies a committee decision at the PGO/FGO or
// SPO gate and transitions the submission accordingly.
func (s *WorkflowService) RecordGovernanceDecision(
	ctx context.Context,
	id uuid.UUID,
	gate GovernanceGate,
	decision approval.Decision,
	actor, comment string,
) (*submission.Submission, error) {
	if decision != approval.DecisionApproved && decision != approval.DecisionRejected {
		return nil, serrors.Validation("INVALID_DECISION", "governance decision must be APPROVED or REJECTED")
	}

	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ls := submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow)
	now := s.now()
	approved := decision == approval.DecisionApproved

	var next submission.LifecycleStatus
	switch gate {
	case GatePGOFGO:
		switch ls {
		case submission.LifecycleProposalPGOFGOReview:
			next = pick(approved, submission.LifecycleProposalSPOReview, submission.LifecycleProposalRejected)
		case submission.LifecycleFundingPGOFGOReview:
			next = pick(approved, submission.LifecycleFundingSPOReview, submission.LifecycleFundingRejected)
		default:
			return nil, serrors.Conflict("INVALID_TRANSITION",
				fmt.Sprintf("submission in status %s is not at the PGO/FGO gate", ls))
		}
		sub.Workflow.PGODecision = decisionLabel(approved)
		sub.Workflow.FinanceDecision = decisionLabel(approved)

	case GateSPO:
		switch ls {
		case submission.LifecycleProposalSPOReview:
			next = pick(approved, submission.LifecycleProposalApproved, submission.LifecycleProposalRejected)
		case submission.LifecycleFundingSPOReview:
			next = pick(approved, submission.LifecycleFundingApproved, submission.LifecycleFundingRejected)
			if approved {
				sub.Workflow.FundingStatus = "Funded"
			}
		default:
			return nil, serrors.Conflict("INVALID_TRANSITION",
				fmt.Sprintf("submission in status %s is not at the SPO gate", ls))
		}
		sub.Workflow.SPODecision = decisionLabel(approved)

	default:
		return nil, serrors.Validation("INVALID_GATE", fmt.Sprintf("unknown governance gate %s", gate))
	}

	s.transition(sub, next, actor, now)
	sub.AppendAudit(actor, "GOVERNANCE_DECISION",
		fmt.Sprintf("%s %s %s", gate, decision, comment), now)

	if err := s.submissions.Save(ctx, sub); err != nil {
		return nil, serrors.Persistence("saving submission failed", err)
	}
	return sub, nil
}

// DecideApproval applies a sponsor decision on behalf of the calling
// principal: the ledger row is decided, the submission's stage record is
// updated, and the lifecycle advances when the gate's outcome is settled.
func (s *WorkflowService) DecideApproval(
	ctx context.Context,
	submissionID uuid.UUID,
	params DecideParams,
) (*approval.Request, *submission.Submission, error) {
	if params.Decision != approval.DecisionApproved && strings.TrimSpace(params.Comment) == "" {
		return nil, nil, serrors.Validation("COMMENT_REQUIRED",
			"a comment is required when rejecting or requesting more information")
	}

	sub, err := s.Get(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}

	row, err := s.approvals.DecideForPrincipal(ctx, sub, params)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	decidedAt := now.UTC()
	decidedBy := row.ApproverName
	if decidedBy == "" {
		decidedBy = row.ApproverEmail
	}
	sub.UpsertApprovalStage(submission.ApprovalStage{
		Stage:     row.Stage,
		Role:      row.Role,
		Status:    approval.StageDecisionFor(params.Decision),
		DecidedBy: decidedBy,
		DecidedAt: &decidedAt,
		Comment:   params.Comment,
	})
	sub.AppendAudit(decidedBy, "APPROVAL_DECISION",
		fmt.Sprintf("%s %s %s", row.Role, row.Status, params.Comment), now)

	if err := s.applySponsorOutcome(ctx, sub, row, now); err != nil {
		return nil, nil, err
	}

	if err := s.submissions.Save(ctx, sub); err != nil {
		return nil, nil, serrors.Persistence("saving submission failed", err)
	}
	return row, sub, nil
}

// applySponsorOutcome advances or rejects the submission once a sponsor gate
// is settled. NEED_MORE_INFO never moves the lifecycle.
func (s *WorkflowService) applySponsorOutcome(
	ctx context.Context,
	sub *submission.Submission,
	row *approval.Request,
	now time.Time,
) error {
	if row.Status == approval.StatusNeedMoreInfo {
		return nil
	}
	ls := submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow)
	actor := row.ApproverEmail

	switch ls {
	case submission.LifecycleProposalSponsorReview:
		if row.Status == approval.StatusRejected {
			sub.Workflow.SponsorDecision = "Rejected"
			s.transition(sub, submission.LifecycleProposalRejected, actor, now)
		} else {
			sub.Workflow.SponsorDecision = "Approved"
			s.transition(sub, submission.LifecycleProposalPGOFGOReview, actor, now)
		}

	case submission.LifecycleFundingSponsorReview:
		if row.Status == approval.StatusRejected {
			sub.Workflow.SponsorDecision = "Rejected"
			s.transition(sub, submission.LifecycleFundingRejected, actor, now)
			break
		}
		// Funding is multi-sponsor: advance only once every required role
		// with a resolvable approver has approved.
		if s.allRequiredApproved(sub) {
			sub.Workflow.SponsorDecision = "Approved"
			s.transition(sub, submission.LifecycleFundingPGOFGOReview, actor, now)
		}
	default:
		return nil
	}

	// A settled gate retracts whatever is still pending, e.g. the remaining
	// sponsor rows after one sponsor rejects.
	_, err := s.approvals.CancelPendingNoLongerRequired(ctx, sub, "approval gate resolved")
	return err
}

func (s *WorkflowService) allRequiredApproved(sub *submission.Submission) bool {
	stage := stageContextFor(sub)
	for _, role := range sub.RequiredRoleContexts() {
		if _, ok := sub.ResolveApprover(role); !ok {
			continue
		}
		approvedForRole := false
		for _, rec := range sub.StageRecords(stage) {
			if rec.Role == role && rec.Status == submission.StageApproved {
				approvedForRole = true
				break
			}
		}
		if !approvedForRole {
			return false
		}
	}
	return true
}

func (s *WorkflowService) transition(sub *submission.Submission, next submission.LifecycleStatus, actor string, now time.Time) {
	from := submission.ResolveLifecycle(sub.Stage, sub.Status, sub.Workflow)
	sub.SetLifecycle(next, now)
	sub.AppendAudit(actor, "TRANSITION", fmt.Sprintf("%s -> %s", from, next), now)
	if s.bus != nil {
		s.bus.Publish(events.WorkflowTransitioned{
			SubmissionID: sub.ID,
			Title:        sub.Title,
			From:         from,
			To:           next,
			Actor:        actor,
		})
	}
}

func pick(approved bool, yes, no submission.LifecycleStatus) submission.LifecycleStatus {
	if approved {
		return yes
	}
	return no
}

func decisionLabel(approved bool) string {
	if approved {
		return "Approved"
	}
	return "Rejected"
}
