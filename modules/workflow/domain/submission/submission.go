// Package submission holds the capital-project aggregate and the canonical
// workflow state model derived from it.
package submission

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/northbeam/capitalgate/pkg/identity"
)

// StageContext names the workflow position an approval request belongs to.
type StageContext string

const (
	StageContextProposal      StageContext = "PROPOSAL"
	StageContextFunding       StageContext = "FUNDING"
	StageContextPMAssignment  StageContext = "PM_ASSIGNMENT"
	StageContextChangeRequest StageContext = "CHANGE_REQUEST"
)

// StageDecision is the status of one recorded approval stage on the
// submission itself (the approval-request ledger has its own status enum).
type StageDecision string

const (
	StagePending      StageDecision = "PENDING"
	StageApproved     StageDecision = "APPROVED"
	StageRejected     StageDecision = "REJECTED"
	StageNeedMoreInfo StageDecision = "NEED_MORE_INFO"
)

// ContactRef is a structured reference to a person. Any of the identity
// fields may be empty; matching goes through pkg/identity.
type ContactRef struct {
	UserID      string `json:"userId,omitempty"`
	Email       string `json:"email,omitempty"`
	ObjectID    string `json:"objectId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func (c *ContactRef) Principal() identity.Principal {
	if c == nil {
		return identity.Principal{}
	}
	return identity.Principal{UserID: c.UserID, Email: c.Email, ObjectID: c.ObjectID}
}

type WorkflowState struct {
	EntityType      string          `json:"entityType,omitempty"`
	LifecycleStatus LifecycleStatus `json:"lifecycleStatus,omitempty"`
	SponsorDecision string          `json:"sponsorDecision,omitempty"`
	PGODecision     string          `json:"pgoDecision,omitempty"`
	FinanceDecision string          `json:"financeDecision,omitempty"`
	SPODecision     string          `json:"spoDecision,omitempty"`
	FundingStatus   string          `json:"fundingStatus,omitempty"`
}

// ApprovalStage is one record per (stage, role) ever evaluated on this
// submission. Records are updated in place, never removed.
type ApprovalStage struct {
	Stage     StageContext  `json:"stage"`
	Role      RoleContext   `json:"role"`
	Status    StageDecision `json:"status"`
	DecidedBy string        `json:"decidedBy,omitempty"`
	DecidedAt *time.Time    `json:"decidedAt,omitempty"`
	Comment   string        `json:"comment,omitempty"`
}

// Assignment is a role-tagged user link, e.g. the project manager.
type Assignment struct {
	Role        RoleContext `json:"role"`
	UserID      string      `json:"userId,omitempty"`
	Email       string      `json:"email,omitempty"`
	ObjectID    string      `json:"objectId,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
}

type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

// Submission is the project record. LifecycleStatus inside Workflow is the
// single source of truth; the flat Stage/Status strings are legacy display
// values re-derived on every save.
type Submission struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`

	Stage    string        `json:"stage,omitempty"`
	Status   string        `json:"status,omitempty"`
	Workflow WorkflowState `json:"workflow"`

	BusinessSponsor   *ContactRef `json:"businessSponsor,omitempty"`
	BusinessDelegate  *ContactRef `json:"businessDelegate,omitempty"`
	TechnologySponsor *ContactRef `json:"technologySponsor,omitempty"`
	FinanceSponsor    *ContactRef `json:"financeSponsor,omitempty"`
	BenefitsSponsor   *ContactRef `json:"benefitsSponsor,omitempty"`

	// Flat sponsor-name fields carried over from the legacy system; used
	// only as the last step of the approver fallback chain.
	LegacySponsorNames map[RoleContext]string `json:"legacySponsorNames,omitempty"`

	Budget        float64    `json:"budget,omitempty"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	BenefitsValue float64    `json:"benefitsValue,omitempty"`
	RiskLevel     string     `json:"riskLevel,omitempty"`
	Priority      string     `json:"priority,omitempty"`

	ApprovalStages []ApprovalStage `json:"approvalStages,omitempty"`
	Assignments    []Assignment    `json:"assignments,omitempty"`
	AuditTrail     []AuditEntry    `json:"auditTrail,omitempty"`

	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func New(title, createdBy string, now time.Time) *Submission {
	s := &Submission{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(title),
		Workflow:  WorkflowState{LifecycleStatus: LifecycleProposalDraft},
		CreatedBy: createdBy,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	s.SyncLegacyDisplay()
	return s
}

// Canonical returns the canonical stage/status pair for the submission's
// current position.
func (s *Submission) Canonical() CanonicalState {
	return ResolveCanonicalState(s.Stage, s.Status, s.Workflow)
}

// Contact returns the structured contact reference for a sponsor role, or
// nil when the role has no assigned person.
func (s *Submission) Contact(role RoleContext) *ContactRef {
	switch role {
	case RoleBusinessSponsor:
		return s.BusinessSponsor
	case RoleBusinessDelegate:
		return s.BusinessDelegate
	case RoleTechSponsor:
		return s.TechnologySponsor
	case RoleFinanceSponsor:
		return s.FinanceSponsor
	case RoleBenefitsSponsor:
		return s.BenefitsSponsor
	default:
		return nil
	}
}

func (s *Submission) SetContact(role RoleContext, c *ContactRef) {
	switch role {
	case RoleBusinessSponsor:
		s.BusinessSponsor = c
	case RoleBusinessDelegate:
		s.BusinessDelegate = c
	case RoleTechSponsor:
		s.TechnologySponsor = c
	case RoleFinanceSponsor:
		s.FinanceSponsor = c
	case RoleBenefitsSponsor:
		s.BenefitsSponsor = c
	}
}

// SetLifecycle moves the submission to a new lifecycle status and re-derives
// the legacy display pair so they can never disagree.
func (s *Submission) SetLifecycle(ls LifecycleStatus, now time.Time) {
	s.Workflow.LifecycleStatus = ls
	s.UpdatedAt = now.UTC()
	s.SyncLegacyDisplay()
}

// SyncLegacyDisplay re-derives the legacy stage/status strings from the
// canonical position.
func (s *Submission) SyncLegacyDisplay() {
	cs := s.Canonical()
	s.Stage = string(cs.Stage)
	s.Status = string(cs.Status)
}

// UpsertApprovalStage records a stage evaluation, updating the existing
// (stage, role) record in place when present.
func (s *Submission) UpsertApprovalStage(rec ApprovalStage) {
	for i := range s.ApprovalStages {
		if s.ApprovalStages[i].Stage == rec.Stage && s.ApprovalStages[i].Role == rec.Role {
			s.ApprovalStages[i] = rec
			return
		}
	}
	s.ApprovalStages = append(s.ApprovalStages, rec)
}

// StageRecords returns the recorded evaluations for one stage context.
func (s *Submission) StageRecords(stage StageContext) []ApprovalStage {
	var out []ApprovalStage
	for _, rec := range s.ApprovalStages {
		if rec.Stage == stage {
			out = append(out, rec)
		}
	}
	return out
}

// AllStagesApproved reports whether every recorded evaluation for the stage
// is APPROVED. A stage with no records is not approved.
func (s *Submission) AllStagesApproved(stage StageContext) bool {
	recs := s.StageRecords(stage)
	if len(recs) == 0 {
		return false
	}
	for _, rec := range recs {
		if rec.Status != StageApproved {
			return false
		}
	}
	return true
}

func (s *Submission) AppendAudit(actor, action, detail string, now time.Time) {
	s.AuditTrail = append(s.AuditTrail, AuditEntry{
		At:     now.UTC(),
		Actor:  actor,
		Action: action,
		Detail: detail,
	})
}

// AssignmentFor returns the first assignment tagged with the role.
func (s *Submission) AssignmentFor(role RoleContext) (Assignment, bool) {
	for _, a := range s.Assignments {
		if a.Role == role {
			return a, true
		}
	}
	return Assignment{}, false
}
