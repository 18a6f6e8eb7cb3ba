// Package changerequest models post-approval change control: a live project
// is never edited in place, every modification travels through a change
// request with its own governance cycle.
package changerequest

import (
	"time"

	"github.com/google/uuid"

	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
)

type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusImplemented Status = "IMPLEMENTED"
	StatusClosed      Status = "CLOSED"
)

// allowedTransitions is the full change-request state machine. REJECTED and
// CLOSED are terminal.
var allowedTransitions = map[Status][]Status{
	StatusDraft:       {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview: {StatusApproved, StatusRejected},
	StatusApproved:    {StatusImplemented},
	StatusImplemented: {StatusClosed},
}

func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ProposedChanges holds the requested field values. Nil means the field is
// untouched by this change request.
type ProposedChanges struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Budget        *float64   `json:"budget,omitempty"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	BenefitsValue *float64   `json:"benefitsValue,omitempty"`
	RiskLevel     *string    `json:"riskLevel,omitempty"`
	Priority      *string    `json:"priority,omitempty"`
}

// FieldDelta is a display-oriented before/after pair for one changed field.
type FieldDelta struct {
	Field string `json:"field"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new,omitempty"`
}

// Approval is the recorded outcome of one governance role on this change.
type Approval struct {
	Role      submission.RoleContext `json:"role"`
	DecidedBy string                 `json:"decidedBy"`
	Decision  string                 `json:"decision"`
	Comment   string                 `json:"comment,omitempty"`
	At        time.Time              `json:"at"`
}

type Comment struct {
	ID     uuid.UUID `json:"id"`
	Author string    `json:"author"`
	Body   string    `json:"body"`
	At     time.Time `json:"at"`
}

type Attachment struct {
	ID       uuid.UUID `json:"id"`
	FileName string    `json:"fileName"`
	URL      string    `json:"url"`
	AddedBy  string    `json:"addedBy"`
	At       time.Time `json:"at"`
}

// Snapshot captures the project's mutable fields immediately before a change
// is applied, enabling after-the-fact comparison and rollback.
type Snapshot struct {
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Budget        float64    `json:"budget"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	BenefitsValue float64    `json:"benefitsValue"`
	RiskLevel     string     `json:"riskLevel,omitempty"`
	Priority      string     `json:"priority,omitempty"`
	TakenAt       time.Time  `json:"takenAt"`
}

type ChangeRequest struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"projectId"`
	Title     string    `json:"title"`
	Reason    string    `json:"reason"`

	Status   Status   `json:"status"`
	Severity Severity `json:"severity"`

	Proposed ProposedChanges `json:"proposed"`
	Deltas   []FieldDelta    `json:"deltas,omitempty"`

	Approvals   []Approval   `json:"approvals,omitempty"`
	Comments    []Comment    `json:"comments,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Snapshot is set once, at implementation time.
	Snapshot *Snapshot `json:"snapshot,omitempty"`

	CreatedBy     string     `json:"createdBy"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ImplementedAt *time.Time `json:"implementedAt,omitempty"`
}

func New(projectID uuid.UUID, title, reason, createdBy string, now time.Time) *ChangeRequest {
	return &ChangeRequest{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     title,
		Reason:    reason,
		Status:    StatusDraft,
		Severity:  SeverityMinor,
		CreatedBy: createdBy,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// Terminal reports whether no further transitions are possible.
func (c *ChangeRequest) Terminal() bool {
	return c.Status == StatusRejected || c.Status == StatusClosed
}

func (c *ChangeRequest) AppendApproval(a Approval) {
	c.Approvals = append(c.Approvals, a)
}

// TakeSnapshot captures the current submission field values. A snapshot is
// taken at most once.
func (c *ChangeRequest) TakeSnapshot(sub *submission.Submission, now time.Time) {
	if c.Snapshot != nil {
		return
	}
	c.Snapshot = &Snapshot{
		Title:         sub.Title,
		Description:   sub.Description,
		Budget:        sub.Budget,
		StartDate:     sub.StartDate,
		EndDate:       sub.EndDate,
		BenefitsValue: sub.BenefitsValue,
		RiskLevel:     sub.RiskLevel,
		Priority:      sub.Priority,
		TakenAt:       now.UTC(),
	}
}

// Apply writes the proposed values onto the submission. Only non-nil fields
// are touched.
func (c *ChangeRequest) Apply(sub *submission.Submission) {
	p := c.Proposed
	if p.Title != nil {
		sub.Title = *p.Title
	}
	if p.Description != nil {
		sub.Description = *p.Description
	}
	if p.Budget != nil {
		sub.Budget = *p.Budget
	}
	if p.StartDate != nil {
		sub.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		sub.EndDate = p.EndDate
	}
	if p.BenefitsValue != nil {
		sub.BenefitsValue = *p.BenefitsValue
	}
	if p.RiskLevel != nil {
		sub.RiskLevel = *p.RiskLevel
	}
	if p.Priority != nil {
		sub.Priority = *p.Priority
	}
}
