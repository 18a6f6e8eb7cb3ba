// Package approval holds the durable ledger of approval requests: one row
// per (entity, role-context) attempt to obtain a decision.
package approval

import (
	"time"

	"github.com/google/uuid"

	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	"github.com/northbeam/capitalgate/pkg/identity"
)

type Status string

const (
	StatusPending      Status = "PENDING"
	StatusApproved     Status = "APPROVED"
	StatusRejected     Status = "REJECTED"
	StatusNeedMoreInfo Status = "NEED_MORE_INFO"
	StatusCancelled    Status = "CANCELLED"
)

type Decision string

const (
	DecisionApproved     Decision = "APPROVED"
	DecisionRejected     Decision = "REJECTED"
	DecisionNeedMoreInfo Decision = "NEED_MORE_INFO"
)

// Request is one attempt to obtain a decision from one role-context on one
// entity. Rows are updated in place; status history lives in the entity's
// audit trail.
type Request struct {
	ID         uuid.UUID               `json:"id"`
	EntityID   uuid.UUID               `json:"entityId"`
	EntityType string                  `json:"entityType"`
	Stage      submission.StageContext `json:"stage"`
	Role       submission.RoleContext  `json:"role"`

	ApproverUserID   string `json:"approverUserId,omitempty"`
	ApproverEmail    string `json:"approverEmail,omitempty"`
	ApproverObjectID string `json:"approverObjectId,omitempty"`
	ApproverName     string `json:"approverName,omitempty"`

	Status       Status `json:"status"`
	Comment      string `json:"comment,omitempty"`
	CancelReason string `json:"cancelReason,omitempty"`

	CreatedByUserID string     `json:"createdByUserId,omitempty"`
	RequestedAt     time.Time  `json:"requestedAt"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (r *Request) Approver() identity.Principal {
	return identity.Principal{
		UserID:   r.ApproverUserID,
		Email:    r.ApproverEmail,
		ObjectID: r.ApproverObjectID,
	}
}

// Open reports whether the request still awaits a decision.
func (r *Request) Open() bool {
	return r.Status == StatusPending || r.Status == StatusNeedMoreInfo
}

// StatusForDecision maps an approver's decision to the resulting row status.
func StatusForDecision(d Decision) (Status, bool) {
	switch d {
	case DecisionApproved:
		return StatusApproved, true
	case DecisionRejected:
		return StatusRejected, true
	case DecisionNeedMoreInfo:
		return StatusNeedMoreInfo, true
	}
	return "", false
}

// StageDecisionFor mirrors the row status onto the submission's recorded
// approval stage.
func StageDecisionFor(d Decision) submission.StageDecision {
	switch d {
	case DecisionApproved:
		return submission.StageApproved
	case DecisionRejected:
		return submission.StageRejected
	default:
		return submission.StageNeedMoreInfo
	}
}
