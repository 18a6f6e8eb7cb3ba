// Package events defines the workflow events published on the in-process
// bus. Subscribers (notifications, logging) are best-effort.
package events

import (
	"github.com/google/uuid"

	"github.com/northbeam/capitalgate/modules/workflow/domain/approval"
	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
)

type ApprovalRequestCreated struct {
	Request         *approval.Request
	SubmissionTitle string
}

type WorkflowTransitioned struct {
	SubmissionID uuid.UUID
	Title        string
	From         submission.LifecycleStatus
	To           submission.LifecycleStatus
	Actor        string
}
