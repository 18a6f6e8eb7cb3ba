// Package handlers contains event-bus subscribers for the workflow module.
package handlers

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/northbeam/capitalgate/modules/workflow/domain/events"
	"github.com/northbeam/capitalgate/pkg/eventbus"
	"github.com/northbeam/capitalgate/pkg/notify"
)

// NotificationHandler turns workflow events into outbound messages.
// Dispatch happens on the bus goroutine and must never block a workflow
// operation, so the dispatcher handed in here is expected to be wrapped in
// notify.Logging or another swallow-failures decorator.
type NotificationHandler struct {
	dispatcher notify.Dispatcher
	log        *logrus.Logger
}

func RegisterNotificationHandler(bus eventbus.EventBus, dispatcher notify.Dispatcher, log *logrus.Logger) *NotificationHandler {
	h := &NotificationHandler{dispatcher: dispatcher, log: log}
	bus.Subscribe(h.onApprovalRequestCreated)
	return h
}

func (h *NotificationHandler) onApprovalRequestCreated(ev events.ApprovalRequestCreated) {
	req := ev.Request
	if req.ApproverEmail == "" {
		// Legacy name-only approvers have nowhere to deliver to.
		h.log.WithFields(logrus.Fields{
			"request": req.ID,
			"role":    req.Role,
		}).Info("approval request has no approver email, skipping notification")
		return
	}
	_ = h.dispatcher.Dispatch(notify.Message{
		To:      req.ApproverEmail,
		Subject: fmt.Sprintf("Approval requested: %s", ev.SubmissionTitle),
		Body: fmt.Sprintf(
			"You have been asked to review %q as %s at the %s stage.",
			ev.SubmissionTitle, req.Role, req.Stage,
		),
	})
}
