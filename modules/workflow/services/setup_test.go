package services

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/northbeam/capitalgate/modules/workflow/domain/approval"
	"github.com/northbeam/capitalgate/modules/workflow/domain/board"
	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	"github.com/northbeam/capitalgate/modules/workflow/infrastructure/persistence"
	"github.com/northbeam/capitalgate/pkg/eventbus"
	"github.com/northbeam/capitalgate/pkg/store"
)

var testClock = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	submissions submission.Repository
	requests    approval.Repository
	cards       board.Repository
	bus         eventbus.EventBus
	approvals   *ApprovalService
	workflow    *WorkflowService
	board       *BoardService
}

func newTestEnv() *testEnv {
	log := logrus.New()
	log.SetOutput(io.Discard)

	st := store.NewMemory()
	env := &testEnv{
		submissions: persistence.NewSubmissionRepository(st),
		requests:    persistence.NewApprovalRequestRepository(st),
		cards:       persistence.NewBoardCardRepository(st),
		bus:         eventbus.NewEventPublisher(log),
	}
	env.approvals = NewApprovalService(env.requests, env.bus, log)
	env.workflow = NewWorkflowService(env.submissions, env.approvals, env.bus, log)
	env.board = NewBoardService(env.cards, env.submissions, log, 5)

	clock := func() time.Time { return testClock }
	env.approvals.now = clock
	env.workflow.now = clock
	env.board.now = clock
	return env
}

func sponsorContact() *submission.ContactRef {
	return &submission.ContactRef{
		UserID:      "u-sponsor",
		Email:       "sponsor@example.com",
		ObjectID:    "oid-sponsor",
		DisplayName: "Sam Sponsor",
	}
}

func financeContact() *submission.ContactRef {
	return &submission.ContactRef{
		UserID:      "u-finance",
		Email:       "finance@example.com",
		DisplayName: "Fran Finance",
	}
}
