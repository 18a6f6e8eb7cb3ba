package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/northbeam/capitalgate/modules/changemgmt/domain/changerequest"
	changepersistence "github.com/northbeam/capitalgate/modules/changemgmt/infrastructure/persistence"
	"github.com/northbeam/capitalgate/modules/workflow/domain/approval"
	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	wfpersistence "github.com/northbeam/capitalgate/modules/workflow/infrastructure/persistence"
	wfservices "github.com/northbeam/capitalgate/modules/workflow/services"
	"github.com/northbeam/capitalgate/pkg/eventbus"
	"github.com/northbeam/capitalgate/pkg/identity"
	"github.com/northbeam/capitalgate/pkg/serrors"
	"github.com/northbeam/capitalgate/pkg/store"
)

var testClock = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	submissions submission.Repository
	requests    *wfservices.ApprovalService
	changes     *ChangeRequestService
}

func newTestEnv() *testEnv {
	log := logrus.New()
	log.SetOutput(io.Discard)

	st := store.NewMemory()
	submissions := wfpersistence.NewSubmissionRepository(st)
	approvals := wfservices.NewApprovalService(
		wfpersistence.NewApprovalRequestRepository(st),
		eventbus.NewEventPublisher(log),
		log,
	)

	reviewers := map[submission.RoleContext]submission.Approver{
		submission.RoleGovernanceReview: {
			Principal:   identity.Principal{UserID: "u-gov", Email: "governance@example.com"},
			DisplayName: "Gov Reviewer",
		},
		submission.RolePMOAdmin: {
			Principal:   identity.Principal{UserID: "u-pmo", Email: "pmo@example.com"},
			DisplayName: "PMO Admin",
		},
	}
	thresholds := changerequest.Thresholds{
		BudgetAbsolute:              50000,
		BudgetPercent:               10,
		ScheduleDays:                30,
		CumulativeEscalationPercent: 25,
	}
	changes := NewChangeRequestService(
		changepersistence.NewChangeRequestRepository(st),
		submissions,
		approvals,
		log,
		thresholds,
		reviewers,
	)
	changes.now = func() time.Time { return testClock }

	return &testEnv{submissions: submissions, requests: approvals, changes: changes}
}

func liveProject(t *testing.T, env *testEnv) *submission.Submission {
	t.Helper()
	sub := submission.New("CRM replacement", "u-requester", testClock)
	sub.Budget = 100000
	sub.BusinessSponsor = &submission.ContactRef{
		Email: "sponsor@example.com", DisplayName: "Sam Sponsor",
	}
	end := testClock.AddDate(0, 6, 0)
	sub.EndDate = &end
	sub.SetLifecycle(submission.LifecycleLiveActive, testClock)
	require.NoError(t, env.submissions.Save(context.Background(), sub))
	return sub
}

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestCreateDraftRequiresEligibleState(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := submission.New("Early project", "u-requester", testClock)
	sub.SetLifecycle(submission.LifecycleProposalDraft, testClock)
	require.NoError(t, env.submissions.Save(ctx, sub))

	_, err := env.changes.CreateDraft(ctx, CreateChangeInput{
		ProjectID: sub.ID,
		Title:     "Raise budget",
		Reason:    "scope growth",
		Proposed:  changerequest.ProposedChanges{Budget: floatPtr(120000)},
		CreatedBy: "u-pm",
	})
	var se *serrors.ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "NOT_CHANGE_ELIGIBLE", se.Code)
}

func TestCreateDraftRequiresActualChanges(t *testing.T) {
	env := newTestEnv()
	sub := liveProject(t, env)

	_, err := env.changes.CreateDraft(context.Background(), CreateChangeInput{
		ProjectID: sub.ID,
		Title:     "No-op",
		Reason:    "nothing",
		Proposed:  changerequest.ProposedChanges{Budget: floatPtr(100000)},
		CreatedBy: "u-pm",
	})
	var se *serrors.ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "NO_CHANGES", se.Code)
}

func TestCreateDraftComputesDeltasAndSeverity(t *testing.T) {
	env := newTestEnv()
	sub := liveProject(t, env)

	cr, err := env.changes.CreateDraft(context.Background(), CreateChangeInput{
		ProjectID: sub.ID,
		Title:     "Scope extension",
		Reason:    "additional regions",
		Proposed: changerequest.ProposedChanges{
			Budget:    floatPtr(160000),
			RiskLevel: strPtr("High"),
		},
		CreatedBy: "u-pm",
	})
	require.NoError(t, err)
	require.Equal(t, changerequest.StatusDraft, cr.Status)
	require.Len(t, cr.Deltas, 2)
	require.Equal(t, changerequest.SeverityCritical, cr.Severity,
		"60%% budget growth breaches the cumulative escalation cap")
}

func submitted(t *testing.T, env *testEnv, sub *submission.Submission) *changerequest.ChangeRequest {
	t.Helper()
	ctx := context.Background()
	cr, err := env.changes.CreateDraft(ctx, CreateChangeInput{
		ProjectID: sub.ID,
		Title:     "Budget bump",
		Reason:    "vendor price increase",
		Proposed:  changerequest.ProposedChanges{Budget: floatPtr(108000)},
		CreatedBy: "u-pm",
	})
	require.NoError(t, err)
	cr, err = env.changes.Submit(ctx, cr.ID, "u-pm")
	require.NoError(t, err)
	return cr
}

func TestSubmitRaisesChainAndParksProject(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := liveProject(t, env)
	cr := submitted(t, env, sub)
	require.Equal(t, changerequest.StatusSubmitted, cr.Status)

	rows, err := env.requests.ListForEntity(ctx, cr.ID, wfservices.EntityTypeChangeRequest)
	require.NoError(t, err)
	// Business sponsor plus the two configured committee reviewers; no
	// finance sponsor is assigned, so that role is skipped.
	require.Len(t, rows, 3)
	roles := map[submission.RoleContext]bool{}
	for _, r := range rows {
		roles[r.Role] = true
		require.Equal(t, submission.StageContextChangeRequest, r.Stage)
		require.Equal(t, approval.StatusPending, r.Status)
	}
	require.True(t, roles[submission.RoleBusinessSponsor])
	require.True(t, roles[submission.RoleGovernanceReview])
	require.True(t, roles[submission.RolePMOAdmin])

	got, err := env.submissions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, submission.LifecycleLiveChangeReview, got.Workflow.LifecycleStatus)
}

func TestDecideApproveAllApprovesRequest(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := liveProject(t, env)
	cr := submitted(t, env, sub)

	for i, email := range []string{"sponsor@example.com", "governance@example.com", "pmo@example.com"} {
		var err error
		cr, err = env.changes.Decide(ctx, cr.ID, wfservices.DecideParams{
			Principal: identity.Principal{Email: email},
			Decision:  approval.DecisionApproved,
		})
		require.NoError(t, err)
		if i < 2 {
			require.Equal(t, changerequest.StatusUnderReview, cr.Status)
		}
	}
	require.Equal(t, changerequest.StatusApproved, cr.Status)
	require.Len(t, cr.Approvals, 3)
}

func TestDecideRejectionSettlesAndReleasesProject(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := liveProject(t, env)
	cr := submitted(t, env, sub)

	cr, err := env.changes.Decide(ctx, cr.ID, wfservices.DecideParams{
		Principal: identity.Principal{Email: "governance@example.com"},
		Decision:  approval.DecisionRejected,
		Comment:   "insufficient justification",
	})
	require.NoError(t, err)
	require.Equal(t, changerequest.StatusRejected, cr.Status)

	rows, err := env.requests.ListForEntity(ctx, cr.ID, wfservices.EntityTypeChangeRequest)
	require.NoError(t, err)
	for _, r := range rows {
		require.False(t, r.Open(), "row %s for %s still open after rejection", r.ID, r.Role)
	}

	got, err := env.submissions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, submission.LifecycleLiveActive, got.Workflow.LifecycleStatus)
}

func TestDecideByOutsiderIsGenericError(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := liveProject(t, env)
	cr := submitted(t, env, sub)

	_, err := env.changes.Decide(ctx, cr.ID, wfservices.DecideParams{
		Principal: identity.Principal{Email: "outsider@example.com"},
		Decision:  approval.DecisionApproved,
	})
	var se *serrors.ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 403, se.Status)
}

func approvedRequest(t *testing.T, env *testEnv, sub *submission.Submission) *changerequest.ChangeRequest {
	t.Helper()
	cr := submitted(t, env, sub)
	for _, email := range []string{"sponsor@example.com", "governance@example.com", "pmo@example.com"} {
		var err error
		cr, err = env.changes.Decide(context.Background(), cr.ID, wfservices.DecideParams{
			Principal: identity.Principal{Email: email},
			Decision:  approval.DecisionApproved,
		})
		require.NoError(t, err)
	}
	return cr
}

func TestImplementSnapshotsThenApplies(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := liveProject(t, env)
	cr := approvedRequest(t, env, sub)

	cr, err := env.changes.Implement(ctx, cr.ID, "u-pm", false)
	require.NoError(t, err)
	require.Equal(t, changerequest.StatusImplemented, cr.Status)
	require.NotNil(t, cr.Snapshot)
	require.Equal(t, float64(100000), cr.Snapshot.Budget, "snapshot keeps the pre-change value")
	require.NotNil(t, cr.ImplementedAt)

	got, err := env.submissions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, float64(108000), got.Budget)
	require.Equal(t, submission.LifecycleLiveActive, got.Workflow.LifecycleStatus)

	cr, err = env.changes.Close(ctx, cr.ID, "u-pm")
	require.NoError(t, err)
	require.Equal(t, changerequest.StatusClosed, cr.Status)
}

func TestImplementWithCloseAfter(t *testing.T) {
	env := newTestEnv()
	sub := liveProject(t, env)
	cr := approvedRequest(t, env, sub)

	cr, err := env.changes.Implement(context.Background(), cr.ID, "u-pm", true)
	require.NoError(t, err)
	require.Equal(t, changerequest.StatusClosed, cr.Status)
	require.NotNil(t, cr.ImplementedAt)
}

func TestImplementRequiresApproval(t *testing.T) {
	env := newTestEnv()
	sub := liveProject(t, env)
	cr := submitted(t, env, sub)

	_, err := env.changes.Implement(context.Background(), cr.ID, "u-pm", false)
	var se *serrors.ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "INVALID_TRANSITION", se.Code)
}

func TestCumulativeGrowthEscalatesLaterChanges(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := liveProject(t, env)

	// First change lands a modest increase.
	cr := approvedRequest(t, env, sub)
	_, err := env.changes.Implement(ctx, cr.ID, "u-pm", true)
	require.NoError(t, err)

	// Second modest increase is small on its own but pushes the total past
	// the 25% cap over the original 100k budget.
	cr2, err := env.changes.CreateDraft(ctx, CreateChangeInput{
		ProjectID: sub.ID,
		Title:     "Second bump",
		Reason:    "contingency drawdown",
		Proposed:  changerequest.ProposedChanges{Budget: floatPtr(128000)},
		CreatedBy: "u-pm",
	})
	require.NoError(t, err)
	require.Equal(t, changerequest.SeverityCritical, cr2.Severity)
}

func TestCommentsAndAttachments(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := liveProject(t, env)
	cr := submitted(t, env, sub)

	cr, err := env.changes.AddComment(ctx, cr.ID, "u-pm", "heads up, vendor quote attached")
	require.NoError(t, err)
	require.Len(t, cr.Comments, 1)

	cr, err = env.changes.AddAttachment(ctx, cr.ID, "u-pm", "quote.pdf", "https://files.example.com/quote.pdf")
	require.NoError(t, err)
	require.Len(t, cr.Attachments, 1)

	_, err = env.changes.AddComment(ctx, cr.ID, "u-pm", "   ")
	require.Error(t, err)
}

func TestListByProjectNewestFirst(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := liveProject(t, env)

	for i, budget := range []float64{101000, 102000} {
		at := testClock.Add(time.Duration(i) * time.Hour)
		env.changes.now = func() time.Time { return at }
		_, err := env.changes.CreateDraft(ctx, CreateChangeInput{
			ProjectID: sub.ID,
			Title:     "Change",
			Reason:    "reason",
			Proposed:  changerequest.ProposedChanges{Budget: floatPtr(budget)},
			CreatedBy: "u-pm",
		})
		require.NoError(t, err)
	}

	out, err := env.changes.ListByProject(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.True(t, out[0].CreatedAt.After(out[1].CreatedAt))
}
