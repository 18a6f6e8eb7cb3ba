package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/northbeam/capitalgate/modules/workflow/domain/approval"
	"github.com/northbeam/capitalgate/modules/workflow/domain/submission"
	"github.com/northbeam/capitalgate/pkg/identity"
)

func reviewSubmission(t *testing.T, env *testEnv) *submission.Submission {
	t.Helper()
	sub := submission.New("ERP consolidation", "u-requester", testClock)
	sub.BusinessSponsor = sponsorContact()
	sub.SetLifecycle(submission.LifecycleProposalSponsorReview, testClock)
	require.NoError(t, env.submissions.Save(context.Background(), sub))
	return sub
}

func TestCreateRequestsIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := reviewSubmission(t, env)
	roles := sub.RequiredRoleContexts()

	first, err := env.approvals.CreateRequestsForSubmission(ctx, sub, roles, "u-requester")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := env.approvals.CreateRequestsForSubmission(ctx, sub, roles, "u-requester")
	require.NoError(t, err)
	require.Empty(t, second, "a pending row for the same role and approver must not be duplicated")

	rows, err := env.requests.ListByEntity(ctx, sub.ID, EntityTypeSubmission)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestCreateRequestsSkipsUnresolvableRoles(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := reviewSubmission(t, env)

	created, err := env.approvals.CreateRequestsForSubmission(ctx, sub,
		[]submission.RoleContext{submission.RoleBusinessSponsor, submission.RoleFinanceSponsor},
		"u-requester")
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, submission.RoleBusinessSponsor, created[0].Role)
}

func TestLegacyNameOnlySponsorGetsRequestWithoutEmail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := submission.New("Legacy import", "u-requester", testClock)
	sub.LegacySponsorNames = map[submission.RoleContext]string{
		submission.RoleBusinessSponsor: "Pat Legacy",
	}
	sub.SetLifecycle(submission.LifecycleProposalSponsorReview, testClock)
	require.NoError(t, env.submissions.Save(ctx, sub))

	created, err := env.approvals.CreateRequestsForSubmission(ctx, sub, sub.RequiredRoleContexts(), "u-requester")
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, "Pat Legacy", created[0].ApproverName)
	require.Empty(t, created[0].ApproverEmail)
}

func TestCancelPendingWhenRoleNoLongerRequired(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := reviewSubmission(t, env)
	_, err := env.approvals.CreateRequestsForSubmission(ctx, sub, sub.RequiredRoleContexts(), "u-requester")
	require.NoError(t, err)

	// Gate closes: back to draft, nothing is required anymore.
	sub.SetLifecycle(submission.LifecycleProposalDraft, testClock)

	cancelled, err := env.approvals.CancelPendingNoLongerRequired(ctx, sub, "submission withdrawn")
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	require.Equal(t, approval.StatusCancelled, cancelled[0].Status)
	require.Equal(t, "submission withdrawn", cancelled[0].CancelReason)
}

func TestCancelLeavesDecidedRowsAlone(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := reviewSubmission(t, env)
	created, err := env.approvals.CreateRequestsForSubmission(ctx, sub, sub.RequiredRoleContexts(), "u-requester")
	require.NoError(t, err)

	row := created[0]
	now := testClock
	row.Status = approval.StatusApproved
	row.DecidedAt = &now
	require.NoError(t, env.requests.Save(ctx, row))

	sub.SetLifecycle(submission.LifecycleProposalDraft, testClock)
	cancelled, err := env.approvals.CancelPendingNoLongerRequired(ctx, sub, "withdrawn")
	require.NoError(t, err)
	require.Empty(t, cancelled)
}

func TestCancelKeepsUnchangedNameOnlySponsor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := submission.New("Legacy import", "u-requester", testClock)
	sub.LegacySponsorNames = map[submission.RoleContext]string{
		submission.RoleBusinessSponsor: "Pat Legacy",
	}
	sub.SetLifecycle(submission.LifecycleProposalSponsorReview, testClock)
	require.NoError(t, env.submissions.Save(ctx, sub))
	_, err := env.approvals.CreateRequestsForSubmission(ctx, sub, sub.RequiredRoleContexts(), "u-requester")
	require.NoError(t, err)

	// The role is still required and the approver is unchanged; an empty
	// email on both sides is not a mismatch.
	cancelled, err := env.approvals.CancelPendingNoLongerRequired(ctx, sub, "sponsor assignment changed")
	require.NoError(t, err)
	require.Empty(t, cancelled)

	// A different name on the legacy field is a real replacement.
	sub.LegacySponsorNames[submission.RoleBusinessSponsor] = "Robin Replacement"
	cancelled, err = env.approvals.CancelPendingNoLongerRequired(ctx, sub, "sponsor assignment changed")
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	require.Equal(t, approval.StatusCancelled, cancelled[0].Status)
}

func TestListingsOrderNewestFirst(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	times := []time.Time{
		testClock,
		testClock.Add(time.Hour),
		testClock.Add(2 * time.Hour),
	}
	for i, at := range times {
		sub := submission.New("Project", "u-requester", at)
		sub.BusinessSponsor = sponsorContact()
		sub.SetLifecycle(submission.LifecycleProposalSponsorReview, at)
		require.NoError(t, env.submissions.Save(ctx, sub))

		env.approvals.now = func() time.Time { return times[i] }
		_, err := env.approvals.CreateRequestsForSubmission(ctx, sub, sub.RequiredRoleContexts(), "u-requester")
		require.NoError(t, err)
	}

	pending, err := env.approvals.ListPendingForPrincipal(ctx, identity.Principal{Email: "sponsor@example.com"})
	require.NoError(t, err)
	require.Len(t, pending, 3)
	require.True(t, pending[0].RequestedAt.After(pending[1].RequestedAt))
	require.True(t, pending[1].RequestedAt.After(pending[2].RequestedAt))

	mine, err := env.approvals.ListInitiatedBy(ctx, "u-requester")
	require.NoError(t, err)
	require.Len(t, mine, 3)
	require.True(t, mine[0].RequestedAt.After(mine[2].RequestedAt))
}

func TestDecideByRequestIDPinsTheRow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	sub := submission.New("Dual hat", "u-requester", testClock)
	shared := &submission.ContactRef{Email: "both@example.com", DisplayName: "Both Hats"}
	sub.BusinessSponsor = shared
	sub.FinanceSponsor = shared
	sub.SetLifecycle(submission.LifecycleFundingSponsorReview, testClock)
	require.NoError(t, env.submissions.Save(ctx, sub))

	created, err := env.approvals.CreateRequestsForSubmission(ctx, sub, sub.RequiredRoleContexts(), "u-requester")
	require.NoError(t, err)
	require.Len(t, created, 2)

	target := created[1]
	row, err := env.approvals.DecideForPrincipal(ctx, sub, DecideParams{
		Principal: identity.Principal{Email: "both@example.com"},
		Decision:  approval.DecisionApproved,
		RequestID: &target.ID,
	})
	require.NoError(t, err)
	require.Equal(t, target.ID, row.ID)
	require.Equal(t, target.Role, row.Role)
}

func TestDecideInvalidDecision(t *testing.T) {
	env := newTestEnv()
	sub := reviewSubmission(t, env)
	_, err := env.approvals.DecideForPrincipal(context.Background(), sub, DecideParams{
		Principal: identity.Principal{Email: "sponsor@example.com"},
		Decision:  approval.Decision("MAYBE"),
	})
	require.Error(t, err)
}
