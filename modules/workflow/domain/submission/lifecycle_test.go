package submission

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycleTable_ExhaustiveAndTotal(t *testing.T) {
	all := AllLifecycleStatuses()
	require.Len(t, all, 14)
	require.Len(t, canonicalByLifecycle, 14)
	for _, ls := range all {
		_, ok := CanonicalFromLifecycle(ls)
		require.True(t, ok, "lifecycle %s has no canonical mapping", ls)
	}
}

func TestLifecycleRoundTrip_AllValues(t *testing.T) {
	for _, ls := range AllLifecycleStatuses() {
		cs, ok := CanonicalFromLifecycle(ls)
		require.True(t, ok)
		back, ok := LifecycleFromCanonical(cs.Stage, cs.Status)
		require.True(t, ok, "no inverse for %s/%s", cs.Stage, cs.Status)
		require.Equal(t, ls, back)
	}
}

func TestResolveCanonicalState_LifecycleIsAuthoritative(t *testing.T) {
	// Stale legacy text must lose to the lifecycle value.
	cs := ResolveCanonicalState("Idea", "Draft", WorkflowState{LifecycleStatus: LifecycleFundingSPOReview})
	require.Equal(t, CanonicalState{StageFunding, StatusSPOReview}, cs)
}

func TestResolveCanonicalState_LegacyVocabulary(t *testing.T) {
	cases := []struct {
		stage, status string
		want          CanonicalState
	}{
		{"Idea", "Draft", CanonicalState{StageProposal, StatusDraft}},
		{"business case", "Pending Sponsor", CanonicalState{StageProposal, StatusSponsorReview}},
		{"Funding Request", "PGO Review", CanonicalState{StageFunding, StatusPGOFGOReview}},
		{"Investment", "Endorsed", CanonicalState{StageFunding, StatusApproved}},
		{"Delivery", "In Progress", CanonicalState{StageLive, StatusActive}},
		{"Execution", "CR Review", CanonicalState{StageLive, StatusChangeReview}},
	}
	for _, tc := range cases {
		got := ResolveCanonicalState(tc.stage, tc.status, WorkflowState{})
		require.Equal(t, tc.want, got, "%s/%s", tc.stage, tc.status)
	}
}

func TestResolveCanonicalState_UnknownLegacyStageDefaults(t *testing.T) {
	got := ResolveCanonicalState("Mystery Phase", "Draft", WorkflowState{})
	require.Equal(t, StageProposal, got.Stage)

	got = ResolveCanonicalState("Mystery Phase", "Draft", WorkflowState{EntityType: "FUNDING_REQUEST"})
	require.Equal(t, StageFunding, got.Stage)

	got = ResolveCanonicalState("Mystery Phase", "Draft", WorkflowState{FundingStatus: "Funded"})
	require.Equal(t, StageFunding, got.Stage)
}

func TestResolveCanonicalState_CollapsedTerminalStatuses(t *testing.T) {
	// ARCHIVED and CLOSED are the enumerated round-trip exceptions: they
	// collapse into LIVE/ACTIVE no matter the legacy stage.
	for _, status := range []string{"Archived", "CLOSED"} {
		got := ResolveCanonicalState("Idea", status, WorkflowState{})
		require.Equal(t, CanonicalState{StageLive, StatusActive}, got, status)
	}
}

func TestResolveCanonicalState_StageStatusConsistency(t *testing.T) {
	// A live-ish status drags the stage to LIVE...
	got := ResolveCanonicalState("Idea", "Active", WorkflowState{})
	require.Equal(t, CanonicalState{StageLive, StatusActive}, got)

	// ...and a live stage with a draft-ish status reads as active.
	got = ResolveCanonicalState("Live", "Draft", WorkflowState{})
	require.Equal(t, CanonicalState{StageLive, StatusActive}, got)
}

func TestResolveLifecycle_DerivesFromLegacy(t *testing.T) {
	ls := ResolveLifecycle("Funding", "Submitted", WorkflowState{})
	require.Equal(t, LifecycleFundingSponsorReview, ls)
}

func TestIsWorkflowEditable(t *testing.T) {
	require.True(t, IsWorkflowEditable(LifecycleProposalDraft))
	require.True(t, IsWorkflowEditable(LifecycleFundingDraft))

	for _, ls := range AllLifecycleStatuses() {
		if ls == LifecycleProposalDraft || ls == LifecycleFundingDraft {
			continue
		}
		require.False(t, IsWorkflowEditable(ls), "%s must not be editable", ls)
	}
	require.False(t, IsWorkflowEditable("BOGUS"))
}

func TestSyncLegacyDisplay_NeverDisagrees(t *testing.T) {
	s := New("Data hall refresh", "pm@example.com", testNow())
	for _, ls := range AllLifecycleStatuses() {
		s.SetLifecycle(ls, testNow())
		cs := s.Canonical()
		require.Equal(t, string(cs.Stage), s.Stage)
		require.Equal(t, string(cs.Status), s.Status)
	}
}
