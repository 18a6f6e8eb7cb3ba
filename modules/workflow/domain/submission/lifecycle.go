package submission

import "strings"

// Stage is the canonical three-stage axis.
type Stage string

const (
	StageProposal Stage = "PROPOSAL"
	StageFunding  Stage = "FUNDING"
	StageLive     Stage = "LIVE"
)

// Status is the canonical eight-status axis.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusSponsorReview Status = "SPONSOR_REVIEW"
	StatusPGOFGOReview  Status = "PGO_FGO_REVIEW"
	StatusSPOReview     Status = "SPO_REVIEW"
	StatusRejected      Status = "REJECTED"
	StatusApproved      Status = "APPROVED"
	StatusActive        Status = "ACTIVE"
	StatusChangeReview  Status = "CHANGE_REVIEW"
)

// LifecycleStatus is the persisted enum that is authoritative for a
// submission's position. Canonical stage/status are always re-derived
// from it.
type LifecycleStatus string

const (
	LifecycleProposalDraft         LifecycleStatus = "PROPOSAL_DRAFT"
	LifecycleProposalSponsorReview LifecycleStatus = "PROPOSAL_SPONSOR_REVIEW"
	LifecycleProposalPGOFGOReview  LifecycleStatus = "PROPOSAL_PGO_FGO_REVIEW"
	LifecycleProposalSPOReview     LifecycleStatus = "PROPOSAL_SPO_REVIEW"
	LifecycleProposalRejected      LifecycleStatus = "PROPOSAL_REJECTED"
	LifecycleProposalApproved      LifecycleStatus = "PROPOSAL_APPROVED"
	LifecycleFundingDraft          LifecycleStatus = "FUNDING_DRAFT"
	LifecycleFundingSponsorReview  LifecycleStatus = "FUNDING_SPONSOR_REVIEW"
	LifecycleFundingPGOFGOReview   LifecycleStatus = "FUNDING_PGO_FGO_REVIEW"
	LifecycleFundingSPOReview      LifecycleStatus = "FUNDING_SPO_REVIEW"
	LifecycleFundingRejected       LifecycleStatus = "FUNDING_REJECTED"
	LifecycleFundingApproved       LifecycleStatus = "FUNDING_APPROVED"
	LifecycleLiveActive            LifecycleStatus = "LIVE_ACTIVE"
	LifecycleLiveChangeReview      LifecycleStatus = "LIVE_CHANGE_REVIEW"
)

type CanonicalState struct {
	Stage  Stage  `json:"stage"`
	Status Status `json:"status"`
}

// canonicalByLifecycle is the single place encoding the full state space.
// It must stay exhaustive and total over LifecycleStatus; the lifecycle
// round-trip test enforces this.
var canonicalByLifecycle = map[LifecycleStatus]CanonicalState{
	LifecycleProposalDraft:         {StageProposal, StatusDraft},
	LifecycleProposalSponsorReview: {StageProposal, StatusSponsorReview},
	LifecycleProposalPGOFGOReview:  {StageProposal, StatusPGOFGOReview},
	LifecycleProposalSPOReview:     {StageProposal, StatusSPOReview},
	LifecycleProposalRejected:      {StageProposal, StatusRejected},
	LifecycleProposalApproved:      {StageProposal, StatusApproved},
	LifecycleFundingDraft:          {StageFunding, StatusDraft},
	LifecycleFundingSponsorReview:  {StageFunding, StatusSponsorReview},
	LifecycleFundingPGOFGOReview:   {StageFunding, StatusPGOFGOReview},
	LifecycleFundingSPOReview:      {StageFunding, StatusSPOReview},
	LifecycleFundingRejected:       {StageFunding, StatusRejected},
	LifecycleFundingApproved:       {StageFunding, StatusApproved},
	LifecycleLiveActive:            {StageLive, StatusActive},
	LifecycleLiveChangeReview:      {StageLive, StatusChangeReview},
}

// AllLifecycleStatuses returns the full enum in canonical order.
func AllLifecycleStatuses() []LifecycleStatus {
	return []LifecycleStatus{
		LifecycleProposalDraft, LifecycleProposalSponsorReview, LifecycleProposalPGOFGOReview,
		LifecycleProposalSPOReview, LifecycleProposalRejected, LifecycleProposalApproved,
		LifecycleFundingDraft, LifecycleFundingSponsorReview, LifecycleFundingPGOFGOReview,
		LifecycleFundingSPOReview, LifecycleFundingRejected, LifecycleFundingApproved,
		LifecycleLiveActive, LifecycleLiveChangeReview,
	}
}

// CanonicalFromLifecycle maps a lifecycle value to its stage/status pair.
func CanonicalFromLifecycle(ls LifecycleStatus) (CanonicalState, bool) {
	cs, ok := canonicalByLifecycle[ls]
	return cs, ok
}

// LifecycleFromCanonical is the left-inverse of CanonicalFromLifecycle for
// every pair reachable through normal transitions.
func LifecycleFromCanonical(stage Stage, status Status) (LifecycleStatus, bool) {
	switch stage {
	case StageProposal:
		switch status {
		case StatusDraft:
			return LifecycleProposalDraft, true
		case StatusSponsorReview:
			return LifecycleProposalSponsorReview, true
		case StatusPGOFGOReview:
			return LifecycleProposalPGOFGOReview, true
		case StatusSPOReview:
			return LifecycleProposalSPOReview, true
		case StatusRejected:
			return LifecycleProposalRejected, true
		case StatusApproved:
			return LifecycleProposalApproved, true
		}
	case StageFunding:
		switch status {
		case StatusDraft:
			return LifecycleFundingDraft, true
		case StatusSponsorReview:
			return LifecycleFundingSponsorReview, true
		case StatusPGOFGOReview:
			return LifecycleFundingPGOFGOReview, true
		case StatusSPOReview:
			return LifecycleFundingSPOReview, true
		case StatusRejected:
			return LifecycleFundingRejected, true
		case StatusApproved:
			return LifecycleFundingApproved, true
		}
	case StageLive:
		switch status {
		case StatusActive:
			return LifecycleLiveActive, true
		case StatusChangeReview:
			return LifecycleLiveChangeReview, true
		}
	}
	return "", false
}

// Legacy free-text vocabulary. Keys are upper-cased before lookup.
var legacyStageTable = map[string]Stage{
	"IDEA":            StageProposal,
	"CONCEPT":         StageProposal,
	"PROPOSAL":        StageProposal,
	"INITIATION":      StageProposal,
	"BUSINESS CASE":   StageProposal,
	"FUNDING":         StageFunding,
	"FUNDING REQUEST": StageFunding,
	"INVESTMENT":      StageFunding,
	"BUSINESS PLAN":   StageFunding,
	"LIVE":            StageLive,
	"DELIVERY":        StageLive,
	"EXECUTION":       StageLive,
	"IN FLIGHT":       StageLive,
}

var legacyStatusTable = map[string]Status{
	"DRAFT":             StatusDraft,
	"NEW":               StatusDraft,
	"OPEN":              StatusDraft,
	"SUBMITTED":         StatusSponsorReview,
	"SPONSOR REVIEW":    StatusSponsorReview,
	"PENDING SPONSOR":   StatusSponsorReview,
	"AWAITING SPONSOR":  StatusSponsorReview,
	"IN GOVERNANCE":     StatusPGOFGOReview,
	"GOVERNANCE REVIEW": StatusPGOFGOReview,
	"PGO REVIEW":        StatusPGOFGOReview,
	"FGO REVIEW":        StatusPGOFGOReview,
	"SPO REVIEW":        StatusSPOReview,
	"PORTFOLIO REVIEW":  StatusSPOReview,
	"REJECTED":          StatusRejected,
	"DECLINED":          StatusRejected,
	"NOT APPROVED":      StatusRejected,
	"APPROVED":          StatusApproved,
	"ENDORSED":          StatusApproved,
	"ACTIVE":            StatusActive,
	"IN PROGRESS":       StatusActive,
	"IN DELIVERY":       StatusActive,
	"CHANGE REVIEW":     StatusChangeReview,
	"CR REVIEW":         StatusChangeReview,
}

// Terminal legacy statuses collapse into LIVE/ACTIVE; these are the
// enumerated exceptions to the round-trip property.
var legacyCollapsedStatuses = map[string]bool{
	"ARCHIVED": true,
	"CLOSED":   true,
}

// ResolveCanonicalState maps a submission's position to the canonical pair.
// A set lifecycle status is authoritative; otherwise the legacy free-text
// vocabulary is consulted, with workflow hints breaking stage ties.
func ResolveCanonicalState(legacyStage, legacyStatus string, wf WorkflowState) CanonicalState {
	if wf.LifecycleStatus != "" {
		if cs, ok := canonicalByLifecycle[wf.LifecycleStatus]; ok {
			return cs
		}
	}

	rawStatus := strings.ToUpper(strings.TrimSpace(legacyStatus))
	if legacyCollapsedStatuses[rawStatus] {
		return CanonicalState{StageLive, StatusActive}
	}

	stage, stageKnown := legacyStageTable[strings.ToUpper(strings.TrimSpace(legacyStage))]
	if !stageKnown {
		stage = StageProposal
		if hintsFunding(wf) {
			stage = StageFunding
		}
	}

	status, statusKnown := legacyStatusTable[rawStatus]
	if !statusKnown {
		status = StatusDraft
	}

	// An active/change-review status implies a live project regardless of
	// what the legacy stage field claims, and vice versa.
	if status == StatusActive || status == StatusChangeReview {
		stage = StageLive
	} else if stage == StageLive {
		status = StatusActive
	}

	return CanonicalState{stage, status}
}

func hintsFunding(wf WorkflowState) bool {
	if wf.EntityType == "FUNDING_REQUEST" {
		return true
	}
	switch wf.FundingStatus {
	case "Funded", "Live":
		return true
	}
	return false
}

// ResolveLifecycle returns the authoritative lifecycle value for a
// submission, deriving one from the legacy vocabulary when unset.
func ResolveLifecycle(legacyStage, legacyStatus string, wf WorkflowState) LifecycleStatus {
	if wf.LifecycleStatus != "" {
		if _, ok := canonicalByLifecycle[wf.LifecycleStatus]; ok {
			return wf.LifecycleStatus
		}
	}
	cs := ResolveCanonicalState(legacyStage, legacyStatus, wf)
	ls, _ := LifecycleFromCanonical(cs.Stage, cs.Status)
	return ls
}

// IsWorkflowEditable reports whether the submission may still be edited
// through the plain workflow path. Live projects are never editable here;
// they must go through change requests.
func IsWorkflowEditable(ls LifecycleStatus) bool {
	cs, ok := canonicalByLifecycle[ls]
	if !ok {
		return false
	}
	return cs.Status == StatusDraft && cs.Stage != StageLive
}
