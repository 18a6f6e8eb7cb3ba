package submission

import (
	"strings"

	"github.com/northbeam/capitalgate/pkg/identity"
)

// RoleContext is a named approval role. The first six gate the main
// proposal/funding workflow; the last two exist only for change governance.
type RoleContext string

const (
	RoleBusinessSponsor  RoleContext = "BUSINESS_SPONSOR"
	RoleBusinessDelegate RoleContext = "BUSINESS_DELEGATE"
	RoleTechSponsor      RoleContext = "TECH_SPONSOR"
	RoleFinanceSponsor   RoleContext = "FINANCE_SPONSOR"
	RoleBenefitsSponsor  RoleContext = "BENEFITS_SPONSOR"
	RoleProjectManager   RoleContext = "PROJECT_MANAGER"

	RoleGovernanceReview RoleContext = "GOVERNANCE_REVIEW"
	RolePMOAdmin         RoleContext = "PMO_ADMIN"
)

// fundingOptionalRoles are required at funding gates only when a person is
// actually assigned; absence of an assignment is never a blocking condition.
var fundingOptionalRoles = []RoleContext{
	RoleBusinessDelegate, RoleFinanceSponsor, RoleTechSponsor, RoleBenefitsSponsor,
}

// RequiredRoleContexts determines which roles must approve at the
// submission's current canonical position. States without an open approval
// gate require no roles.
func (s *Submission) RequiredRoleContexts() []RoleContext {
	cs := s.Canonical()
	switch {
	case cs.Stage == StageProposal && cs.Status == StatusSponsorReview:
		return []RoleContext{RoleBusinessSponsor}
	case cs.Stage == StageFunding && (cs.Status == StatusSponsorReview || cs.Status == StatusPGOFGOReview):
		out := []RoleContext{RoleBusinessSponsor}
		for _, role := range fundingOptionalRoles {
			if s.Contact(role) != nil {
				out = append(out, role)
			}
		}
		return out
	}
	return nil
}

// Approver is a resolved concrete person for a role context.
type Approver struct {
	Principal   identity.Principal
	DisplayName string
}

// Resolvable reports whether the approver carries enough identity to be
// requested: a name or an email.
func (a Approver) Resolvable() bool {
	return strings.TrimSpace(a.DisplayName) != "" || strings.TrimSpace(a.Principal.Email) != ""
}

// ResolveApprover resolves a role context to a concrete person using the
// fallback chain: structured contact reference, then the legacy flat
// sponsor-name field, then none. The project manager role resolves through
// assignments instead of contacts.
func (s *Submission) ResolveApprover(role RoleContext) (Approver, bool) {
	if role == RoleProjectManager {
		if a, ok := s.AssignmentFor(RoleProjectManager); ok {
			ap := Approver{
				Principal:   identity.Principal{UserID: a.UserID, Email: a.Email, ObjectID: a.ObjectID},
				DisplayName: a.DisplayName,
			}
			return ap, ap.Resolvable()
		}
		return Approver{}, false
	}

	if c := s.Contact(role); c != nil {
		ap := Approver{Principal: c.Principal(), DisplayName: c.DisplayName}
		if ap.Resolvable() {
			return ap, true
		}
	}
	if name := strings.TrimSpace(s.LegacySponsorNames[role]); name != "" {
		return Approver{DisplayName: name}, true
	}
	return Approver{}, false
}

// ExpectedApproverEmail is the email a pending request for the role should
// currently be addressed to; empty when the role resolves to no one or to a
// name-only legacy entry.
func (s *Submission) ExpectedApproverEmail(role RoleContext) string {
	ap, ok := s.ResolveApprover(role)
	if !ok {
		return ""
	}
	return strings.TrimSpace(strings.ToLower(ap.Principal.Email))
}
