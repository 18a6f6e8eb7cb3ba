// Package identity holds the single approver-identity matcher shared by every
// matching site. An approver may be referenced by internal user id, email, or
// an external directory object id; a match on any one of them is sufficient.
package identity

import "strings"

type Principal struct {
	UserID   string `json:"userId,omitempty"`
	Email    string `json:"email,omitempty"`
	ObjectID string `json:"objectId,omitempty"`
}

func (p Principal) IsZero() bool {
	return p.UserID == "" && strings.TrimSpace(p.Email) == "" && p.ObjectID == ""
}

// Matches reports whether two identity sets refer to the same person.
// Emails compare case-insensitively; empty fields never match.
func (p Principal) Matches(other Principal) bool {
	if p.UserID != "" && p.UserID == other.UserID {
		return true
	}
	if p.ObjectID != "" && p.ObjectID == other.ObjectID {
		return true
	}
	pe := strings.TrimSpace(strings.ToLower(p.Email))
	oe := strings.TrimSpace(strings.ToLower(other.Email))
	return pe != "" && pe == oe
}

// MatchesEmail is a convenience for sites that only track an email.
func (p Principal) MatchesEmail(email string) bool {
	return p.Matches(Principal{Email: email})
}
