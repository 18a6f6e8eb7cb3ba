package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatches_AnySingleFieldSuffices(t *testing.T) {
	assigned := Principal{UserID: "u-1", Email: "sponsor@example.com", ObjectID: "obj-9"}

	require.True(t, assigned.Matches(Principal{UserID: "u-1"}))
	require.True(t, assigned.Matches(Principal{Email: "sponsor@example.com"}))
	require.True(t, assigned.Matches(Principal{ObjectID: "obj-9"}))
}

func TestMatches_EmailCaseInsensitive(t *testing.T) {
	assigned := Principal{Email: "Sponsor@Example.COM"}
	require.True(t, assigned.Matches(Principal{Email: "sponsor@example.com"}))
	require.True(t, assigned.MatchesEmail("  SPONSOR@example.com "))
}

func TestMatches_EmptyFieldsNeverMatch(t *testing.T) {
	require.False(t, Principal{}.Matches(Principal{}))
	require.False(t, Principal{UserID: "u-1"}.Matches(Principal{Email: ""}))
	require.False(t, Principal{Email: " "}.Matches(Principal{Email: " "}))
}

func TestMatches_DifferentPeople(t *testing.T) {
	a := Principal{UserID: "u-1", Email: "a@example.com"}
	b := Principal{UserID: "u-2", Email: "b@example.com", ObjectID: "obj-2"}
	require.False(t, a.Matches(b))
}
