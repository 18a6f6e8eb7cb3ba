// Package directory is the user-directory collaborator: the core looks up
// people by email when resolving approvers and routing notifications.
package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/northbeam/capitalgate/pkg/identity"
)

type User struct {
	Principal   identity.Principal
	DisplayName string
}

type Directory interface {
	// FindUserByEmail returns (zero, false, nil) when no user matches;
	// the error is reserved for transport failures.
	FindUserByEmail(ctx context.Context, email string) (User, bool, error)
}

// InMemory is a fixed directory, used in tests and standalone deployments.
type InMemory struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

func NewInMemory(users ...User) *InMemory {
	d := &InMemory{byEmail: map[string]User{}}
	for _, u := range users {
		d.Add(u)
	}
	return d
}

func (d *InMemory) Add(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byEmail[strings.ToLower(strings.TrimSpace(u.Principal.Email))] = u
}

func (d *InMemory) FindUserByEmail(_ context.Context, email string) (User, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	return u, ok, nil
}
