// Package identity provides the user directory: names, emails and roles for
// the ids carried by tokens and order assignments.
package identity

import (
	"context"

	"workorders_backend/internal/identity/service"
)

// User is one directory entry.
type User = service.User

// Directory resolves user ids to contact details.
// Other domains should depend on this interface, not on concrete implementations.
type Directory interface {
	GetUser(ctx context.Context, userID string) (User, error)
}

var _ Directory = (*service.Service)(nil)
