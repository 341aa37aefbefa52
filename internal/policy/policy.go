// Package policy enforces row-scoped access predicates at the service
// boundary. Every guarded operation is checked before any data is read or
// written, so a failing predicate never leaks partial rows. Endpoint-scoped
// permission gates (admin mutations) live in the rbac route middleware.
package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/esakrissa/modern-isoner/internal/shared"
)

// Resolver answers permission lookups. Satisfied by *rbac.Service.
type Resolver interface {
	HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error)
}

// Guard evaluates row-level predicates. All checks are fail-closed: an
// absent caller identity denies.
type Guard struct {
	resolver Resolver
}

// NewGuard constructs a Guard.
func NewGuard(resolver Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// CanReadUser permits reading a user row only for the row's own subject.
func (g *Guard) CanReadUser(caller, target uuid.UUID) error {
	if caller == uuid.Nil || caller != target {
		return shared.ErrPermissionDenied
	}
	return nil
}

// CanAccessConversation permits reads and writes on a conversation only for
// its owner. Messages inherit this predicate through their conversation.
func (g *Guard) CanAccessConversation(caller, ownerID uuid.UUID) error {
	if caller == uuid.Nil || caller != ownerID {
		return shared.ErrPermissionDenied
	}
	return nil
}

// CanViewUsers gates listing of user accounts.
func (g *Guard) CanViewUsers(ctx context.Context, caller uuid.UUID) error {
	return g.requirePermission(ctx, caller, shared.PermViewUsers)
}

// CanViewUserRoles permits reading role assignments for one's own account,
// or for any account when the caller may view users.
func (g *Guard) CanViewUserRoles(ctx context.Context, caller, target uuid.UUID) error {
	if caller != uuid.Nil && caller == target {
		return nil
	}
	return g.requirePermission(ctx, caller, shared.PermViewUsers)
}

func (g *Guard) requirePermission(ctx context.Context, caller uuid.UUID, permission string) error {
	if caller == uuid.Nil {
		return shared.ErrPermissionDenied
	}
	granted, err := g.resolver.HasPermission(ctx, caller, permission)
	if err != nil {
		return fmt.Errorf("policy: resolve %s: %w", permission, err)
	}
	if !granted {
		return shared.ErrPermissionDenied
	}
	return nil
}
