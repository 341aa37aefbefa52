package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/esakrissa/modern-isoner/internal/policy"
	"github.com/esakrissa/modern-isoner/internal/rbac"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

// RoleSource is the slice of the RBAC service the users read side needs.
type RoleSource interface {
	UserRoles(ctx context.Context, userID uuid.UUID) ([]rbac.Role, error)
}

// Service wraps user reads behind the row-level policy guard.
type Service struct {
	repo  Repository
	roles RoleSource
	guard *policy.Guard
}

// NewService constructs a new Service.
func NewService(repo Repository, roles RoleSource, guard *policy.Guard) *Service {
	return &Service{repo: repo, roles: roles, guard: guard}
}

// GetUser returns a user row, visible only to its own subject.
func (s *Service) GetUser(ctx context.Context, caller, id uuid.UUID) (User, error) {
	if err := s.guard.CanReadUser(caller, id); err != nil {
		return User{}, err
	}
	return s.repo.GetUser(ctx, id)
}

// UserRoles returns the roles held by a user. Subjects may read their own
// assignments; reading anyone else's requires view_users.
func (s *Service) UserRoles(ctx context.Context, caller, target uuid.UUID) ([]rbac.Role, error) {
	if err := s.guard.CanViewUserRoles(ctx, caller, target); err != nil {
		return nil, err
	}
	return s.roles.UserRoles(ctx, target)
}

// ListUsers returns a page of users for callers holding view_users.
func (s *Service) ListUsers(ctx context.Context, caller uuid.UUID, page, perPage int) ([]User, shared.Pagination, error) {
	if err := s.guard.CanViewUsers(ctx, caller); err != nil {
		return nil, shared.Pagination{}, err
	}
	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)
	list, err := s.repo.ListUsers(ctx, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, pagination, nil
}
