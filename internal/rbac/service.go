package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/esakrissa/modern-isoner/internal/shared"
)

// Service is the authorization resolver. Reads are pure snapshot queries;
// mutations invalidate cached decisions and leave an audit trail.
type Service struct {
	repo   Repository
	cache  *DecisionCache
	audit  *shared.AuditLogger
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs a Service. Cache and audit may be nil.
func NewService(repo Repository, cache *DecisionCache, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger}
}

// HasPermission decides whether the user holds the named permission through
// any of its roles. Absence of identity is absence of rights: an unknown
// user yields false, never an error.
func (s *Service) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	permission = strings.TrimSpace(permission)
	if userID == uuid.Nil || permission == "" {
		return false, nil
	}
	if granted, ok := s.cache.Get(ctx, userID, permission); ok {
		return granted, nil
	}
	key := fmt.Sprintf("%s:%s", userID, permission)
	v, err, _ := s.group.Do(key, func() (any, error) {
		granted, err := s.repo.HasPermission(ctx, userID, permission)
		if err != nil {
			return false, err
		}
		s.cache.Set(ctx, userID, permission, granted)
		return granted, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// UserRoles returns the roles held by the user. An unknown user holds none.
func (s *Service) UserRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	return s.repo.UserRoles(ctx, userID)
}

// RolePermissions returns the permissions granted to the role.
func (s *Service) RolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error) {
	if roleID == uuid.Nil {
		return nil, nil
	}
	return s.repo.RolePermissions(ctx, roleID)
}

// ListRoles returns all roles. Reference data is world-readable.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// FindRoleByName fetches a role by name.
func (s *Service) FindRoleByName(ctx context.Context, name string) (Role, error) {
	return s.repo.FindRoleByName(ctx, strings.TrimSpace(name))
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	role, err := s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, "role.create", "role", role.ID.String(), map[string]any{"name": role.Name})
	return role, nil
}

// DeleteRole removes a role. Grants and assignments fall away with the
// cascades, so cached decisions for every member are dropped first.
func (s *Service) DeleteRole(ctx context.Context, roleID uuid.UUID) error {
	members, err := s.repo.RoleMembers(ctx, roleID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	s.invalidateUsers(ctx, members)
	s.recordAudit(ctx, "role.delete", "role", roleID.String(), nil)
	return nil
}

// CreatePermission inserts a new permission.
func (s *Service) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, fmt.Errorf("%w: permission name required", shared.ErrValidation)
	}
	perm, err := s.repo.CreatePermission(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Permission{}, err
	}
	s.recordAudit(ctx, "permission.create", "permission", perm.ID.String(), map[string]any{"name": perm.Name})
	return perm, nil
}

// GrantPermission attaches a permission to a role. Idempotent.
func (s *Service) GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	if err := s.repo.GrantPermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	s.recordAudit(ctx, "permission.grant", "role", roleID.String(), map[string]any{"permission_id": permissionID.String()})
	return nil
}

// RevokePermission detaches a permission from a role.
func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	if err := s.repo.RevokePermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.invalidateRole(ctx, roleID)
	s.recordAudit(ctx, "permission.revoke", "role", roleID.String(), map[string]any{"permission_id": permissionID.String()})
	return nil
}

// AssignRole assigns a role to a user. Idempotent.
func (s *Service) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := s.repo.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.invalidateUsers(ctx, []uuid.UUID{userID})
	s.recordAudit(ctx, "role.assign", "user", userID.String(), map[string]any{"role_id": roleID.String()})
	return nil
}

// RemoveRole removes a role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := s.repo.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.invalidateUsers(ctx, []uuid.UUID{userID})
	s.recordAudit(ctx, "role.remove", "user", userID.String(), map[string]any{"role_id": roleID.String()})
	return nil
}

func (s *Service) invalidateRole(ctx context.Context, roleID uuid.UUID) {
	members, err := s.repo.RoleMembers(ctx, roleID)
	if err != nil {
		s.logger.Warn("rbac list role members", slog.Any("error", err))
		return
	}
	s.invalidateUsers(ctx, members)
}

func (s *Service) invalidateUsers(ctx context.Context, userIDs []uuid.UUID) {
	for _, id := range userIDs {
		if err := s.cache.InvalidateUser(ctx, id); err != nil {
			s.logger.Warn("rbac invalidate cache", slog.String("user_id", id.String()), slog.Any("error", err))
		}
	}
}

func (s *Service) recordAudit(ctx context.Context, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor, _ := shared.CallerFromContext(ctx)
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("rbac audit record", slog.String("action", action), slog.Any("error", err))
	}
}
