package users

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/esakrissa/modern-isoner/internal/policy"
	"github.com/esakrissa/modern-isoner/internal/rbac"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

type memoryUsersRepo struct {
	users map[uuid.UUID]User
}

func newMemoryUsersRepo() *memoryUsersRepo {
	return &memoryUsersRepo{users: make(map[uuid.UUID]User)}
}

func (r *memoryUsersRepo) add(email string) User {
	user := User{ID: uuid.New(), Email: email, Name: email, IsActive: true, CreatedAt: time.Now().UTC()}
	r.users[user.ID] = user
	return user
}

func (r *memoryUsersRepo) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	user, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return user, nil
}

func (r *memoryUsersRepo) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	var out []User
	for _, user := range r.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryUsersRepo) CountUsers(ctx context.Context) (int, error) {
	return len(r.users), nil
}

type grantsResolver struct {
	grants map[uuid.UUID]map[string]bool
}

func (r grantsResolver) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	return r.grants[userID][permission], nil
}

type stubRoleSource map[uuid.UUID][]rbac.Role

func (s stubRoleSource) UserRoles(ctx context.Context, userID uuid.UUID) ([]rbac.Role, error) {
	return s[userID], nil
}

func TestGetUserSelfOnly(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryUsersRepo()
	svc := NewService(repo, nil, policy.NewGuard(grantsResolver{}))

	alice := repo.add("alice@example.com")
	bob := repo.add("bob@example.com")

	got, err := svc.GetUser(ctx, alice.ID, alice.ID)
	require.NoError(t, err)
	require.Equal(t, alice.Email, got.Email)

	_, err = svc.GetUser(ctx, alice.ID, bob.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = svc.GetUser(ctx, uuid.Nil, alice.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestListUsersRequiresPermission(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryUsersRepo()
	repo.add("alice@example.com")
	repo.add("bob@example.com")

	manager := uuid.New()
	resolver := grantsResolver{grants: map[uuid.UUID]map[string]bool{
		manager: {shared.PermViewUsers: true},
	}}
	svc := NewService(repo, nil, policy.NewGuard(resolver))

	users, pagination, err := svc.ListUsers(ctx, manager, 0, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, 2, pagination.Total)
	require.Equal(t, 1, pagination.TotalPages)

	_, _, err = svc.ListUsers(ctx, uuid.New(), 0, 0)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestUserRolesSelfOrPrivileged(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryUsersRepo()
	alice := repo.add("alice@example.com")
	bob := repo.add("bob@example.com")

	manager := uuid.New()
	resolver := grantsResolver{grants: map[uuid.UUID]map[string]bool{
		manager: {shared.PermViewUsers: true},
	}}
	roles := stubRoleSource{alice.ID: {{ID: uuid.New(), Name: shared.RoleUser}}}
	svc := NewService(repo, roles, policy.NewGuard(resolver))

	got, err := svc.UserRoles(ctx, alice.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, shared.RoleUser, got[0].Name)

	got, err = svc.UserRoles(ctx, manager, alice.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = svc.UserRoles(ctx, bob.ID, alice.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestListUsersPaginates(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryUsersRepo()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		repo.add(email)
	}

	manager := uuid.New()
	resolver := grantsResolver{grants: map[uuid.UUID]map[string]bool{
		manager: {shared.PermViewUsers: true},
	}}
	svc := NewService(repo, nil, policy.NewGuard(resolver))

	users, pagination, err := svc.ListUsers(ctx, manager, 2, 2)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "c@example.com", users[0].Email)
	require.Equal(t, 3, pagination.Total)
	require.Equal(t, 2, pagination.TotalPages)
}
