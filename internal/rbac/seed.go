package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/esakrissa/modern-isoner/internal/platform/db"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

var defaultRoles = []struct {
	name        string
	description string
}{
	{shared.RoleAdmin, "Full administrative access"},
	{shared.RoleManager, "Read access to users, conversations and analytics"},
	{shared.RoleUser, "Access to own conversations"},
}

var defaultPermissions = []struct {
	name        string
	description string
}{
	{shared.PermViewUsers, "View user accounts"},
	{shared.PermManageUsers, "Create, update and deactivate user accounts"},
	{shared.PermViewConversations, "View conversations"},
	{shared.PermManageConversations, "Close and manage conversations"},
	{shared.PermAssignRoles, "Assign roles to users"},
	{shared.PermManagePermissions, "Manage roles and permission grants"},
	{shared.PermViewAnalytics, "View usage analytics"},
	{shared.PermExportData, "Export stored data"},
}

// defaultGrants maps each default role to its permission set. admin is
// granted everything and is handled separately.
var defaultGrants = map[string][]string{
	shared.RoleManager: {
		shared.PermViewUsers,
		shared.PermViewConversations,
		shared.PermViewAnalytics,
		shared.PermExportData,
	},
	shared.RoleUser: {
		shared.PermViewConversations,
	},
}

// Seed inserts the default roles, permissions and grants in a single
// transaction. Re-running it is a no-op: every insert tolerates existing
// rows, so concurrent readers never observe a role with a partial grant set.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for _, role := range defaultRoles {
			if _, err := tx.Exec(ctx, `
				INSERT INTO roles (id, name, description, created_at)
				VALUES (gen_random_uuid(), $1, $2, NOW())
				ON CONFLICT (name) DO NOTHING`, role.name, role.description); err != nil {
				return fmt.Errorf("rbac: seed role %s: %w", role.name, err)
			}
		}
		for _, perm := range defaultPermissions {
			if _, err := tx.Exec(ctx, `
				INSERT INTO permissions (id, name, description, created_at)
				VALUES (gen_random_uuid(), $1, $2, NOW())
				ON CONFLICT (name) DO NOTHING`, perm.name, perm.description); err != nil {
				return fmt.Errorf("rbac: seed permission %s: %w", perm.name, err)
			}
		}

		// admin gets the full permission set.
		if _, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (id, role_id, permission_id, created_at)
			SELECT gen_random_uuid(), r.id, p.id, NOW()
			FROM roles r CROSS JOIN permissions p
			WHERE r.name = $1
			ON CONFLICT (role_id, permission_id) DO NOTHING`, shared.RoleAdmin); err != nil {
			return fmt.Errorf("rbac: seed admin grants: %w", err)
		}

		for roleName, permissions := range defaultGrants {
			for _, permName := range permissions {
				if _, err := tx.Exec(ctx, `
					INSERT INTO role_permissions (id, role_id, permission_id, created_at)
					SELECT gen_random_uuid(), r.id, p.id, NOW()
					FROM roles r JOIN permissions p ON p.name = $2
					WHERE r.name = $1
					ON CONFLICT (role_id, permission_id) DO NOTHING`, roleName, permName); err != nil {
					return fmt.Errorf("rbac: seed grant %s->%s: %w", roleName, permName, err)
				}
			}
		}
		return nil
	})
}
