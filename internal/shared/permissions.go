package shared

// Core platform permissions.
const (
	PermViewUsers           = "view_users"
	PermManageUsers         = "manage_users"
	PermViewConversations   = "view_conversations"
	PermManageConversations = "manage_conversations"
	PermAssignRoles         = "assign_roles"
	PermManagePermissions   = "manage_permissions"
	PermViewAnalytics       = "view_analytics"
	PermExportData          = "export_data"
)

// Default role names.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)
