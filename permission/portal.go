package permission

// Portal permissions.
const (
	TasksRead        = "tasks:read"
	TasksUpdate      = "tasks:update"
	TasksManage      = "tasks:manage"
	UsersRead        = "users:read"
	UsersManage      = "users:manage"
	CategoriesRead   = "categories:read"
	CategoriesManage = "categories:manage"
)

// Portal roles.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// PortalPermissions lists every permission the portal checks, in bit order.
var PortalPermissions = []string{
	TasksRead,
	TasksUpdate,
	TasksManage,
	UsersRead,
	UsersManage,
	CategoriesRead,
	CategoriesManage,
}

// PortalRoles returns the default grants for non-root roles.
func PortalRoles() map[string][]string {
	return map[string][]string{
		RoleUser:  {TasksRead, TasksUpdate, CategoriesRead},
		RoleAdmin: {TasksRead, TasksUpdate, CategoriesRead, UsersRead},
	}
}

// NewPortalRoleManager builds the frozen default role set: user and admin from
// [PortalRoles], superadmin holding the root bit.
func NewPortalRoleManager() (*RoleManager, error) {
	registry := NewRegistry(true)
	for _, p := range PortalPermissions {
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	rm := NewRoleManager(registry)
	for role, perms := range PortalRoles() {
		if err := rm.RegisterRole(role, perms); err != nil {
			return nil, err
		}
	}
	if err := rm.RegisterRootRole(RoleSuperAdmin); err != nil {
		return nil, err
	}
	rm.Freeze()
	return rm, nil
}
