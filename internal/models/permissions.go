package models

// Resources guarded by role permissions
const (
	PermUsers         = "users"
	PermAlerts        = "alerts"
	PermEmail         = "email"
	PermSupportBundle = "support_bundle"
	PermAuditLog      = "auditlog"
)

// Permission actions
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

var allResources = []string{PermUsers, PermAlerts, PermEmail, PermSupportBundle, PermAuditLog}

// rolePermissions maps each role onto the actions it grants per resource
var rolePermissions = map[string][]string{
	RoleAdmin:   {ActionRead, ActionWrite},
	RoleManage:  {ActionRead, ActionWrite},
	RoleMonitor: {ActionRead},
}

// WriteRoles may change state through the API
var WriteRoles = []string{RoleAdmin, RoleManage}

// Permissions is the set of actions allowed per resource
type Permissions map[string]map[string]bool

// PermissionsForRoles merges the grants of every known role
func PermissionsForRoles(roles []string) Permissions {
	perms := make(Permissions, len(allResources))
	for _, res := range allResources {
		perms[res] = map[string]bool{}
	}
	for _, role := range roles {
		for _, action := range rolePermissions[role] {
			for _, res := range allResources {
				perms[res][action] = true
			}
		}
	}
	return perms
}

// Allows reports whether action on resource is granted
func (p Permissions) Allows(resource, action string) bool {
	return p[resource][action]
}
