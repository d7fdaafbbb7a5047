// Package rbac provides role-based access control checks.
package rbac

import "github.com/NicolasHaas/radiolink/pkg/model"

// permissionMatrix maps roles to their allowed permissions.
var permissionMatrix = map[model.Role]map[model.Permission]bool{
	model.RoleAdmin: {
		model.PermTransmit:     true,
		model.PermViewJoinLogs: true,
	},
	model.RoleOperator: {
		model.PermTransmit: true,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role model.Role, perm model.Permission) bool {
	return permissionMatrix[role][perm]
}

// Can checks a permission for an identity; a nil identity has none.
func Can(id *model.Identity, perm model.Permission) bool {
	if id == nil {
		return false
	}
	return HasPermission(id.Role(), perm)
}
