package rbac

import "fmt"

// Permissions.
const (
	PermissionUploadAsset      = "asset:upload"
	PermissionSendEmail        = "email:send"
	PermissionReadEmailLog     = "email:read"
	PermissionCheckCredentials = "email:credentials"
)

// Roles.
const (
	RoleSuperAdmin = "super-admin"
	RoleAdmin      = "admin"
	RoleViewer     = "viewer"
)

// Every authenticated staff member may upload, send and read the log;
// probing the mail credential is an operator task.
var rolePermissions = map[string][]string{
	RoleViewer: {
		PermissionUploadAsset,
		PermissionSendEmail,
		PermissionReadEmailLog,
	},
	RoleAdmin: {
		PermissionUploadAsset,
		PermissionSendEmail,
		PermissionReadEmailLog,
		PermissionCheckCredentials,
	},
	RoleSuperAdmin: {
		PermissionUploadAsset,
		PermissionSendEmail,
		PermissionReadEmailLog,
		PermissionCheckCredentials,
	},
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission reports whether role grants permission.
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission is HasPermission returning a *PermissionDeniedError.
func CheckPermission(userID int, role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError is returned when a role lacks a permission.
type PermissionDeniedError struct {
	UserID     int
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("insufficient permissions: role %q lacks %s", e.Role, e.Permission)
}
