package rbac

import (
	"errors"
	"testing"
)

func TestCheckPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		allowed    bool
	}{
		{RoleViewer, PermissionSendEmail, true},
		{RoleViewer, PermissionCheckCredentials, false},
		{RoleAdmin, PermissionCheckCredentials, true},
		{RoleSuperAdmin, PermissionUploadAsset, true},
		{"intern", PermissionReadEmailLog, false},
	}
	for _, tc := range tests {
		err := CheckPermission(7, tc.role, tc.permission)
		if tc.allowed && err != nil {
			t.Fatalf("%s/%s: unexpected error %v", tc.role, tc.permission, err)
		}
		if !tc.allowed {
			var denied *PermissionDeniedError
			if !errors.As(err, &denied) {
				t.Fatalf("%s/%s: expected PermissionDeniedError, got %v", tc.role, tc.permission, err)
			}
			if denied.UserID != 7 || denied.Permission != tc.permission {
				t.Fatalf("unexpected denial payload %+v", denied)
			}
		}
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole(RoleAdmin) || ValidRole("root") {
		t.Fatalf("ValidRole mismatch")
	}
}
