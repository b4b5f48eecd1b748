package authz

import (
	"fmt"
	"sort"
	"strings"

	oerrors "github.com/porthorian/modeltest/pkg/errors"
)

type PermissionMask uint64

type RoleMask uint64

const (
	PermissionView PermissionMask = 1 << iota
	PermissionManage
	PermissionImpersonate
	PermissionAdmin
)

const (
	RoleViewer RoleMask = 1 << iota
	RoleManager
	RoleImpersonator
	RoleAdmin
)

var permissionNames = map[string]PermissionMask{
	"view":        PermissionView,
	"manage":      PermissionManage,
	"impersonate": PermissionImpersonate,
	"admin":       PermissionAdmin,
}

var roleNames = map[string]RoleMask{
	"viewer":       RoleViewer,
	"manager":      RoleManager,
	"impersonator": RoleImpersonator,
	"admin":        RoleAdmin,
}

// Matrix maps each role bit to the permissions it grants.
type Matrix map[RoleMask]PermissionMask

func DefaultMatrix() Matrix {
	return Matrix{
		RoleViewer:       PermissionView,
		RoleManager:      PermissionView | PermissionManage,
		RoleImpersonator: PermissionView | PermissionImpersonate,
		RoleAdmin:        PermissionView | PermissionManage | PermissionImpersonate | PermissionAdmin,
	}
}

func (m Matrix) Clone() Matrix {
	cloned := make(Matrix, len(m))
	for role, perms := range m {
		cloned[role] = perms
	}
	return cloned
}

func (m Matrix) EffectivePermissions(roles RoleMask, direct PermissionMask) PermissionMask {
	effective := direct
	for role, perms := range m {
		if roles&role != 0 {
			effective |= perms
		}
	}
	return effective
}

func HasAnyPermissions(current PermissionMask, required PermissionMask) bool {
	return current&required != 0
}

func HasAllPermissions(current PermissionMask, required PermissionMask) bool {
	return current&required == required
}

// ParsePermissions parses a comma separated list such as "view,manage".
func ParsePermissions(raw string) (PermissionMask, error) {
	var mask PermissionMask
	for _, name := range splitList(raw) {
		perm, ok := permissionNames[name]
		if !ok {
			return 0, oerrors.New(oerrors.CodeParameterInvalid, fmt.Sprintf("authz: unknown permission %q", name), nil)
		}
		mask |= perm
	}
	return mask, nil
}

// ParseRoles parses a comma separated list such as "viewer,admin".
func ParseRoles(raw string) (RoleMask, error) {
	var mask RoleMask
	for _, name := range splitList(raw) {
		role, ok := roleNames[name]
		if !ok {
			return 0, oerrors.New(oerrors.CodeParameterInvalid, fmt.Sprintf("authz: unknown role %q", name), nil)
		}
		mask |= role
	}
	return mask, nil
}

func RoleNames() []string {
	names := make([]string, 0, len(roleNames))
	for name := range roleNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func splitList(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			names = append(names, name)
		}
	}
	return names
}
