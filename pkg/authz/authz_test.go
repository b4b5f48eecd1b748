package authz

import (
	"context"
	"testing"

	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectivePermissions(t *testing.T) {
	matrix := DefaultMatrix()

	effective := matrix.EffectivePermissions(RoleViewer|RoleImpersonator, PermissionManage)
	assert.True(t, HasAllPermissions(effective, PermissionView|PermissionManage|PermissionImpersonate))
	assert.False(t, HasAnyPermissions(effective, PermissionAdmin))
	assert.Equal(t, PermissionMask(0), matrix.EffectivePermissions(0, 0))
}

func TestParse(t *testing.T) {
	perms, err := ParsePermissions(" View , manage,")
	require.NoError(t, err)
	assert.Equal(t, PermissionView|PermissionManage, perms)

	roles, err := ParseRoles("viewer,ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleViewer|RoleAdmin, roles)

	_, err = ParsePermissions("fly")
	assert.Error(t, err)
	_, err = ParseRoles("pilot")
	assert.Error(t, err)
}

func TestFactoryScopeOverridesMatrix(t *testing.T) {
	f := NewFactory()
	require.NoError(t, f.Init(context.Background(), provider.NewScope(map[string]string{
		"role.viewer": "view,impersonate",
	})))

	p, err := f.Create(context.Background(), nil)
	require.NoError(t, err)
	authz := p.(*Provider)

	assert.True(t, authz.Authorize(RoleViewer, 0, PermissionImpersonate))
	assert.False(t, authz.Authorize(RoleViewer, 0, PermissionManage))
	assert.True(t, authz.Authorize(RoleManager, 0, PermissionManage))

	assert.Error(t, f.Init(context.Background(), provider.NewScope(map[string]string{"role.admin": "everything"})))
}
