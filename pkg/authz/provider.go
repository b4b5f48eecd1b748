// Package authz is the default authorization provider. Roles and
// permissions are bit masks; the role matrix can be overridden per role with
// scope keys of the form role.<name>: <permission>,<permission>.
package authz

import (
	"context"

	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/provider"
)

const ProviderID = "default"

type Factory struct {
	provider.BaseFactory
	matrix Matrix
}

var _ provider.Factory = (*Factory)(nil)

func NewFactory() *Factory {
	return &Factory{
		BaseFactory: provider.BaseFactory{Spi: model.SpiAuthorization, FactoryID: ProviderID},
		matrix:      DefaultMatrix(),
	}
}

func (f *Factory) Init(ctx context.Context, scope provider.Scope) error {
	matrix := DefaultMatrix()
	for _, name := range RoleNames() {
		raw := scope.Get("role." + name)
		if raw == "" {
			continue
		}
		perms, err := ParsePermissions(raw)
		if err != nil {
			return err
		}
		matrix[roleNames[name]] = perms
	}
	f.matrix = matrix
	return nil
}

func (f *Factory) Create(ctx context.Context, s provider.Session) (provider.Provider, error) {
	return &Provider{matrix: f.matrix.Clone()}, nil
}

type Provider struct {
	matrix Matrix
}

func (p *Provider) EffectivePermissions(roles RoleMask, direct PermissionMask) PermissionMask {
	return p.matrix.EffectivePermissions(roles, direct)
}

// Authorize reports whether roles plus direct grant every required permission.
func (p *Provider) Authorize(roles RoleMask, direct PermissionMask, required PermissionMask) bool {
	return HasAllPermissions(p.EffectivePermissions(roles, direct), required)
}

func (p *Provider) Close() error {
	return nil
}

// FromSession returns the session's authorization provider.
func FromSession(ctx context.Context, s provider.Session) (*Provider, error) {
	return provider.As[*Provider](ctx, s, model.SpiAuthorization)
}
