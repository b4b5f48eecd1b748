package modeltest

import (
	"context"
	"testing"

	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredProvidersChain(t *testing.T) {
	root := &Suite{RequiredProviders: []string{model.SpiRealm}}
	child := &Suite{Parent: root, RequiredProviders: []string{model.SpiUser, model.SpiRealm}}

	assert.Equal(t, []string{model.SpiUser, model.SpiRealm, model.SpiRealm}, child.RequiredProvidersChain())
	assert.Empty(t, (&Suite{}).RequiredProvidersChain())
}

func TestSuiteRunsWithEnvironment(t *testing.T) {
	h := newHarness(t, "Map")

	root := &Suite{
		Harness:           h,
		RequiredProviders: []string{model.SpiRealm},
		CreateEnvironment: func(ctx context.Context, s *session.Session) error {
			return createRealm(ctx, s, "suite-env")
		},
		CleanEnvironment: func(ctx context.Context, s *session.Session) error {
			realms, err := model.Realms(ctx, s)
			if err != nil {
				return err
			}
			realm, err := realms.GetRealmByName(ctx, "suite-env")
			if err != nil {
				return err
			}
			_, err = realms.RemoveRealm(ctx, realm.ID)
			return err
		},
	}
	child := &Suite{Parent: root, RequiredProviders: []string{model.SpiUser}}

	ran := false
	child.Run(t, "environment", func(t *testing.T, h *Harness) {
		ran = true
		assert.True(t, realmExists(t, h, "suite-env"))
	})
	require.True(t, ran)
	assert.False(t, realmExists(t, h, "suite-env"))
}

func TestSuiteSkipsMissingProviders(t *testing.T) {
	h := newHarness(t, "Map")
	s := &Suite{Harness: h, RequiredProviders: []string{model.SpiUserStorage}}

	ran := false
	s.Run(t, "missing", func(t *testing.T, h *Harness) {
		ran = true
	})
	assert.False(t, ran)
}

func TestSuiteSkipsBaselineOnly(t *testing.T) {
	s := &Suite{Harness: newHarness(t)}

	ran := false
	s.Run(t, "baseline", func(t *testing.T, h *Harness) {
		ran = true
	})
	assert.False(t, ran)
}
