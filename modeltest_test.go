package modeltest

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/porthorian/modeltest/pkg/catalog"
	oerrors "github.com/porthorian/modeltest/pkg/errors"
	"github.com/porthorian/modeltest/pkg/model"
	"github.com/porthorian/modeltest/pkg/parameters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingT struct {
	skipped bool
	failed  bool
	message string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Skipf(format string, args ...any) {
	r.skipped = true
	r.message = fmt.Sprintf(format, args...)
}

func (r *recordingT) Errorf(format string, args ...any) {
	r.failed = true
	r.message = fmt.Sprintf(format, args...)
}

func (r *recordingT) FailNow() {
	r.failed = true
}

func newRegistry(t *testing.T) *parameters.Registry {
	t.Helper()
	registry := parameters.NewRegistry()
	require.NoError(t, catalog.RegisterParameters(registry))
	return registry
}

func newHarness(t *testing.T, names ...string) *Harness {
	t.Helper()
	h, err := New(context.Background(), Config{
		Parameters: names,
		Logger:     testr.New(t),
		Registry:   newRegistry(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, h.Close())
	})
	return h
}

func TestBaselineOnlySkips(t *testing.T) {
	h := newHarness(t)

	rt := &recordingT{}
	assert.False(t, h.CheckValidParameters(rt))
	assert.True(t, rt.skipped)
	assert.Equal(t, "model parameters must be set", rt.message)
	assert.False(t, rt.failed)
}

func TestInvalidNamesAreSkipped(t *testing.T) {
	h := newHarness(t, "Missing", "Map", "com.example.Nope")

	assert.Equal(t, []string{parameters.BaselineName, catalog.MapParameters}, h.Whitelist().Names())

	rt := &recordingT{}
	assert.True(t, h.CheckValidParameters(rt))
	assert.False(t, rt.skipped)
}

func TestCommaSeparatedParameters(t *testing.T) {
	h := newHarness(t, "Map , Federation")
	assert.Equal(t, 3, h.Whitelist().Len())
}

func TestRequireProviders(t *testing.T) {
	h := newHarness(t, "Map")

	rt := &recordingT{}
	assert.True(t, h.RequireProviders(rt, model.SpiRealm, model.SpiUser, model.SpiAuthorization))
	assert.False(t, rt.skipped)

	assert.False(t, h.RequireProviders(rt, model.SpiRealm, model.SpiUserStorage, model.SpiClient))
	assert.True(t, rt.skipped)
	assert.Equal(t, "Provider must exist: userStorage", rt.message)
}

func TestFilteredProvidersStayHidden(t *testing.T) {
	h := newHarness(t, "Map")

	assert.Nil(t, h.Factory().ProviderFactory(model.SpiConnectionsSql))
	assert.Nil(t, h.Factory().ProviderFactoryByID(model.SpiRealm, "sql"))
	assert.Empty(t, h.Factory().ProviderFactories(model.ProviderTypeUserStorage))
}

func TestSharedRequiresInit(t *testing.T) {
	if shared.harness != nil {
		t.Skip("process harness already initialized")
	}
	_, err := Shared()
	assert.True(t, oerrors.IsCode(err, oerrors.CodeNotInitialized))
}

func TestCloseIsIdempotent(t *testing.T) {
	h, err := New(context.Background(), Config{Parameters: []string{"Map"}, Registry: newRegistry(t)})
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}
