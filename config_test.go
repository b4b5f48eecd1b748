package modeltest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigFile = `
parameters:
  - Map
spi:
  connectionsSql:
    providers:
      default:
        driver: sqlite
        migrate: "true"
`

func TestConfigFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modeltest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigFile), 0o600))

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvParameters, " Federation, Sql ")

	config, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"Map", "Federation", "Sql"}, config.Parameters)
	assert.Equal(t, "sqlite", config.Spi.Scope("connectionsSql", "default").Get("driver"))
}

func TestConfigFromEnvWithoutFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvParameters, "Map")

	config, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"Map"}, config.Parameters)
}

func TestLoadConfigFileErrors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parameters: [unterminated"), 0o600))
	_, err = LoadConfigFile(path)
	assert.Error(t, err)
}

func TestJoinClosersRunInReverse(t *testing.T) {
	var order []int
	closer := joinClosers(
		func() error { order = append(order, 1); return nil },
		nil,
		func() error { order = append(order, 2); return assert.AnError },
	)

	assert.ErrorIs(t, closer(), assert.AnError)
	assert.Equal(t, []int{2, 1}, order)
}
