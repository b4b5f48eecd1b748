package modeltest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/porthorian/modeltest/pkg/catalog"
	"github.com/porthorian/modeltest/pkg/parameters"
	"github.com/porthorian/modeltest/pkg/provider"
	"gopkg.in/yaml.v3"
)

const (
	EnvParameters = "MODELTEST_PARAMETERS"
	EnvConfig     = "MODELTEST_CONFIG"
)

// Config describes one harness. Zero values select the built-in catalog,
// parameters.DefaultRegistry and a discarding logger.
type Config struct {
	// Parameters names the model parameter sets added to the baseline. Bare
	// names are qualified with the parameters namespace.
	Parameters []string
	Logger     logr.Logger
	Manager    provider.Manager
	Registry   *parameters.Registry
	Spi        provider.Config
}

// FileConfig is the YAML layout read by LoadConfigFile.
type FileConfig struct {
	Parameters []string        `yaml:"parameters"`
	Spi        provider.Config `yaml:"spi"`
}

// LoadConfigFile reads parameters and SPI scopes from a YAML file.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("modeltest config: read %s: %w", path, err)
	}

	var file FileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Config{}, fmt.Errorf("modeltest config: parse %s: %w", path, err)
	}

	return Config{
		Parameters: file.Parameters,
		Spi:        file.Spi,
	}, nil
}

// ConfigFromEnv builds a Config from MODELTEST_CONFIG and
// MODELTEST_PARAMETERS. Parameters from the environment follow those of the
// file.
func ConfigFromEnv() (Config, error) {
	var config Config

	if path := lookupEnv(EnvConfig); path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		config = loaded
	}

	config.Parameters = append(config.Parameters, parameters.ParseNames(lookupEnv(EnvParameters))...)
	return config, nil
}

func lookupEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func (c Config) initialize() (Config, error) {
	config := c
	config.Logger = resolveLogger(config.Logger)

	if config.Registry == nil {
		if err := catalog.RegisterDefaults(); err != nil {
			return Config{}, fmt.Errorf("modeltest config: register built-in parameters: %w", err)
		}
		config.Registry = parameters.DefaultRegistry
	}

	if config.Manager == nil {
		manager, err := catalog.NewManager(config.Logger)
		if err != nil {
			return Config{}, fmt.Errorf("modeltest config: build provider manager: %w", err)
		}
		config.Manager = manager
	}

	var names []string
	for _, name := range config.Parameters {
		names = append(names, parameters.ParseNames(name)...)
	}
	config.Parameters = names

	return config, nil
}

func joinClosers(closers ...func() error) func() error {
	return func() error {
		var errs []error

		for i := len(closers) - 1; i >= 0; i-- {
			if closers[i] == nil {
				continue
			}
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}

		return errors.Join(errs...)
	}
}

func noopCloser() error {
	return nil
}
