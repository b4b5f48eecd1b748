package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/porthorian/modeltest"
	"github.com/porthorian/modeltest/pkg/parameters"
	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/spf13/cobra"
)

type providersConfig struct {
	Parameters string
	ConfigPath string
	Overrides  []string
	Verbosity  int
}

func init() {
	rootCmd.AddCommand(newProvidersCommand())
}

func newProvidersCommand() *cobra.Command {
	cfg := providersConfig{}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List the SPIs and provider factories visible for a set of model parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadHarnessConfig(cfg)
			if err != nil {
				return err
			}
			config.Logger = newCLILogger(cfg.Verbosity)

			harness, err := modeltest.New(cmd.Context(), config)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := harness.Close(); closeErr != nil {
					cmd.PrintErrf("warning: failed to close harness cleanly: %v\n", closeErr)
				}
			}()

			cmd.Printf("parameters: %s\n", strings.Join(harness.Whitelist().Names(), ", "))
			factory := harness.Factory()
			for _, spi := range factory.Spis() {
				var ids []string
				for _, providerFactory := range factory.ProviderFactoriesBySpi(spi.Name) {
					ids = append(ids, providerFactory.ID())
				}

				defaultID := "-"
				if providerFactory := factory.ProviderFactory(spi.Name); providerFactory != nil {
					defaultID = providerFactory.ID()
				}
				visibility := "public"
				if spi.Internal {
					visibility = "internal"
				}
				cmd.Printf("%-24s %-8s type=%-16s default=%-8s factories=[%s]\n", spi.Name, visibility, spi.ProviderType, defaultID, strings.Join(ids, " "))
			}
			return nil
		},
	}

	providersCmd.Flags().StringVar(&cfg.Parameters, "parameters", "", "Comma separated model parameter sets. Can also be set via "+modeltest.EnvParameters+".")
	providersCmd.Flags().StringVar(&cfg.ConfigPath, "config", "", "YAML file with parameters and SPI scopes. Can also be set via "+modeltest.EnvConfig+".")
	providersCmd.Flags().StringArrayVar(&cfg.Overrides, "set", nil, "SPI scope override, <spi>.<provider>.<key>=<value> or <spi>.provider=<id>. Repeatable; applied over the config file.")
	providersCmd.Flags().IntVarP(&cfg.Verbosity, "verbose", "v", 0, "Log verbosity.")

	return providersCmd
}

// loadHarnessConfig layers flags over the environment: a --config file
// replaces MODELTEST_CONFIG, --parameters is appended to the result and
// --set overrides are merged over its SPI scopes.
func loadHarnessConfig(cfg providersConfig) (modeltest.Config, error) {
	var (
		config modeltest.Config
		err    error
	)
	if path := strings.TrimSpace(cfg.ConfigPath); path != "" {
		config, err = modeltest.LoadConfigFile(path)
		if err == nil {
			config.Parameters = append(config.Parameters, parameters.ParseNames(lookupEnv(modeltest.EnvParameters))...)
		}
	} else {
		config, err = modeltest.ConfigFromEnv()
	}
	if err != nil {
		return modeltest.Config{}, fmt.Errorf("load harness config: %w", err)
	}

	config.Parameters = append(config.Parameters, parameters.ParseNames(cfg.Parameters)...)

	overrides, err := parseScopeOverrides(cfg.Overrides)
	if err != nil {
		return modeltest.Config{}, err
	}
	config.Spi = config.Spi.Merge(overrides)
	return config, nil
}

func parseScopeOverrides(raw []string) (provider.Config, error) {
	overrides := provider.Config{}
	for _, item := range raw {
		path, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: expected <spi>.<provider>.<key>=<value>", item)
		}

		parts := strings.SplitN(strings.TrimSpace(path), ".", 3)
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				return nil, fmt.Errorf("invalid --set %q: empty path segment", item)
			}
		}

		spi := overrides[parts[0]]
		switch {
		case len(parts) == 2 && parts[1] == "provider":
			spi.Provider = strings.TrimSpace(value)
		case len(parts) == 3:
			if spi.Providers == nil {
				spi.Providers = map[string]map[string]string{}
			}
			if spi.Providers[parts[1]] == nil {
				spi.Providers[parts[1]] = map[string]string{}
			}
			spi.Providers[parts[1]][parts[2]] = value
		default:
			return nil, fmt.Errorf("invalid --set %q: expected <spi>.<provider>.<key>=<value> or <spi>.provider=<id>", item)
		}
		overrides[parts[0]] = spi
	}
	return overrides, nil
}

func newCLILogger(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: verbosity})
}
