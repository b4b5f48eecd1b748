package provider

import (
	"strconv"
	"strings"
)

// SpiConfig configures one SPI: the default provider id and per provider
// key/value settings.
type SpiConfig struct {
	Provider  string                       `yaml:"provider"`
	Providers map[string]map[string]string `yaml:"providers"`
}

// Config maps SPI names to their configuration.
type Config map[string]SpiConfig

func (c Config) Scope(spi string, id string) Scope {
	if c == nil {
		return Scope{}
	}
	return Scope{values: c[spi].Providers[id]}
}

func (c Config) DefaultProvider(spi string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[spi].Provider)
}

// Merge returns a copy of c with the entries of other layered on top.
func (c Config) Merge(other Config) Config {
	merged := Config{}
	for _, source := range []Config{c, other} {
		for spi, cfg := range source {
			current := merged[spi]
			if cfg.Provider != "" {
				current.Provider = cfg.Provider
			}
			for id, values := range cfg.Providers {
				if current.Providers == nil {
					current.Providers = map[string]map[string]string{}
				}
				if current.Providers[id] == nil {
					current.Providers[id] = map[string]string{}
				}
				for key, value := range values {
					current.Providers[id][key] = value
				}
			}
			merged[spi] = current
		}
	}
	return merged
}

// Scope is the read-only configuration of a single provider factory.
type Scope struct {
	values map[string]string
}

func NewScope(values map[string]string) Scope {
	cloned := make(map[string]string, len(values))
	for key, value := range values {
		cloned[key] = value
	}
	return Scope{values: cloned}
}

func (s Scope) Get(key string) string {
	return strings.TrimSpace(s.values[key])
}

func (s Scope) GetDefault(key string, def string) string {
	if value := s.Get(key); value != "" {
		return value
	}
	return def
}

func (s Scope) GetBool(key string, def bool) bool {
	value := s.Get(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func (s Scope) GetInt(key string, def int) int {
	value := s.Get(key)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func (s Scope) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	return keys
}
