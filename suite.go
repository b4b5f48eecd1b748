package modeltest

import (
	"context"
	"testing"
)

// Suite groups tests that share required providers and per-test
// environment jobs. A suite inherits the required providers of its parents.
type Suite struct {
	Harness *Harness
	Parent  *Suite

	// RequiredProviders lists SPI names that need a visible provider factory.
	// Repeats are allowed.
	RequiredProviders []string

	// CreateEnvironment runs in its own committed transaction before each
	// test, after those of the parents; CleanEnvironment runs the same way
	// after it, before those of the parents.
	CreateEnvironment Job
	CleanEnvironment  Job
}

// RequiredProvidersChain collects the required providers of s and of every
// ancestor, starting with s.
func (s *Suite) RequiredProvidersChain() []string {
	var spis []string
	for suite := s; suite != nil; suite = suite.Parent {
		spis = append(spis, suite.RequiredProviders...)
	}
	return spis
}

func (s *Suite) harness() *Harness {
	for suite := s; suite != nil; suite = suite.Parent {
		if suite.Harness != nil {
			return suite.Harness
		}
	}
	return nil
}

// lineage lists s and its ancestors, outermost first.
func (s *Suite) lineage() []*Suite {
	var chain []*Suite
	for suite := s; suite != nil; suite = suite.Parent {
		chain = append([]*Suite{suite}, chain...)
	}
	return chain
}

// Run runs fn as a subtest of t. The subtest is skipped when no parameter
// set was configured or a required provider is missing.
func (s *Suite) Run(t *testing.T, name string, fn func(t *testing.T, h *Harness)) bool {
	t.Helper()
	return t.Run(name, func(t *testing.T) {
		h := s.harness()
		if h == nil {
			var err error
			if h, err = Shared(); err != nil {
				t.Fatalf("modeltest harness: %v", err)
			}
		}

		if !h.CheckValidParameters(t) || !h.RequireProviders(t, s.RequiredProvidersChain()...) {
			return
		}

		ctx := context.Background()
		for _, suite := range s.lineage() {
			if suite.CreateEnvironment != nil {
				if err := h.RunJobInTransaction(ctx, suite.CreateEnvironment); err != nil {
					t.Fatalf("create environment: %v", err)
				}
			}
			if suite.CleanEnvironment != nil {
				clean := suite.CleanEnvironment
				t.Cleanup(func() {
					if err := h.RunJobInTransaction(ctx, clean); err != nil {
						t.Errorf("clean environment: %v", err)
					}
				})
			}
		}

		fn(t, h)
	})
}
