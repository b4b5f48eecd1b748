package modeltest

import (
	"context"

	"github.com/porthorian/modeltest/pkg/session"
	"github.com/stretchr/testify/require"
)

// SkipT is the part of testing.TB the skip rules need.
type SkipT interface {
	Helper()
	Skipf(format string, args ...any)
}

// TestingT is the part of testing.TB the federation helper needs.
type TestingT interface {
	require.TestingT
	Helper()
}

// Job is caller logic run against a session.
type Job func(ctx context.Context, s *session.Session) error

// ParameterJob is caller logic run against a session with a test parameter.
type ParameterJob[T any] func(ctx context.Context, s *session.Session, parameter T) error
