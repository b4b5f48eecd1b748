package executors

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/porthorian/modeltest/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, maxThreads string) *Provider {
	t.Helper()
	f := NewFactory()
	require.NoError(t, f.Init(context.Background(), provider.NewScope(map[string]string{"maxThreads": maxThreads})))
	p, err := f.Create(context.Background(), nil)
	require.NoError(t, err)
	return p.(*Provider)
}

func TestRunHonoursLimit(t *testing.T) {
	p := newProvider(t, "2")

	var running, peak atomic.Int32
	task := func(ctx context.Context) error {
		n := running.Add(1)
		for {
			current := peak.Load()
			if n <= current || peak.CompareAndSwap(current, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil
	}

	require.NoError(t, p.Run(context.Background(), task, task, task, task, task))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunReturnsFirstError(t *testing.T) {
	p := newProvider(t, "")

	err := p.Run(context.Background(),
		func(ctx context.Context) error { return assert.AnError },
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		nil,
	)
	assert.ErrorIs(t, err, assert.AnError)
}
