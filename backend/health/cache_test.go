package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingChecker struct {
	calls  atomic.Int32
	result Result
}

func (c *countingChecker) Check(ctx context.Context) Result {
	c.calls.Add(1)
	return c.result
}

func TestCachedChecker(t *testing.T) {
	inner := &countingChecker{result: Result{Healthy: true, Message: MessageHealthy}}
	cached, err := NewCachedChecker(inner, time.Minute)
	require.NoError(t, err)

	for range 3 {
		assert.Equal(t, inner.result, cached.Check(context.Background()))
	}
	assert.EqualValues(t, 1, inner.calls.Load())

	cached.Invalidate()
	cached.Check(context.Background())
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedChecker_CancelledContextNotCached(t *testing.T) {
	inner := &countingChecker{result: Result{Healthy: false, Message: "Failed to connect to API: context canceled"}}
	cached, err := NewCachedChecker(inner, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cached.Check(ctx)
	cached.Check(context.Background())

	assert.EqualValues(t, 2, inner.calls.Load())
}
