package jobqueue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// newTestClient spins up an in-memory miniredis instance and a Client
// pointed at it, the same way the teacher's Redis-backed suites avoid a
// real Redis dependency in unit tests.
func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestEnqueueSchedulesTask(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	err := c.Enqueue(ctx, QueueSLATimer, "timer:req-1", "sla:timer", []byte(`{"requestID":"req-1"}`), EnqueueOptions{
		DelayMillis: 60_000,
		Attempts:    3,
	})
	require.NoError(t, err)

	// asynq stores scheduled tasks under a per-queue zset; confirm
	// something landed in Redis rather than reaching into asynq
	// internals.
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	keys, err := rdb.Keys(ctx, "asynq:*").Result()
	require.NoError(t, err)
	require.NotEmpty(t, keys)
}

func TestEnqueueSupersedesPriorJobWithSameID(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Enqueue(ctx, QueueSLATimer, "timer:req-2", "sla:timer", []byte(`{}`), EnqueueOptions{DelayMillis: 120_000}))
	// Re-enqueueing the same jobID should cancel-then-replace rather
	// than error or produce a duplicate.
	require.NoError(t, c.Enqueue(ctx, QueueSLATimer, "timer:req-2", "sla:timer", []byte(`{}`), EnqueueOptions{DelayMillis: 30_000}))
}

func TestCancelUnknownJobIsFalse(t *testing.T) {
	c, _ := newTestClient(t)
	require.False(t, c.Cancel(QueueSLATimer, "timer:does-not-exist"))
}

func TestBackoffDelayIncreasesWithAttempt(t *testing.T) {
	d0 := backoffDelay(0)
	d3 := backoffDelay(3)
	require.Greater(t, d3, d0)
}
