package policy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounter(t *testing.T) {
	ctx := context.Background()
	caller := CallerIdentity{UserID: "u1"}

	t.Run("CountsWithinWindows", func(t *testing.T) {
		c := NewMemoryCounter()
		for i := 0; i < 3; i++ {
			require.NoError(t, c.RecordExecution(ctx, caller))
		}

		minute, err := c.ExecutionsInLastMinute(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 3, minute)

		hour, err := c.ExecutionsInLastHour(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 3, hour)
	})

	t.Run("OldAttemptsFallOutOfTheMinuteWindow", func(t *testing.T) {
		c := NewMemoryCounter()
		current := time.Now()
		c.now = func() time.Time { return current }

		require.NoError(t, c.RecordExecution(ctx, caller))
		require.NoError(t, c.RecordExecution(ctx, caller))

		current = current.Add(2 * time.Minute)
		require.NoError(t, c.RecordExecution(ctx, caller))

		minute, err := c.ExecutionsInLastMinute(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 1, minute)

		hour, err := c.ExecutionsInLastHour(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 3, hour)
	})

	t.Run("CallersAreIndependent", func(t *testing.T) {
		c := NewMemoryCounter()
		require.NoError(t, c.RecordExecution(ctx, caller))

		count, err := c.ExecutionsInLastMinute(ctx, CallerIdentity{UserID: "u2"})
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("AnonymousCallersKeyByAddress", func(t *testing.T) {
		a := CallerIdentity{RemoteAddr: "10.0.0.1"}
		b := CallerIdentity{RemoteAddr: "10.0.0.2"}
		assert.NotEqual(t, a.Key(), b.Key())

		c := NewMemoryCounter()
		require.NoError(t, c.RecordExecution(ctx, a))
		count, err := c.ExecutionsInLastMinute(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestRedisCounter(t *testing.T) {
	ctx := context.Background()
	caller := CallerIdentity{UserID: "u1"}

	newTestCounter := func(t *testing.T) *RedisCounter {
		t.Helper()
		srv := miniredis.RunT(t)
		c := NewRedisCounter(srv.Addr())
		t.Cleanup(func() { _ = c.Close() })
		// Pin the clock mid-bucket so records and reads land in the same
		// minute/hour bucket regardless of when the test runs.
		now := time.Unix(90, 0)
		c.now = func() time.Time { return now }
		return c
	}

	t.Run("RecordsAndReads", func(t *testing.T) {
		c := newTestCounter(t)
		require.NoError(t, c.RecordExecution(ctx, caller))
		require.NoError(t, c.RecordExecution(ctx, caller))

		minute, err := c.ExecutionsInLastMinute(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 2, minute)

		hour, err := c.ExecutionsInLastHour(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 2, hour)
	})

	t.Run("EmptyBucketReadsZero", func(t *testing.T) {
		c := newTestCounter(t)
		count, err := c.ExecutionsInLastMinute(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("BucketsExpire", func(t *testing.T) {
		srv := miniredis.RunT(t)
		c := NewRedisCounter(srv.Addr())
		t.Cleanup(func() { _ = c.Close() })
		now := time.Unix(90, 0)
		c.now = func() time.Time { return now }

		require.NoError(t, c.RecordExecution(ctx, caller))
		srv.FastForward(3 * time.Hour)

		// The old buckets are gone and the clock has moved to new ones.
		now = now.Add(3 * time.Hour)
		minute, err := c.ExecutionsInLastMinute(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 0, minute)

		hour, err := c.ExecutionsInLastHour(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, 0, hour)
	})

	t.Run("UnreachableBackendSurfacesAnError", func(t *testing.T) {
		srv := miniredis.RunT(t)
		c := NewRedisCounter(srv.Addr())
		t.Cleanup(func() { _ = c.Close() })
		srv.Close()

		require.Error(t, c.RecordExecution(ctx, caller))
		_, err := c.ExecutionsInLastMinute(ctx, caller)
		require.Error(t, err)
	})
}
