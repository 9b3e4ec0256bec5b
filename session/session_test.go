package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jaclearn/runbox/sandbox"
)

func resultWith(status sandbox.Status, wallTime time.Duration) sandbox.ExecutionResult {
	return sandbox.ExecutionResult{Status: status, WallTime: wallTime}
}

func TestSessionLifecycle(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	h := m.Open()

	require.NoError(t, m.Record(h, resultWith(sandbox.StatusCompleted, 100*time.Millisecond)))
	require.NoError(t, m.Record(h, resultWith(sandbox.StatusFailed, 50*time.Millisecond)))
	require.NoError(t, m.Record(h, resultWith(sandbox.StatusTimedOut, 200*time.Millisecond)))

	summary, err := m.Close(h)
	require.NoError(t, err)

	assert.Equal(t, h, summary.ID)
	assert.Equal(t, 3, summary.TotalExecutions)
	assert.Equal(t, 1, summary.SuccessfulExecutions)
	assert.Equal(t, 2, summary.FailedExecutions)
	assert.Equal(t, 350*time.Millisecond, summary.TotalExecutionTime)
	assert.False(t, summary.IsActive)
	assert.False(t, summary.EndedAt.Before(summary.StartedAt))
}

func TestSessionOnlyCompletedCountsAsSuccess(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	h := m.Open()

	for _, status := range []sandbox.Status{
		sandbox.StatusCompleted,
		sandbox.StatusFailed,
		sandbox.StatusTimedOut,
		sandbox.StatusRejected,
		sandbox.StatusCancelled,
	} {
		require.NoError(t, m.Record(h, resultWith(status, 0)))
	}

	summary, err := m.Close(h)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalExecutions)
	assert.Equal(t, 1, summary.SuccessfulExecutions)
	assert.Equal(t, 4, summary.FailedExecutions)
}

func TestSessionSnapshot(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	h := m.Open()

	require.NoError(t, m.Record(h, resultWith(sandbox.StatusCompleted, time.Second)))

	snap, err := m.Snapshot(h)
	require.NoError(t, err)
	assert.True(t, snap.IsActive)
	assert.Equal(t, 1, snap.TotalExecutions)
	assert.True(t, snap.EndedAt.IsZero())

	// Snapshot does not close: recording afterwards still works.
	require.NoError(t, m.Record(h, resultWith(sandbox.StatusCompleted, time.Second)))
	snap, err = m.Snapshot(h)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.TotalExecutions)
}

func TestSessionUnknownHandle(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	unknown := uuid.New()

	assert.Error(t, m.Record(unknown, resultWith(sandbox.StatusCompleted, 0)))
	_, err := m.Close(unknown)
	assert.Error(t, err)
	_, err = m.Snapshot(unknown)
	assert.Error(t, err)
}

func TestSessionDoubleCloseIsAnError(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	h := m.Open()

	_, err := m.Close(h)
	require.NoError(t, err)
	_, err = m.Close(h)
	assert.Error(t, err)
}

func TestSessionRecordAfterClosePanics(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	h := m.Open()

	_, err := m.Close(h)
	require.NoError(t, err)

	require.Panics(t, func() {
		_ = m.Record(h, resultWith(sandbox.StatusCompleted, 0))
	})
}

func TestSessionRecordIfActive(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	h := m.Open()

	require.NoError(t, m.RecordIfActive(h, resultWith(sandbox.StatusCompleted, 0)))

	_, err := m.Close(h)
	require.NoError(t, err)

	// A stale handle is an error, never a panic.
	require.NotPanics(t, func() {
		err = m.RecordIfActive(h, resultWith(sandbox.StatusCompleted, 0))
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionClosed)

	snap, err := m.Snapshot(h)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalExecutions)

	assert.Error(t, m.RecordIfActive(uuid.New(), resultWith(sandbox.StatusCompleted, 0)))
}

func TestSessionEviction(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	current := time.Now()
	m.now = func() time.Time { return current }

	old := m.Open()
	_, err := m.Close(old)
	require.NoError(t, err)

	// Still addressable within the retention window.
	_, err = m.Snapshot(old)
	require.NoError(t, err)

	current = current.Add(2 * closedRetention)
	fresh := m.Open() // sweeps stale closed sessions

	_, err = m.Snapshot(old)
	assert.Error(t, err)
	require.NotPanics(t, func() {
		err = m.Record(old, resultWith(sandbox.StatusCompleted, 0))
	})
	assert.Error(t, err)

	// Open sessions are never evicted, whatever their age.
	_, err = m.Snapshot(fresh)
	require.NoError(t, err)
	current = current.Add(2 * closedRetention)
	m.Open()
	_, err = m.Snapshot(fresh)
	require.NoError(t, err)
}

func TestSessionConcurrentRecording(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	h := m.Open()

	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_ = m.Record(h, resultWith(sandbox.StatusCompleted, time.Millisecond))
			}
		}()
	}
	wg.Wait()

	summary, err := m.Close(h)
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, summary.TotalExecutions)
	assert.Equal(t, workers*perWorker, summary.SuccessfulExecutions)
	assert.Equal(t, time.Duration(workers*perWorker)*time.Millisecond, summary.TotalExecutionTime)
}

func TestSessionsAreIndependent(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	a := m.Open()
	b := m.Open()
	require.NotEqual(t, a, b)

	require.NoError(t, m.Record(a, resultWith(sandbox.StatusCompleted, 0)))

	snap, err := m.Snapshot(b)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.TotalExecutions)
}
