package policy

import (
	"context"
	"sync"
	"time"
)

// RateCounterView is the read side of per-caller execution accounting.
// Validate only ever reads it.
type RateCounterView interface {
	ExecutionsInLastMinute(ctx context.Context, caller CallerIdentity) (int, error)
	ExecutionsInLastHour(ctx context.Context, caller CallerIdentity) (int, error)
}

// RateRecorder is the write side: the orchestrating layer records an
// attempt once a request has passed validation and is handed to the
// executor.
type RateRecorder interface {
	RecordExecution(ctx context.Context, caller CallerIdentity) error
}

// RateCounter combines both sides.
type RateCounter interface {
	RateCounterView
	RateRecorder
}

// MemoryCounter is an in-process sliding-window rate counter. Suitable for
// a single-instance deployment; multi-instance deployments share state
// through the redis counter instead.
type MemoryCounter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	now      func() time.Time
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// RecordExecution appends an attempt timestamp for the caller.
func (c *MemoryCounter) RecordExecution(_ context.Context, caller CallerIdentity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := caller.Key()
	c.attempts[key] = append(c.prune(key), c.now())
	return nil
}

// ExecutionsInLastMinute counts attempts in the trailing minute.
func (c *MemoryCounter) ExecutionsInLastMinute(_ context.Context, caller CallerIdentity) (int, error) {
	return c.countSince(caller, time.Minute), nil
}

// ExecutionsInLastHour counts attempts in the trailing hour.
func (c *MemoryCounter) ExecutionsInLastHour(_ context.Context, caller CallerIdentity) (int, error) {
	return c.countSince(caller, time.Hour), nil
}

func (c *MemoryCounter) countSince(caller CallerIdentity, window time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-window)
	count := 0
	for _, at := range c.attempts[caller.Key()] {
		if at.After(cutoff) {
			count++
		}
	}
	return count
}

// prune drops attempts older than the longest window (one hour) and
// returns the surviving slice. Callers must hold the mutex.
func (c *MemoryCounter) prune(key string) []time.Time {
	cutoff := c.now().Add(-time.Hour)
	kept := c.attempts[key][:0]
	for _, at := range c.attempts[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(c.attempts, key)
		return nil
	}
	return kept
}
