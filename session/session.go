package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jaclearn/runbox/sandbox"
)

// Handle identifies one open session.
type Handle = uuid.UUID

// ErrSessionClosed is returned by RecordIfActive when the session has
// already been closed. Transport layers translate it into a client-facing
// error instead of letting client input reach Record's panic.
var ErrSessionClosed = errors.New("session is closed")

// closedRetention is how long a closed session stays addressable for
// Snapshot before it is evicted. Eviction keeps a long-running server's
// session map bounded.
const closedRetention = time.Hour

// Summary is the immutable read-only record of a session. It is returned
// by Close and by Snapshot; persisting it is the storage layer's job.
type Summary struct {
	ID                   Handle
	StartedAt            time.Time
	EndedAt              time.Time
	TotalExecutions      int
	SuccessfulExecutions int
	FailedExecutions     int
	TotalExecutionTime   time.Duration
	IsActive             bool
}

// state is the mutable aggregate behind one handle. Counters are guarded
// by the single-writer mutex: results from concurrent executions are
// applied one at a time, in completion order.
type state struct {
	mu        sync.Mutex
	startedAt time.Time
	endedAt   time.Time
	total     int
	succeeded int
	failed    int
	wallTime  time.Duration
	active    bool
}

// Manager owns the open sessions.
type Manager struct {
	mu       sync.Mutex
	logger   *zap.Logger
	sessions map[Handle]*state
	now      func() time.Time
}

// NewManager creates an empty session manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger,
		sessions: make(map[Handle]*state),
		now:      time.Now,
	}
}

// Open starts a new session and returns its handle. Opening also sweeps
// out sessions closed longer than the retention window ago.
func (m *Manager) Open() Handle {
	h := uuid.New()

	m.mu.Lock()
	m.evictLocked()
	m.sessions[h] = &state{startedAt: m.now(), active: true}
	m.mu.Unlock()

	m.logger.Info("session opened", zap.String("session_id", h.String()))
	return h
}

// Record appends one completed execution to the session. Counts and timing
// are monotonically non-decreasing while the session is active: the total
// always increments, successes increment only for Completed results, and
// every other terminal status counts as failed.
//
// Recording against a closed session is a programming error and panics:
// sessions are append-only while open and frozen once closed. An unknown
// handle returns an error. Callers that take the handle from untrusted
// input use RecordIfActive instead.
func (m *Manager) Record(h Handle, result sandbox.ExecutionResult) error {
	s, err := m.lookup(h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		panic(fmt.Sprintf("session: Record called on closed session %s", h))
	}

	s.applyLocked(result)
	return nil
}

// RecordIfActive is the Record variant for client-controlled handles: a
// closed session yields ErrSessionClosed rather than a panic, so a request
// naming a stale session cannot take the process down.
func (m *Manager) RecordIfActive(h Handle, result sandbox.ExecutionResult) error {
	s, err := m.lookup(h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return fmt.Errorf("%w: %s", ErrSessionClosed, h)
	}

	s.applyLocked(result)
	return nil
}

// Close ends the session and returns its final summary. Closing an already
// closed session returns an error.
func (m *Manager) Close(h Handle) (Summary, error) {
	s, err := m.lookup(h)
	if err != nil {
		return Summary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return Summary{}, fmt.Errorf("session %s is already closed", h)
	}
	s.active = false
	s.endedAt = m.now()

	summary := s.summaryLocked(h)
	m.logger.Info("session closed",
		zap.String("session_id", h.String()),
		zap.Int("total_executions", summary.TotalExecutions),
		zap.Int("successful_executions", summary.SuccessfulExecutions),
		zap.Int("failed_executions", summary.FailedExecutions),
		zap.Duration("total_execution_time", summary.TotalExecutionTime))
	return summary, nil
}

// Snapshot returns the current summary without closing the session.
func (m *Manager) Snapshot(h Handle) (Summary, error) {
	s, err := m.lookup(h)
	if err != nil {
		return Summary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked(h), nil
}

func (m *Manager) lookup(h Handle) (*state, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[h]
	if !ok {
		return nil, fmt.Errorf("unknown session: %s", h)
	}
	return s, nil
}

// evictLocked drops sessions that have been closed longer than the
// retention window. Callers must hold the manager mutex.
func (m *Manager) evictLocked() {
	cutoff := m.now().Add(-closedRetention)
	for h, s := range m.sessions {
		s.mu.Lock()
		stale := !s.active && s.endedAt.Before(cutoff)
		s.mu.Unlock()
		if stale {
			delete(m.sessions, h)
		}
	}
}

// applyLocked folds one result into the counters. Callers must hold the
// state mutex and have checked the session is active.
func (s *state) applyLocked(result sandbox.ExecutionResult) {
	s.total++
	if result.Succeeded() {
		s.succeeded++
	} else {
		s.failed++
	}
	s.wallTime += result.WallTime
}

func (s *state) summaryLocked(h Handle) Summary {
	return Summary{
		ID:                   h,
		StartedAt:            s.startedAt,
		EndedAt:              s.endedAt,
		TotalExecutions:      s.total,
		SuccessfulExecutions: s.succeeded,
		FailedExecutions:     s.failed,
		TotalExecutionTime:   s.wallTime,
		IsActive:             s.active,
	}
}
