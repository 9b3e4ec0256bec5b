package sandbox

import "time"

// Status represents the lifecycle state of one execution.
// Pending and Running are transient in-process states; the remaining
// states are terminal, mutually exclusive, and final.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusTimedOut  Status = "TimedOut"
	StatusRejected  Status = "RejectedByPolicy"
	StatusCancelled Status = "Cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// ExecutionResult captures the outcome of one execution. It is produced
// exactly once per request and is immutable after construction.
//
// ExitCode is -1 when the process never produced an exit status (killed,
// never spawned). MemoryUsed is best-effort peak usage in bytes, 0 when
// not observable.
type ExecutionResult struct {
	Status          Status
	Stdout          string
	Stderr          string
	ExitCode        int
	WallTime        time.Duration
	MemoryUsed      int64
	TruncatedOutput bool
}

// Succeeded reports whether the execution completed cleanly within limits.
func (r ExecutionResult) Succeeded() bool {
	return r.Status == StatusCompleted
}
