package sandbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/jaclearn/runbox/lang"
)

// ExecutionRequest carries one program to be executed. It is owned by the
// caller until handed to an Executor; the engine never retains a reference
// after Execute returns.
type ExecutionRequest struct {
	ID          uuid.UUID
	Language    lang.ID
	Code        string
	Stdin       string
	Limits      ResourceLimits
	SubmittedAt time.Time
}

// NewExecutionRequest builds a request with a fresh ID and the given
// (already merged) limits.
func NewExecutionRequest(language lang.ID, code string, limits ResourceLimits) ExecutionRequest {
	return ExecutionRequest{
		ID:          uuid.New(),
		Language:    language,
		Code:        code,
		Limits:      limits,
		SubmittedAt: time.Now(),
	}
}
