package sandbox

import (
	"fmt"
	"time"
)

// ResourceLimits describes the ceilings applied to a single execution.
// All fields must be strictly positive; once constructed the value is
// immutable for the lifetime of the execution.
type ResourceLimits struct {
	MaxExecutionTime time.Duration
	MaxMemory        int64
	MaxOutputSize    int64
	MaxCodeSize      int64
}

// Validate checks that every limit is strictly positive.
func (l ResourceLimits) Validate() error {
	if l.MaxExecutionTime <= 0 {
		return fmt.Errorf("max execution time must be positive, got: %s", l.MaxExecutionTime)
	}
	if l.MaxMemory <= 0 {
		return fmt.Errorf("max memory must be positive, got: %d", l.MaxMemory)
	}
	if l.MaxOutputSize <= 0 {
		return fmt.Errorf("max output size must be positive, got: %d", l.MaxOutputSize)
	}
	if l.MaxCodeSize <= 0 {
		return fmt.Errorf("max code size must be positive, got: %d", l.MaxCodeSize)
	}
	return nil
}

// MergeLimits combines the system-wide defaults with an optional override.
// An override may only tighten a limit: a value of zero leaves the default
// in place, and a value looser than the default is clamped down to the
// default. The defaults are a hard upper bound set by the configuration
// layer, never a suggestion.
func MergeLimits(defaults, override ResourceLimits) ResourceLimits {
	merged := defaults
	if override.MaxExecutionTime > 0 && override.MaxExecutionTime < defaults.MaxExecutionTime {
		merged.MaxExecutionTime = override.MaxExecutionTime
	}
	if override.MaxMemory > 0 && override.MaxMemory < defaults.MaxMemory {
		merged.MaxMemory = override.MaxMemory
	}
	if override.MaxOutputSize > 0 && override.MaxOutputSize < defaults.MaxOutputSize {
		merged.MaxOutputSize = override.MaxOutputSize
	}
	if override.MaxCodeSize > 0 && override.MaxCodeSize < defaults.MaxCodeSize {
		merged.MaxCodeSize = override.MaxCodeSize
	}
	return merged
}
