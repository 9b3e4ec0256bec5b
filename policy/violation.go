package policy

import (
	"errors"
	"fmt"
)

// ViolationKind enumerates the ways a request can be rejected before
// execution ever starts.
type ViolationKind string

const (
	KindUnsupportedLanguage ViolationKind = "UnsupportedLanguage"
	KindCodeTooLarge        ViolationKind = "CodeTooLarge"
	KindForbiddenConstruct  ViolationKind = "ForbiddenConstruct"
	KindRateLimited         ViolationKind = "RateLimited"
)

// Violation is a terminal, non-retryable policy rejection. It is never
// wrapped into an execution result by this package; callers surface it to
// the requester as RejectedByPolicy.
type Violation struct {
	Kind ViolationKind

	// Construct holds the offending token for ForbiddenConstruct.
	Construct string

	// Detail carries human-readable context.
	Detail string
}

func (v *Violation) Error() string {
	if v.Construct != "" {
		return fmt.Sprintf("policy violation (%s): %s: %s", v.Kind, v.Construct, v.Detail)
	}
	return fmt.Sprintf("policy violation (%s): %s", v.Kind, v.Detail)
}

// AsViolation extracts a *Violation from an error chain, if present.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
