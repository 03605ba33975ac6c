package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrHealthScoreNotFound = errors.New("health score not found")
)

// TransitionError is returned when a stage change does not follow a
// permitted edge.
type TransitionError struct {
	From Stage
	To   Stage
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition from %q to %q is not allowed", e.From, e.To)
}
