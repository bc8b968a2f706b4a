package approval

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequestType = errors.New("invalid request type")
	ErrInvalidPriority    = errors.New("invalid priority")

	// ErrInvalidTransition marks decisions attempted on a request that already
	// reached a terminal status. Never retried automatically.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRuleConditions marks a rule whose conditions payload cannot be parsed.
	// The rule is skipped; evaluation of other rules continues.
	ErrRuleConditions = errors.New("rule conditions are malformed")
)

// InvalidStateError reports the current status that blocked an operation so the
// caller can refresh and decide what to do next.
type InvalidStateError struct {
	Op        string
	RequestID string
	Status    Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s request %s with status %s", e.Op, e.RequestID, e.Status)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidTransition
}
