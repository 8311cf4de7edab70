package domain

import "fmt"

// ValidationError reports malformed input. Maps to HTTP 400 at the API layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransitionCode identifies why a lifecycle transition was rejected.
type TransitionCode string

const (
	TransitionAlreadySuspended   TransitionCode = "already_suspended"
	TransitionAlreadyDeactivated TransitionCode = "already_deactivated"
	TransitionNotSuspended       TransitionCode = "not_suspended"
	TransitionNotDeactivated     TransitionCode = "not_deactivated"
	TransitionNotVerified        TransitionCode = "not_verified"
	TransitionIllegal            TransitionCode = "illegal_transition"
)

// StateTransitionError reports an operation that is not legal in the user's
// current state. Maps to HTTP 409 at the API layer. The aggregate is left
// unmodified.
type StateTransitionError struct {
	Op    string
	State StateTag
	Code  TransitionCode
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s rejected: %s (state %s)", e.Op, e.Code, e.State)
}

func transitionErr(op string, state StateTag, code TransitionCode) error {
	return &StateTransitionError{Op: op, State: state, Code: code}
}
