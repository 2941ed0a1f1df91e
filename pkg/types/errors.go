package types

import "fmt"

// ValidationError reports an intent field that violates an invariant.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports a reference to an unknown intent, execution, order
// or subscription.
type NotFoundError struct {
	Kind string // "intent", "execution", "order", "subscription"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NotReadyError reports an operation requested before required setup.
type NotReadyError struct {
	Reason string
}

func (e *NotReadyError) Error() string {
	return "not ready: " + e.Reason
}

// PhaseExecutionError reports a failed chain or venue action for a phase.
type PhaseExecutionError struct {
	Phase       ExecutionPhase
	ExecutionID string
	Err         error
}

func (e *PhaseExecutionError) Error() string {
	return fmt.Sprintf("phase %s failed (execution %s): %v", e.Phase, e.ExecutionID, e.Err)
}

func (e *PhaseExecutionError) Unwrap() error {
	return e.Err
}

// CapacityError reports that the tracker subscription limit is reached.
type CapacityError struct {
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("maximum subscriptions reached (%d)", e.Limit)
}

// CollaboratorError reports an order-data lookup failure during polling.
type CollaboratorError struct {
	Platform Platform
	OrderID  string
	Op       string // "resolve", "get-order", "not-found"
	Err      error
}

func (e *CollaboratorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s on %s failed", e.Op, e.OrderID, e.Platform)
	}
	return fmt.Sprintf("%s %s on %s failed: %v", e.Op, e.OrderID, e.Platform, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
