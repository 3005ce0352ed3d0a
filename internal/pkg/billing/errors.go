package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload means a required field is missing or has the wrong type.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrUnrecognizedPlan means the provider plan id has no internal plan.
	ErrUnrecognizedPlan = errors.New("unrecognized plan")

	// ErrStorage wraps persistence failures that happened before any state changed.
	ErrStorage = errors.New("billing storage failure")
)

// PartialReconciliationError reports that some reconciliation steps were
// applied and a later one failed. Redelivering the event converges.
type PartialReconciliationError struct {
	Step           string
	SubscriptionID string
	Err            error
}

func (e *PartialReconciliationError) Error() string {
	return fmt.Sprintf("partial reconciliation of %s at %s: %v", e.SubscriptionID, e.Step, e.Err)
}

func (e *PartialReconciliationError) Unwrap() error { return e.Err }

// IsClientError reports whether err was caused by the webhook payload itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedPayload) || errors.Is(err, ErrUnrecognizedPlan)
}
