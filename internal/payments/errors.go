package payments

import (
	"errors"
	"fmt"

	"github.com/payper/backend/internal/models"
)

// ErrRetriesExhausted is returned by the RecoveryPolicy once a
// submission has burned through its resubmission budget.
var ErrRetriesExhausted = errors.New("resubmission limit reached for this payment")

// ErrCardDeclined is the expected business outcome of a declined
// card. It reaches the caller as an error for uniform surfacing, but
// the decline itself was an ordinary processor result.
var ErrCardDeclined = errors.New("card declined by processor")

// ValidationError rejects a malformed draft before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown transaction id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("transaction %s not found", e.ID)
}

// InvalidTransitionError reports a status change that would violate
// the monotonic pending -> completed|failed lifecycle.
type InvalidTransitionError struct {
	ID   string
	From models.Status
	To   models.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transaction %s: illegal status transition %s -> %s", e.ID, e.From, e.To)
}

// GatewayError is a pre-confirmation infrastructure failure while
// reserving a payment intent. No money has moved when it occurs.
type GatewayError struct {
	Reason string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment intent gateway: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("payment intent gateway: %s", e.Reason)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ClientFault is a transport-level failure talking to the card
// processor during confirmation. Declines are not faults; see Outcome.
type ClientFault struct {
	Reason string
	Err    error
}

func (e *ClientFault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("card confirmation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("card confirmation: %s", e.Reason)
}

func (e *ClientFault) Unwrap() error { return e.Err }

// PersistenceError wraps a ledger write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable reports whether the error permits the caller to resubmit
// under the recovery policy.
func Retryable(err error) bool {
	if errors.Is(err, ErrCardDeclined) {
		return true
	}
	var gw *GatewayError
	var cf *ClientFault
	return errors.As(err, &gw) || errors.As(err, &cf)
}
