package errors

import (
	"errors"
	"fmt"
)

var (
	// Connection errors
	ErrNotConnected      = errors.New("billing connection is not established")
	ErrConnectionFailed  = errors.New("billing connection failed")
	ErrAlreadyConnecting = errors.New("billing connection attempt already in progress")

	// Correlation errors
	ErrRequestTimeout         = errors.New("no response from the billing backend within the configured window")
	ErrRequestAlreadyInFlight = errors.New("a request of this kind is already in flight")

	// Reconciliation signals
	// ErrAlreadyProcessed is an idempotent no-op signal, not a failure:
	// the transaction was finished earlier in this session.
	ErrAlreadyProcessed = errors.New("transaction already processed")
	ErrUserCancelled    = errors.New("purchase cancelled by the user")

	// Finish errors
	ErrFinishFailed = errors.New("native finish call rejected")
)

// ConnectionError wraps a native init/end failure with the attempted operation
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NormalizationError carries the raw native payload that could not be
// turned into a canonical record, for diagnostics.
type NormalizationError struct {
	Shape      string
	RawPayload string
	Err        error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize %s payload: %v (raw: %s)", e.Shape, e.Err, e.RawPayload)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// FinishError wraps a rejected native acknowledge/consume/finish call
type FinishError struct {
	TransactionID string
	Op            string
	Err           error
}

func (e *FinishError) Error() string {
	return fmt.Sprintf("%s of transaction %s failed: %v", e.Op, e.TransactionID, e.Err)
}

func (e *FinishError) Unwrap() error {
	return e.Err
}

// IsUserFacing reports whether an error should be surfaced to the end
// user as a failure. Cancellations and idempotent replays are not.
func IsUserFacing(err error) bool {
	return !errors.Is(err, ErrUserCancelled) && !errors.Is(err, ErrAlreadyProcessed)
}
