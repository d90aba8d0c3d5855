package transfer

import (
	"errors"
	"fmt"
)

// Sentinel errors for the terminal transfer failures. Callers branch on
// these with errors.Is; none of them is retried within a session.
var (
	// ErrFetchFailed means the sender could not obtain the payload from
	// the stash service.
	ErrFetchFailed = errors.New("failed to fetch payload")

	// ErrSendFailed means the payload could not be written to the data
	// channel.
	ErrSendFailed = errors.New("failed to send payload")

	// ErrCorruptTransfer means the received bytes were not valid JSON.
	ErrCorruptTransfer = errors.New("received payload is corrupt")

	// ErrImportRejected means the stash service refused the payload.
	ErrImportRejected = errors.New("payload import rejected")
)

// ShareError attaches the failing operation and context to one of the
// sentinel errors above.
type ShareError struct {
	Op      string
	Err     error
	Details string
}

func (e *ShareError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ShareError) Unwrap() error {
	return e.Err
}

// NewError builds a ShareError around a sentinel.
func NewError(op string, err error, details string) *ShareError {
	return &ShareError{Op: op, Err: err, Details: details}
}

// WrapError attaches a cause's message as the details.
func WrapError(op string, sentinel, cause error) *ShareError {
	return &ShareError{Op: op, Err: sentinel, Details: cause.Error()}
}
