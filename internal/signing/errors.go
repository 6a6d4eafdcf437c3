package signing

import (
	"errors"
	"fmt"

	"fieldsign/internal/models"
)

// ErrNotAuthenticated is returned when no worker identity is available.
var ErrNotAuthenticated = errors.New("authentication required")

// ErrRequestNotFound is returned for unknown tokens and ids. An expired
// request is deliberately indistinguishable from a missing one on the
// reviewer-facing lookup path.
var ErrRequestNotFound = errors.New("signing request not found")

// ErrJobNotFound is returned when the referenced job does not exist.
var ErrJobNotFound = errors.New("job not found")

// ValidationError reports a malformed contact address or similar input
// problem. Recoverable by the caller correcting the input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError means the local durable write failed; nothing was
// committed and the operation must be treated as failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: local persistence failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotificationError means the request was durably committed but the review
// invitation could not be delivered. The request record is NOT rolled back;
// it stays pending and the caller decides how to resend.
type NotificationError struct {
	Channel models.ContactMethod
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification via %s failed: %v", e.Channel, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// TransitionError reports an illegal state machine edge.
type TransitionError struct {
	From models.SigningStatus
	To   models.SigningStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s -> %s", e.From, e.To)
}
