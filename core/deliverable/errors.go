package deliverable

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("deliverable not found")
	ErrVersionConflict   = errors.New("deliverable was modified concurrently")
	ErrNotGroupMember    = errors.New("only members of the deliverable's group may submit it")
	ErrNotProjectTeacher = errors.New("only the project's teacher may evaluate its deliverables")
	ErrNoFile            = errors.New("deliverable has no submitted file")

	errInvalidFile = errors.New("invalid file")
)

// InvalidTransitionError is returned when an event is not available in the current status.
type InvalidTransitionError struct {
	From  Status
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action not available: cannot %s a deliverable in status %s", e.Event, e.From)
}

// AlreadySubmittedError is returned when submitting a deliverable that is SUBMITTED or IN_CORRECTION.
// It is the user-facing form of the InvalidTransitionError it unwraps to.
type AlreadySubmittedError struct {
	DeliverableID string
	Status        Status
}

func (e *AlreadySubmittedError) Error() string {
	return fmt.Sprintf("deliverable has already been submitted (status %s)", e.Status)
}

func (e *AlreadySubmittedError) Unwrap() error {
	return &InvalidTransitionError{From: e.Status, Event: EventSubmit}
}

// submitError is the error of a submission attempted on a deliverable in status s.
func submitError(id string, s Status) error {
	switch s {
	case StatusSubmitted, StatusInCorrection:
		return &AlreadySubmittedError{DeliverableID: id, Status: s}
	default:
		return &InvalidTransitionError{From: s, Event: EventSubmit}
	}
}

// TransferError is returned when the file storage failed, timed out or was cancelled.
// The deliverable is left unchanged; the whole submission may be retried.
type TransferError struct {
	Err error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return "file transfer failed"
	}
	return "file transfer failed: " + e.Err.Error()
}

func (e *TransferError) Unwrap() error { return e.Err }

// ConflictError is returned when a concurrent update won the race on the same deliverable.
// Callers should re-fetch the deliverable and retry.
type ConflictError struct {
	DeliverableID string
	Err           error
}

func (e *ConflictError) Error() string {
	return "deliverable was updated by someone else, please reload it and try again"
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Retryable() bool { return true }
