package booking

import (
	"errors"
	"fmt"
	"time"

	"moveflow/models"
)

// ErrNotFound is matched by every NotFoundError and by not-found AssignmentErrors.
var ErrNotFound = errors.New("not found")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// BookingConflictError reports that a truck is already taken in the window.
type BookingConflictError struct {
	TruckID       string
	Start         time.Time
	End           time.Time
	SuggestedSlot *TimeWindow
}

func (e *BookingConflictError) Error() string {
	return fmt.Sprintf("truck %s is already booked between %s and %s",
		e.TruckID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

type InvalidTransitionError struct {
	From models.BookingStatus
	To   models.BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

type BookingAlreadyCancelledError struct {
	BookingID string
}

func (e *BookingAlreadyCancelledError) Error() string {
	return fmt.Sprintf("booking %s is already cancelled", e.BookingID)
}

type BookingNotCancellableError struct {
	BookingID string
	Status    models.BookingStatus
}

func (e *BookingNotCancellableError) Error() string {
	return fmt.Sprintf("booking %s cannot be cancelled in status %s", e.BookingID, e.Status)
}

// AssignmentError wraps every driver assignment failure.
type AssignmentError struct {
	Reason string
	Err    error
}

func (e *AssignmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("driver assignment failed: %s: %v", e.Reason, e.Err)
	}
	return "driver assignment failed: " + e.Reason
}

func (e *AssignmentError) Unwrap() error { return e.Err }
