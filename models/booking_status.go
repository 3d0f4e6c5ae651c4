package models

import "fmt"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
)

// ActiveStatuses are the statuses that occupy a truck or driver.
var ActiveStatuses = []BookingStatus{StatusConfirmed, StatusInProgress}

var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// IsValid reports whether s is a known status.
func (s BookingStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo reports whether s -> target is a legal move. A transition to
// the same status is never legal.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from s in one step.
func (s BookingStatus) AllowedTransitions() []BookingStatus {
	out := make([]BookingStatus, len(validTransitions[s]))
	copy(out, validTransitions[s])
	return out
}

func (s BookingStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// IsActive reports whether a booking in this status holds its resources.
func (s BookingStatus) IsActive() bool {
	return s == StatusConfirmed || s == StatusInProgress
}

func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a raw string into a BookingStatus.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	s := BookingStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid booking status: %q", raw)
	}
	return s, nil
}
