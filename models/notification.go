package models

import "time"

// EventKind names a booking event delivered to notification collaborators.
type EventKind string

const (
	EventBookingConfirmed  EventKind = "booking.confirmed"
	EventBookingInProgress EventKind = "booking.in_progress"
	EventBookingCompleted  EventKind = "booking.completed"
	EventBookingCancelled  EventKind = "booking.cancelled"
	EventBookingReminder   EventKind = "booking.reminder"
)

// EventKindForStatus returns the notification kind for a new status. Pending
// has no notification.
func EventKindForStatus(s BookingStatus) (EventKind, bool) {
	switch s {
	case StatusConfirmed:
		return EventBookingConfirmed, true
	case StatusInProgress:
		return EventBookingInProgress, true
	case StatusCompleted:
		return EventBookingCompleted, true
	case StatusCancelled:
		return EventBookingCancelled, true
	}
	return "", false
}

// StatusEvent is emitted after a status transition commits.
type StatusEvent struct {
	Kind       EventKind       `json:"kind"`
	From       BookingStatus   `json:"from"`
	To         BookingStatus   `json:"to"`
	Actor      Actor           `json:"actor"`
	Notes      string          `json:"notes,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Booking    BookingSnapshot `json:"booking"`
}

// ReminderPayload is the queued payload for a pre-move reminder.
type ReminderPayload struct {
	BookingID string    `json:"booking_id"`
	MoveDate  time.Time `json:"move_date"`
}
