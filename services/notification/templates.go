package notification

import (
	"fmt"

	"moveflow/models"
)

type Message struct {
	Title string
	Body  string
}

const displayDate = "Jan 2 at 3:04 PM"

// Render builds the customer-facing text for an event.
func Render(kind models.EventKind, b models.BookingSnapshot) Message {
	when := b.MoveDate.Format(displayDate)
	switch kind {
	case models.EventBookingConfirmed:
		return Message{
			Title: "Move Confirmed",
			Body:  fmt.Sprintf("Hi %s, your move is confirmed for %s. From %s to %s.", b.CustomerName, when, b.PickupAddress, b.DropoffAddress),
		}
	case models.EventBookingInProgress:
		return Message{
			Title: "Your mover has arrived",
			Body:  fmt.Sprintf("Your mover has arrived at %s.", b.PickupAddress),
		}
	case models.EventBookingCompleted:
		return Message{
			Title: "Move Complete",
			Body:  "Your move is complete! Please rate your experience.",
		}
	case models.EventBookingCancelled:
		return Message{
			Title: "Booking Cancelled",
			Body:  fmt.Sprintf("Your booking for %s has been cancelled. Refunds are processed within 5-7 business days.", when),
		}
	case models.EventBookingReminder:
		return Message{
			Title: "Your move is tomorrow",
			Body:  fmt.Sprintf("Reminder: your move is on %s. Pickup: %s.", when, b.PickupAddress),
		}
	}
	return Message{Title: "Booking update", Body: fmt.Sprintf("Booking %s is now %s.", b.ID, b.Status)}
}
