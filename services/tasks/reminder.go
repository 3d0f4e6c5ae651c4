package tasks

import (
	"encoding/json"
	"time"

	"moveflow/models"

	"github.com/hibiken/asynq"
)

const TypeBookingReminder = "booking:reminder"

// ReminderTaskID keeps one pending reminder per booking.
func ReminderTaskID(bookingID string) string {
	return "reminder:" + bookingID
}

func NewReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID(ReminderTaskID(payload.BookingID)),
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(3),
		// keep the id reserved past fireAt so a re-enqueue cannot duplicate it
		asynq.Retention(48 * time.Hour),
	}

	return task, opts, nil
}

func ParseReminderPayload(t *asynq.Task) (models.ReminderPayload, error) {
	var p models.ReminderPayload
	err := json.Unmarshal(t.Payload(), &p)
	return p, err
}
