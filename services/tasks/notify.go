package tasks

import (
	"encoding/json"

	"moveflow/models"

	"github.com/hibiken/asynq"
)

const (
	TypeBookingNotify = "booking:notify"
	TypeRefundSweep   = "refund:sweep"

	QueueNotifications = "notifications"
	QueueMaintenance   = "maintenance"
)

func NewNotificationTask(event models.StatusEvent) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingNotify, b)
	opts := []asynq.Option{
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
	}
	return task, opts, nil
}

func ParseNotificationPayload(t *asynq.Task) (models.StatusEvent, error) {
	var e models.StatusEvent
	err := json.Unmarshal(t.Payload(), &e)
	return e, err
}

// NewRefundSweepTask is registered on the scheduler. A failed sweep is not
// retried; the next tick runs a fresh one.
func NewRefundSweepTask() (*asynq.Task, []asynq.Option) {
	return asynq.NewTask(TypeRefundSweep, nil), []asynq.Option{
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(0),
	}
}
