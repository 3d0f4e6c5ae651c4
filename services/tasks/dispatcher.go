package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moveflow/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqDispatcher queues post-commit work. Enqueueing after the status commit
// makes the queue the outbox for notifications.
type AsynqDispatcher struct {
	client Enqueuer
	logger *zap.Logger
}

func NewAsynqDispatcher(client Enqueuer, logger *zap.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, logger: logger}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, event models.StatusEvent) error {
	task, opts, err := NewNotificationTask(event)
	if err != nil {
		return fmt.Errorf("build notification task: %w", err)
	}
	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	d.logger.Debug("Notification queued",
		zap.String("task_id", info.ID),
		zap.String("kind", string(event.Kind)),
		zap.String("booking_id", event.Booking.ID),
	)
	return nil
}

// ScheduleReminder is idempotent per booking; an existing reminder wins.
func (d *AsynqDispatcher) ScheduleReminder(ctx context.Context, payload models.ReminderPayload, fireAt time.Time) error {
	task, opts, err := NewReminderTask(payload, fireAt)
	if err != nil {
		return fmt.Errorf("build reminder task: %w", err)
	}
	if _, err := d.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("enqueue reminder: %w", err)
	}
	d.logger.Info("Reminder scheduled",
		zap.String("booking_id", payload.BookingID),
		zap.Time("fire_at", fireAt),
	)
	return nil
}
