package notification

import (
	"context"
	"errors"
	"fmt"

	"moveflow/models"

	"go.uber.org/zap"
)

// Notifier delivers one booking event to a channel.
type Notifier interface {
	Notify(ctx context.Context, kind models.EventKind, b models.BookingSnapshot) error
}

// MultiNotifier fans out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, kind models.EventKind, b models.BookingSnapshot) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, kind, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes events to the log. It is always part of the fan-out.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, kind models.EventKind, b models.BookingSnapshot) error {
	msg := Render(kind, b)
	l.Logger.Info("Booking notification",
		zap.String("kind", string(kind)),
		zap.String("booking_id", b.ID),
		zap.String("customer_email", b.CustomerEmail),
		zap.String("title", msg.Title),
	)
	return nil
}

// DirectDispatcher delivers status events inline when no queue is configured.
type DirectDispatcher struct {
	Notifier Notifier
}

func (d DirectDispatcher) Dispatch(ctx context.Context, event models.StatusEvent) error {
	if d.Notifier == nil {
		return nil
	}
	if err := d.Notifier.Notify(ctx, event.Kind, event.Booking); err != nil {
		return fmt.Errorf("notify %s for booking %s: %w", event.Kind, event.Booking.ID, err)
	}
	return nil
}
