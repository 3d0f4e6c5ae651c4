package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moveflow/models"
	"moveflow/services/booking"
	"moveflow/services/notification"
	"moveflow/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// BookingReader is the part of the booking service the reminder handler needs.
type BookingReader interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
}

type RefundSweeper interface {
	RetryFailedRefunds(ctx context.Context) (retried, succeeded int, err error)
}

type WorkerConfig struct {
	Redis           asynq.RedisClientOpt
	Concurrency     int
	RefundSweepCron string
}

// Worker runs the queue consumers and the periodic refund sweep.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	cfg       WorkerConfig

	bookings BookingReader
	refunds  RefundSweeper
	notifier notification.Notifier
	logger   *zap.Logger
}

func NewWorker(cfg WorkerConfig, bookings BookingReader, refunds RefundSweeper, notifier notification.Notifier, logger *zap.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.RefundSweepCron == "" {
		cfg.RefundSweepCron = "@every 15m"
	}

	w := &Worker{
		cfg:      cfg,
		bookings: bookings,
		refunds:  refunds,
		notifier: notifier,
		logger:   logger,
	}
	w.server = asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			tasks.QueueNotifications: 6,
			tasks.QueueMaintenance:   2,
			"default":                1,
		},
		Logger: zapAsynqLogger{logger.Sugar()},
	})
	w.scheduler = asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   zapAsynqLogger{logger.Sugar()},
	})
	w.mux = w.Mux()
	return w
}

// Mux routes every task type this worker handles.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeBookingNotify, w.HandleNotify)
	mux.HandleFunc(tasks.TypeBookingReminder, w.HandleReminder)
	mux.HandleFunc(tasks.TypeRefundSweep, w.HandleRefundSweep)
	return mux
}

// Start launches the consumers and registers the sweep, retrying with backoff.
func (w *Worker) Start() error {
	task, opts := tasks.NewRefundSweepTask()
	if _, err := w.scheduler.Register(w.cfg.RefundSweepCron, task, opts...); err != nil {
		return fmt.Errorf("register refund sweep %q: %w", w.cfg.RefundSweepCron, err)
	}

	const maxAttempts = 5
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = w.server.Start(w.mux); err == nil {
			break
		}
		w.logger.Warn("Worker failed to start", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt*2) * time.Second)
	}
	if err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	w.logger.Info("Worker started", zap.String("refund_sweep", w.cfg.RefundSweepCron))
	return nil
}

func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.logger.Info("Worker stopped")
}

func (w *Worker) HandleNotify(ctx context.Context, t *asynq.Task) error {
	event, err := tasks.ParseNotificationPayload(t)
	if err != nil {
		return fmt.Errorf("invalid notification payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.notifier.Notify(ctx, event.Kind, event.Booking); err != nil {
		w.logger.Warn("Notification delivery failed",
			zap.String("booking_id", event.Booking.ID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// HandleReminder only reminds bookings that are still confirmed.
func (w *Worker) HandleReminder(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.ParseReminderPayload(t)
	if err != nil {
		return fmt.Errorf("invalid reminder payload: %v: %w", err, asynq.SkipRetry)
	}
	b, err := w.bookings.GetBooking(ctx, p.BookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			w.logger.Info("Reminder skipped, booking gone", zap.String("booking_id", p.BookingID))
			return nil
		}
		return err
	}
	if b.Status != models.StatusConfirmed {
		w.logger.Debug("Reminder skipped", zap.String("booking_id", b.ID), zap.String("status", string(b.Status)))
		return nil
	}
	return w.notifier.Notify(ctx, models.EventBookingReminder, b.Snapshot())
}

func (w *Worker) HandleRefundSweep(ctx context.Context, _ *asynq.Task) error {
	retried, succeeded, err := w.refunds.RetryFailedRefunds(ctx)
	if err != nil {
		w.logger.Error("Refund sweep failed", zap.Error(err))
		return err
	}
	w.logger.Info("Refund sweep done", zap.Int("retried", retried), zap.Int("succeeded", succeeded))
	return nil
}

// zapAsynqLogger adapts zap to asynq.Logger.
type zapAsynqLogger struct {
	s *zap.SugaredLogger
}

func (l zapAsynqLogger) Debug(args ...interface{}) { l.s.Debug(args...) }
func (l zapAsynqLogger) Info(args ...interface{})  { l.s.Info(args...) }
func (l zapAsynqLogger) Warn(args ...interface{})  { l.s.Warn(args...) }
func (l zapAsynqLogger) Error(args ...interface{}) { l.s.Error(args...) }
func (l zapAsynqLogger) Fatal(args ...interface{}) { l.s.Fatal(args...) }
