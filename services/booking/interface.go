package booking

import (
	"context"
	"time"

	bookingRepo "moveflow/database/repository/booking"
	fleetRepo "moveflow/database/repository/fleet"
	"moveflow/models"
	"moveflow/services/payment"

	"go.uber.org/zap"
)

// SchedulingService covers availability, pricing and booking creation.
type SchedulingService interface {
	CheckAvailability(ctx context.Context, q AvailabilityQuery) (*AvailabilityResult, error)
	CheckTruckAvailability(ctx context.Context, req TruckAvailabilityRequest) (*AvailabilityResult, error)
	EstimatePrice(ctx context.Context, orgID string, in PriceInput) (*models.PriceEstimate, error)
	CreateBooking(ctx context.Context, req CreateBookingRequest, price models.PriceEstimate) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, f bookingRepo.BookingFilter) ([]models.Booking, error)
	UpdateBooking(ctx context.Context, id string, u bookingRepo.BookingUpdate) (*models.Booking, error)
}

type StatusService interface {
	TransitionStatus(ctx context.Context, bookingID string, to models.BookingStatus, actor models.Actor, notes string) (*models.Booking, error)
	AutoConfirm(ctx context.Context, bookingID string) (*models.Booking, error)
	MarkInProgress(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error)
	MarkCompleted(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error)
	GetStatusHistory(ctx context.Context, bookingID string) ([]models.BookingStatusHistory, error)
}

type CancellationService interface {
	CancelBooking(ctx context.Context, req CancelRequest) (*models.BookingCancellation, error)
	GetCancellation(ctx context.Context, bookingID string) (*models.BookingCancellation, error)
	RefundPolicyInfo(ctx context.Context, bookingID string) (*RefundPolicy, error)
	RetryFailedRefunds(ctx context.Context) (retried, succeeded int, err error)
}

type AssignmentService interface {
	AssignDriver(ctx context.Context, bookingID, driverID string) (*models.Booking, error)
	AutoAssignDriver(ctx context.Context, bookingID string) (*models.Booking, error)
	UnassignDriver(ctx context.Context, bookingID, reason string) (*models.Booking, error)
	ReassignDriver(ctx context.Context, bookingID, newDriverID, reason string) (*models.Booking, error)
	AvailableDrivers(ctx context.Context, orgID string, start, end time.Time) ([]models.Driver, error)
	DriverSchedule(ctx context.Context, driverID string, from, to time.Time) ([]models.Booking, error)
}

type CalendarService interface {
	TruckSchedule(ctx context.Context, truckID string, from, to time.Time) ([]models.Booking, error)
	OrgCalendar(ctx context.Context, orgID string, from, to time.Time, statuses []models.BookingStatus) ([]models.Booking, error)
}

type BookingService interface {
	SchedulingService
	StatusService
	CancellationService
	AssignmentService
	CalendarService
}

// EventDispatcher delivers post-commit status events. Failures never roll
// back the transition that produced the event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event models.StatusEvent) error
}

// ReminderScheduler queues a pre-move reminder to fire at fireAt.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, payload models.ReminderPayload, fireAt time.Time) error
}

// Rules are the tunable booking policies.
type Rules struct {
	DefaultBufferMinutes  int
	PlatformFeePercentage float64
	// RequirePayment creates bookings as pending until AutoConfirm runs.
	RequirePayment bool
	ReminderLead   time.Duration
}

func DefaultRules() Rules {
	return Rules{
		DefaultBufferMinutes:  30,
		PlatformFeePercentage: 5,
		ReminderLead:          24 * time.Hour,
	}
}

// DefaultBookingService implements BookingService. Repo and Fleet are
// required; every other collaborator is optional.
type DefaultBookingService struct {
	Repo      bookingRepo.BookingRepository
	Fleet     fleetRepo.FleetRepository
	Payments  payment.Refunder
	Events    EventDispatcher
	Reminders ReminderScheduler
	Cache     AvailabilityCache
	Logger    *zap.Logger
	Clock     func() time.Time
	Rules     Rules
}

var _ BookingService = (*DefaultBookingService)(nil)

func NewDefaultBookingService(repo bookingRepo.BookingRepository, fleet fleetRepo.FleetRepository, logger *zap.Logger) *DefaultBookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultBookingService{
		Repo:     repo,
		Fleet:    fleet,
		Payments: payment.DisabledRefunder{},
		Logger:   logger,
		Clock:    func() time.Time { return time.Now().UTC() },
		Rules:    DefaultRules(),
	}
}

func (s *DefaultBookingService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func (s *DefaultBookingService) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
