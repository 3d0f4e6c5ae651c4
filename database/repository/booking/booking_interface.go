package bookingRepo

import (
	"context"
	"errors"
	"time"

	"moveflow/models"
)

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrCancellationNotFound = errors.New("cancellation not found")
	// ErrOverlap means the write would give a truck two active bookings with
	// overlapping effective windows.
	ErrOverlap = errors.New("truck already has an active booking in this window")
	// ErrDriverOverlap is the driver equivalent of ErrOverlap.
	ErrDriverOverlap      = errors.New("driver already has an active booking in this window")
	ErrStatusChanged      = errors.New("booking status changed concurrently")
	ErrCancellationExists = errors.New("booking already has a cancellation record")
	ErrRefundStateChanged = errors.New("refund status changed concurrently")
)

type ResourceKind string

const (
	ResourceTruck  ResourceKind = "truck"
	ResourceDriver ResourceKind = "driver"
)

// OverlapQuery selects active bookings on one resource intersecting [Start, End).
type OverlapQuery struct {
	Kind             ResourceKind
	ResourceID       string
	Start            time.Time
	End              time.Time
	ExcludeBookingID string
}

// BookingFilter narrows ListBookings. Zero values mean "any". From/To select
// bookings whose effective window intersects [From, To).
type BookingFilter struct {
	OrgID         string
	TruckID       string
	DriverID      string
	CustomerEmail string
	Statuses      []models.BookingStatus
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// BookingUpdate carries the non-status fields that may be edited in place.
type BookingUpdate struct {
	FinalAmount   *float64
	InternalNotes *string
	CustomerNotes *string
}

type RefundUpdate struct {
	Status           models.RefundStatus
	ExternalRefundID *string
	ProcessedAt      *time.Time
	FailureReason    *string
}

// BookingRepository persists bookings, their status history and cancellations.
// Implementations must reject overlapping active bookings atomically with
// ErrOverlap (truck) or ErrDriverOverlap (driver).
type BookingRepository interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error)
	FindOverlapping(ctx context.Context, q OverlapQuery) ([]models.Booking, error)
	CountUpcomingForDriver(ctx context.Context, driverID string, after time.Time) (int64, error)
	UpdateBookingFields(ctx context.Context, id string, u BookingUpdate) (*models.Booking, error)
	SetDriver(ctx context.Context, id string, driverID *string) (*models.Booking, error)

	// TransitionStatus moves id from -> to only if the stored status is still
	// from, and appends entry in the same transaction.
	TransitionStatus(ctx context.Context, id string, from, to models.BookingStatus, entry *models.BookingStatusHistory) (*models.Booking, error)
	ListStatusHistory(ctx context.Context, bookingID string) ([]models.BookingStatusHistory, error)

	CreateCancellation(ctx context.Context, c *models.BookingCancellation) error
	GetCancellation(ctx context.Context, bookingID string) (*models.BookingCancellation, error)
	// UpdateRefund applies u only if the stored refund status equals expected.
	UpdateRefund(ctx context.Context, bookingID string, expected models.RefundStatus, u RefundUpdate) (*models.BookingCancellation, error)
	ListCancellationsByRefundStatus(ctx context.Context, status models.RefundStatus, limit int) ([]models.BookingCancellation, error)
}
