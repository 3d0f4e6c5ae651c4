package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	bookingRepo "moveflow/database/repository/booking"
	fleetRepo "moveflow/database/repository/fleet"
	"moveflow/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CreateBookingRequest struct {
	OrgID    string  `json:"org_id"`
	TruckID  string  `json:"truck_id"`
	DriverID *string `json:"driver_id,omitempty"`

	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`

	MoveDate       time.Time `json:"move_date"`
	PickupAddress  string    `json:"pickup_address"`
	PickupCity     string    `json:"pickup_city"`
	PickupState    string    `json:"pickup_state"`
	PickupZip      string    `json:"pickup_zip"`
	DropoffAddress string    `json:"dropoff_address"`
	DropoffCity    string    `json:"dropoff_city"`
	DropoffState   string    `json:"dropoff_state"`
	DropoffZip     string    `json:"dropoff_zip"`

	EstimatedDistanceMiles float64 `json:"estimated_distance_miles"`
	EstimatedDurationHours float64 `json:"estimated_duration_hours"`
	BufferMinutes          *int    `json:"commute_buffer_minutes,omitempty"`

	SpecialItems       []string `json:"special_items,omitempty"`
	PickupFloors       int      `json:"pickup_floors"`
	DropoffFloors      int      `json:"dropoff_floors"`
	HasElevatorPickup  bool     `json:"has_elevator_pickup"`
	HasElevatorDropoff bool     `json:"has_elevator_dropoff"`

	CustomerNotes         *string `json:"customer_notes,omitempty"`
	StripePaymentIntentID *string `json:"stripe_payment_intent_id,omitempty"`
}

func (r *CreateBookingRequest) Validate() error {
	required := []struct{ field, value string }{
		{"org_id", r.OrgID},
		{"truck_id", r.TruckID},
		{"customer_name", r.CustomerName},
		{"customer_email", r.CustomerEmail},
		{"customer_phone", r.CustomerPhone},
		{"pickup_address", r.PickupAddress},
		{"dropoff_address", r.DropoffAddress},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return invalid(f.field, "is required")
		}
	}
	if _, err := mail.ParseAddress(r.CustomerEmail); err != nil {
		return invalid("customer_email", "is not a valid email address")
	}
	if r.MoveDate.IsZero() {
		return invalid("move_date", "is required")
	}
	if r.EstimatedDurationHours <= 0 {
		return invalid("estimated_duration_hours", "must be greater than 0")
	}
	if r.EstimatedDistanceMiles <= 0 {
		return invalid("estimated_distance_miles", "must be greater than 0")
	}
	if r.BufferMinutes != nil && *r.BufferMinutes < 0 {
		return invalid("commute_buffer_minutes", "must not be negative")
	}
	if r.PickupFloors < 0 || r.DropoffFloors < 0 {
		return invalid("floors", "must not be negative")
	}
	limits := []struct {
		field, value string
		max          int
	}{
		{"customer_name", r.CustomerName, 255},
		{"customer_email", r.CustomerEmail, 255},
		{"customer_phone", r.CustomerPhone, 20},
		{"pickup_address", r.PickupAddress, 512},
		{"pickup_city", r.PickupCity, 100},
		{"pickup_state", r.PickupState, 50},
		{"pickup_zip", r.PickupZip, 10},
		{"dropoff_address", r.DropoffAddress, 512},
		{"dropoff_city", r.DropoffCity, 100},
		{"dropoff_state", r.DropoffState, 50},
		{"dropoff_zip", r.DropoffZip, 10},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(strings.TrimSpace(l.value)) > l.max {
			return invalid(l.field, "must be at most %d characters", l.max)
		}
	}
	return nil
}

// CreateBooking writes a new booking. The store's overlap constraint is the
// only conflict gate; no availability pre-check happens here.
func (s *DefaultBookingService) CreateBooking(ctx context.Context, req CreateBookingRequest, price models.PriceEstimate) (b *models.Booking, err error) {
	ctx, span := startSpan(ctx, "booking.create",
		attribute.String("truck.id", req.TruckID),
		attribute.String("org.id", req.OrgID),
	)
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if price.EstimatedAmount < 0 || price.PlatformFee < 0 {
		return nil, invalid("price", "amounts must not be negative")
	}

	truck, err := s.Fleet.GetTruck(ctx, req.TruckID)
	if err != nil {
		if errors.Is(err, fleetRepo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "truck", ID: req.TruckID}
		}
		return nil, fmt.Errorf("failed to load truck: %w", err)
	}
	if truck.OrgID != req.OrgID {
		return nil, invalid("truck_id", "truck does not belong to organization %s", req.OrgID)
	}

	buffer := s.Rules.DefaultBufferMinutes
	if req.BufferMinutes != nil {
		buffer = *req.BufferMinutes
	}
	window := ComputeWindow(req.MoveDate, req.EstimatedDurationHours, buffer)

	status := models.StatusConfirmed
	if s.Rules.RequirePayment {
		status = models.StatusPending
	}
	now := s.now()

	b = &models.Booking{
		ID:                     uuid.New().String(),
		OrgID:                  req.OrgID,
		TruckID:                req.TruckID,
		DriverID:               req.DriverID,
		CustomerName:           strings.TrimSpace(req.CustomerName),
		CustomerEmail:          strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerPhone:          strings.TrimSpace(req.CustomerPhone),
		MoveDate:               req.MoveDate.UTC(),
		PickupAddress:          req.PickupAddress,
		PickupCity:             req.PickupCity,
		PickupState:            req.PickupState,
		PickupZip:              req.PickupZip,
		DropoffAddress:         req.DropoffAddress,
		DropoffCity:            req.DropoffCity,
		DropoffState:           req.DropoffState,
		DropoffZip:             req.DropoffZip,
		EstimatedDistanceMiles: req.EstimatedDistanceMiles,
		EstimatedDurationHours: req.EstimatedDurationHours,
		CommuteBufferMinutes:   buffer,
		EffectiveStart:         window.Start.UTC(),
		EffectiveEnd:           window.End.UTC(),
		SpecialItems:           req.SpecialItems,
		PickupFloors:           req.PickupFloors,
		DropoffFloors:          req.DropoffFloors,
		HasElevatorPickup:      req.HasElevatorPickup,
		HasElevatorDropoff:     req.HasElevatorDropoff,
		EstimatedAmount:        price.EstimatedAmount,
		PlatformFee:            price.PlatformFee,
		StripePaymentIntentID:  req.StripePaymentIntentID,
		Status:                 status,
		CustomerNotes:          req.CustomerNotes,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if b.SpecialItems == nil {
		b.SpecialItems = []string{}
	}
	if b.DriverID != nil {
		if _, err := s.validateDriver(ctx, b, *b.DriverID); err != nil {
			return nil, err
		}
	}

	m := instruments()
	if err := s.Repo.CreateBooking(ctx, b); err != nil {
		switch {
		case errors.Is(err, bookingRepo.ErrOverlap):
			addCount(ctx, m.bookingConflicts, attribute.String("resource", "truck"))
			s.log().Info("Booking rejected by overlap constraint",
				zap.String("truck_id", req.TruckID),
				zap.Time("start", window.Start),
				zap.Time("end", window.End),
			)
			return nil, s.conflictError(ctx, req.TruckID, window, time.Duration(req.EstimatedDurationHours*float64(time.Hour)))
		case errors.Is(err, bookingRepo.ErrDriverOverlap):
			addCount(ctx, m.bookingConflicts, attribute.String("resource", "driver"))
			return nil, &AssignmentError{Reason: "driver has a conflicting booking", Err: err}
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	addCount(ctx, m.bookingsCreated, attribute.String("status", string(b.Status)))
	s.invalidate(ctx, b, nil)
	s.scheduleReminder(ctx, b)

	s.log().Info("Booking created",
		zap.String("booking_id", b.ID),
		zap.String("truck_id", b.TruckID),
		zap.String("status", string(b.Status)),
	)
	return b, nil
}

// conflictError attaches a best-effort suggestion to the constraint rejection.
func (s *DefaultBookingService) conflictError(ctx context.Context, truckID string, window TimeWindow, duration time.Duration) error {
	cerr := &BookingConflictError{TruckID: truckID, Start: window.Start, End: window.End}
	overlapping, err := s.Repo.FindOverlapping(ctx, bookingRepo.OverlapQuery{
		Kind:       bookingRepo.ResourceTruck,
		ResourceID: truckID,
		Start:      window.Start,
		End:        window.End,
	})
	if err != nil {
		s.log().Warn("Could not compute suggested slot", zap.Error(err))
		return cerr
	}
	if len(overlapping) > 0 {
		cerr.SuggestedSlot = buildAvailability(window, duration, overlapping).SuggestedSlot
	}
	return cerr
}

func (s *DefaultBookingService) scheduleReminder(ctx context.Context, b *models.Booking) {
	if s.Reminders == nil {
		return
	}
	lead := s.Rules.ReminderLead
	if lead <= 0 {
		lead = 24 * time.Hour
	}
	fireAt := b.MoveDate.Add(-lead)
	if !fireAt.After(s.now()) {
		return
	}
	payload := models.ReminderPayload{BookingID: b.ID, MoveDate: b.MoveDate}
	if err := s.Reminders.ScheduleReminder(ctx, payload, fireAt); err != nil {
		s.log().Warn("Failed to schedule booking reminder", zap.String("booking_id", b.ID), zap.Error(err))
	}
}

func (s *DefaultBookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.Repo.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			return nil, &NotFoundError{Resource: "booking", ID: id}
		}
		return nil, fmt.Errorf("failed to load booking %s: %w", id, err)
	}
	return b, nil
}

func (s *DefaultBookingService) ListBookings(ctx context.Context, f bookingRepo.BookingFilter) ([]models.Booking, error) {
	if f.Limit < 0 || f.Offset < 0 {
		return nil, invalid("limit", "limit and offset must not be negative")
	}
	if f.Limit == 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return nil, invalid("to", "must be after from")
	}
	for _, st := range f.Statuses {
		if !st.IsValid() {
			return nil, invalid("status", "unknown status %q", st)
		}
	}
	out, err := s.Repo.ListBookings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return out, nil
}

// UpdateBooking edits non-status fields. Status changes go through TransitionStatus.
func (s *DefaultBookingService) UpdateBooking(ctx context.Context, id string, u bookingRepo.BookingUpdate) (*models.Booking, error) {
	if u.FinalAmount != nil && *u.FinalAmount < 0 {
		return nil, invalid("final_amount", "must not be negative")
	}
	if u.FinalAmount != nil {
		v := roundCents(*u.FinalAmount)
		u.FinalAmount = &v
	}
	b, err := s.Repo.UpdateBookingFields(ctx, id, u)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			return nil, &NotFoundError{Resource: "booking", ID: id}
		}
		return nil, fmt.Errorf("failed to update booking %s: %w", id, err)
	}
	return b, nil
}
