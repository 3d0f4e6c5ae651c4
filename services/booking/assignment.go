package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	bookingRepo "moveflow/database/repository/booking"
	fleetRepo "moveflow/database/repository/fleet"
	"moveflow/models"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func assignmentErr(reason string, err error) error {
	return &AssignmentError{Reason: reason, Err: err}
}

// loadAssignable fetches a booking that may still have its driver changed.
func (s *DefaultBookingService) loadAssignable(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, assignmentErr("booking not found", err)
		}
		return nil, err
	}
	if b.Status.IsTerminal() {
		return nil, assignmentErr(fmt.Sprintf("booking is %s", b.Status), nil)
	}
	return b, nil
}

func (s *DefaultBookingService) validateDriver(ctx context.Context, b *models.Booking, driverID string) (*models.Driver, error) {
	if driverID == "" {
		return nil, assignmentErr("driver id is required", nil)
	}
	d, err := s.Fleet.GetDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, fleetRepo.ErrNotFound) {
			return nil, assignmentErr("driver not found", &NotFoundError{Resource: "driver", ID: driverID})
		}
		return nil, fmt.Errorf("failed to load driver: %w", err)
	}
	if d.OrgID != b.OrgID {
		return nil, assignmentErr("driver does not belong to booking's organization", nil)
	}
	if !d.IsVerified {
		return nil, assignmentErr("driver is not verified", nil)
	}
	return d, nil
}

func (s *DefaultBookingService) driverConflicts(ctx context.Context, driverID string, start, end time.Time, excludeBookingID string) ([]models.Booking, error) {
	out, err := s.Repo.FindOverlapping(ctx, bookingRepo.OverlapQuery{
		Kind:             bookingRepo.ResourceDriver,
		ResourceID:       driverID,
		Start:            start,
		End:              end,
		ExcludeBookingID: excludeBookingID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check driver availability: %w", err)
	}
	return out, nil
}

// setDriver writes the assignment and maps the driver constraint onto AssignmentError.
func (s *DefaultBookingService) setDriver(ctx context.Context, b *models.Booking, driverID *string) (*models.Booking, error) {
	previous := b.DriverID
	updated, err := s.Repo.SetDriver(ctx, b.ID, driverID)
	if err != nil {
		switch {
		case errors.Is(err, bookingRepo.ErrDriverOverlap):
			return nil, assignmentErr("driver already assigned to another booking during this time window", err)
		case errors.Is(err, bookingRepo.ErrBookingNotFound):
			return nil, assignmentErr("booking not found", &NotFoundError{Resource: "booking", ID: b.ID})
		}
		return nil, fmt.Errorf("failed to set driver on booking %s: %w", b.ID, err)
	}
	s.invalidate(ctx, updated, previous)
	return updated, nil
}

func (s *DefaultBookingService) assign(ctx context.Context, b *models.Booking, driverID string) (*models.Booking, error) {
	if _, err := s.validateDriver(ctx, b, driverID); err != nil {
		return nil, err
	}
	conflicts, err := s.driverConflicts(ctx, driverID, b.EffectiveStart, b.EffectiveEnd, b.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, assignmentErr("driver already assigned to another booking during this time window", nil)
	}
	return s.setDriver(ctx, b, &driverID)
}

func (s *DefaultBookingService) AssignDriver(ctx context.Context, bookingID, driverID string) (b *models.Booking, err error) {
	ctx, span := startSpan(ctx, "driver.assign",
		attribute.String("booking.id", bookingID),
		attribute.String("driver.id", driverID),
	)
	defer func() { endSpan(span, err) }()

	current, err := s.loadAssignable(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	b, err = s.assign(ctx, current, driverID)
	if err != nil {
		return nil, err
	}
	s.log().Info("Driver assigned to booking",
		zap.String("booking_id", bookingID), zap.String("driver_id", driverID), zap.String("assigned_by", "manual"))
	return b, nil
}

type driverLoad struct {
	driver   models.Driver
	upcoming int64
}

// AutoAssignDriver picks the verified, conflict-free driver with the fewest
// upcoming jobs. Ties go to the lowest driver id.
func (s *DefaultBookingService) AutoAssignDriver(ctx context.Context, bookingID string) (b *models.Booking, err error) {
	ctx, span := startSpan(ctx, "driver.assign",
		attribute.String("booking.id", bookingID),
		attribute.Bool("auto", true),
	)
	defer func() { endSpan(span, err) }()

	current, err := s.loadAssignable(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.HasDriver() {
		return current, nil
	}

	drivers, err := s.Fleet.ListDrivers(ctx, current.OrgID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	if len(drivers) == 0 {
		return nil, assignmentErr("no verified drivers available in organization", nil)
	}

	now := s.now()
	var candidates []driverLoad
	for _, d := range drivers {
		conflicts, err := s.driverConflicts(ctx, d.ID, current.EffectiveStart, current.EffectiveEnd, current.ID)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			continue
		}
		n, err := s.Repo.CountUpcomingForDriver(ctx, d.ID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to count assignments for driver %s: %w", d.ID, err)
		}
		candidates = append(candidates, driverLoad{driver: d, upcoming: n})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].upcoming != candidates[j].upcoming {
			return candidates[i].upcoming < candidates[j].upcoming
		}
		return candidates[i].driver.ID < candidates[j].driver.ID
	})

	for _, c := range candidates {
		driverID := c.driver.ID
		b, err = s.setDriver(ctx, current, &driverID)
		if err == nil {
			s.log().Info("Driver auto-assigned to booking",
				zap.String("booking_id", bookingID),
				zap.String("driver_id", driverID),
				zap.Int64("upcoming_assignments", c.upcoming),
			)
			return b, nil
		}
		var ae *AssignmentError
		if errors.As(err, &ae) && errors.Is(ae.Err, bookingRepo.ErrDriverOverlap) {
			s.log().Debug("Driver taken concurrently, trying next", zap.String("driver_id", driverID))
			continue
		}
		return nil, err
	}
	return nil, assignmentErr("no available drivers for this time slot", nil)
}

func (s *DefaultBookingService) UnassignDriver(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	current, err := s.loadAssignable(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !current.HasDriver() {
		return current, nil
	}
	previous := *current.DriverID

	b, err := s.setDriver(ctx, current, nil)
	if err != nil {
		return nil, err
	}
	s.log().Info("Driver unassigned from booking",
		zap.String("booking_id", bookingID),
		zap.String("previous_driver_id", previous),
		zap.String("reason", reason),
	)
	return b, nil
}

// ReassignDriver validates the new driver and swaps it in with a single write.
func (s *DefaultBookingService) ReassignDriver(ctx context.Context, bookingID, newDriverID, reason string) (b *models.Booking, err error) {
	ctx, span := startSpan(ctx, "driver.assign",
		attribute.String("booking.id", bookingID),
		attribute.String("driver.id", newDriverID),
		attribute.Bool("reassign", true),
	)
	defer func() { endSpan(span, err) }()

	current, err := s.loadAssignable(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	var previous string
	if current.HasDriver() {
		previous = *current.DriverID
	}
	b, err = s.assign(ctx, current, newDriverID)
	if err != nil {
		return nil, err
	}
	s.log().Info("Driver reassigned",
		zap.String("booking_id", bookingID),
		zap.String("old_driver_id", previous),
		zap.String("new_driver_id", newDriverID),
		zap.String("reason", reason),
	)
	return b, nil
}

// AvailableDrivers lists verified drivers with nothing active in [start, end).
func (s *DefaultBookingService) AvailableDrivers(ctx context.Context, orgID string, start, end time.Time) ([]models.Driver, error) {
	if !end.After(start) {
		return nil, invalid("end", "must be after start")
	}
	drivers, err := s.Fleet.ListDrivers(ctx, orgID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	out := []models.Driver{}
	for _, d := range drivers {
		conflicts, err := s.driverConflicts(ctx, d.ID, start, end, "")
		if err != nil {
			return nil, err
		}
		if len(conflicts) == 0 {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *DefaultBookingService) DriverSchedule(ctx context.Context, driverID string, from, to time.Time) ([]models.Booking, error) {
	if _, err := s.Fleet.GetDriver(ctx, driverID); err != nil {
		if errors.Is(err, fleetRepo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "driver", ID: driverID}
		}
		return nil, fmt.Errorf("failed to load driver: %w", err)
	}
	return s.ListBookings(ctx, bookingRepo.BookingFilter{
		DriverID: driverID,
		Statuses: models.ActiveStatuses,
		From:     &from,
		To:       &to,
		Limit:    500,
	})
}
