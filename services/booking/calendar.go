package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingRepo "moveflow/database/repository/booking"
	fleetRepo "moveflow/database/repository/fleet"
	"moveflow/models"
)

// TruckSchedule lists the active bookings that occupy a truck in [from, to).
func (s *DefaultBookingService) TruckSchedule(ctx context.Context, truckID string, from, to time.Time) ([]models.Booking, error) {
	if _, err := s.Fleet.GetTruck(ctx, truckID); err != nil {
		if errors.Is(err, fleetRepo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "truck", ID: truckID}
		}
		return nil, fmt.Errorf("failed to load truck: %w", err)
	}
	return s.ListBookings(ctx, bookingRepo.BookingFilter{
		TruckID:  truckID,
		Statuses: models.ActiveStatuses,
		From:     &from,
		To:       &to,
		Limit:    500,
	})
}

// OrgCalendar lists an organization's bookings in [from, to). No statuses means all.
func (s *DefaultBookingService) OrgCalendar(ctx context.Context, orgID string, from, to time.Time, statuses []models.BookingStatus) ([]models.Booking, error) {
	if _, err := s.Fleet.GetOrganization(ctx, orgID); err != nil {
		if errors.Is(err, fleetRepo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "organization", ID: orgID}
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	return s.ListBookings(ctx, bookingRepo.BookingFilter{
		OrgID:    orgID,
		Statuses: statuses,
		From:     &from,
		To:       &to,
		Limit:    500,
	})
}
