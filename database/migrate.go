package database

import (
	"context"
	"fmt"

	bookingRepo "moveflow/database/repository/booking"
	fleetRepo "moveflow/database/repository/fleet"
)

// MigratePostgres creates the fleet tables before the booking tables so the
// booking foreign keys resolve.
func MigratePostgres(ctx context.Context, fleet *fleetRepo.GormFleetRepo, bookings *bookingRepo.GormBookingRepo) error {
	if err := fleet.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("fleet schema: %w", err)
	}
	if err := bookings.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("booking schema: %w", err)
	}
	return nil
}

func EnsureMongoIndexes(ctx context.Context, fleet *fleetRepo.MongoFleetRepo, bookings *bookingRepo.MongoBookingRepo) error {
	if err := fleet.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("fleet indexes: %w", err)
	}
	if err := bookings.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("booking indexes: %w", err)
	}
	return nil
}
