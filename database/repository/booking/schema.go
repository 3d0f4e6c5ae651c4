package bookingRepo

import (
	"context"
	"errors"
	"fmt"

	"moveflow/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	TruckExclusionConstraint  = "exclude_overlapping_bookings"
	DriverExclusionConstraint = "exclude_overlapping_driver_assignments"

	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

type tableConstraint struct {
	name  string
	table string
	ddl   string
}

// constraints that AutoMigrate cannot express. Each is added only if missing.
var bookingConstraints = []tableConstraint{
	{
		name:  TruckExclusionConstraint,
		table: "bookings",
		ddl: `EXCLUDE USING gist (truck_id WITH =, tstzrange(effective_start, effective_end, '[)') WITH &&)
			WHERE (status IN ('confirmed', 'in_progress'))`,
	},
	{
		name:  DriverExclusionConstraint,
		table: "bookings",
		ddl: `EXCLUDE USING gist (driver_id WITH =, tstzrange(effective_start, effective_end, '[)') WITH &&)
			WHERE (driver_id IS NOT NULL AND status IN ('confirmed', 'in_progress'))`,
	},
	{name: "positive_duration", table: "bookings", ddl: "CHECK (estimated_duration_hours > 0)"},
	{name: "positive_distance", table: "bookings", ddl: "CHECK (estimated_distance_miles > 0)"},
	{name: "non_negative_buffer", table: "bookings", ddl: "CHECK (commute_buffer_minutes >= 0)"},
	{name: "valid_effective_window", table: "bookings", ddl: "CHECK (effective_end > effective_start)"},
	{name: "non_negative_amounts", table: "bookings", ddl: "CHECK (estimated_amount >= 0 AND platform_fee >= 0 AND (final_amount IS NULL OR final_amount >= 0))"},
	{name: "valid_booking_status", table: "bookings", ddl: "CHECK (status IN ('pending', 'confirmed', 'in_progress', 'completed', 'cancelled'))"},
	{name: "fk_status_history_booking", table: "booking_status_history", ddl: "FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE"},
	{name: "valid_actor_type", table: "booking_status_history", ddl: "CHECK (transitioned_by_type IN ('system', 'customer', 'mover', 'platform_admin'))"},
	{name: "fk_cancellation_booking", table: "booking_cancellations", ddl: "FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE"},
	{name: "refund_within_original", table: "booking_cancellations", ddl: "CHECK (refund_amount >= 0 AND refund_amount <= original_amount)"},
	{name: "non_negative_hours_before_move", table: "booking_cancellations", ddl: "CHECK (hours_before_move >= 0)"},
}

// EnsureSchema migrates the booking tables and installs the overlap
// exclusion constraints.
func (r *GormBookingRepo) EnsureSchema(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS btree_gist").Error; err != nil {
		return fmt.Errorf("failed to enable btree_gist: %w", err)
	}
	if err := db.AutoMigrate(&models.Booking{}, &models.BookingStatusHistory{}, &models.BookingCancellation{}); err != nil {
		return fmt.Errorf("failed to migrate booking tables: %w", err)
	}
	for _, c := range bookingConstraints {
		if err := ensureConstraint(db, c); err != nil {
			return err
		}
	}
	return nil
}

func ensureConstraint(db *gorm.DB, c tableConstraint) error {
	var exists bool
	err := db.Raw("SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = ?)", c.name).Scan(&exists).Error
	if err != nil {
		return fmt.Errorf("failed to look up constraint %s: %w", c.name, err)
	}
	if exists {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", c.table, c.name, c.ddl)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to add constraint %s: %w", c.name, err)
	}
	return nil
}

// mapConstraintError converts exclusion violations into ErrOverlap or
// ErrDriverOverlap. It returns nil for any other error.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgExclusionViolation {
		return nil
	}
	if pgErr.ConstraintName == DriverExclusionConstraint {
		return ErrDriverOverlap
	}
	return ErrOverlap
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
