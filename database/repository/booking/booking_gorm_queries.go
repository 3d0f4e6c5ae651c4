package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"moveflow/models"
)

func (r *GormBookingRepo) FindOverlapping(ctx context.Context, q OverlapQuery) ([]models.Booking, error) {
	column := "truck_id"
	if q.Kind == ResourceDriver {
		column = "driver_id"
	}

	// Half-open intervals: touching endpoints do not overlap.
	tx := r.db.WithContext(ctx).
		Where(column+" = ?", q.ResourceID).
		Where("status IN ?", models.ActiveStatuses).
		Where("effective_start < ? AND effective_end > ?", q.End, q.Start)
	if q.ExcludeBookingID != "" {
		tx = tx.Where("id <> ?", q.ExcludeBookingID)
	}

	var out []models.Booking
	if err := tx.Order("effective_start ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}
	return out, nil
}

func (r *GormBookingRepo) CountUpcomingForDriver(ctx context.Context, driverID string, after time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("driver_id = ? AND status IN ? AND effective_start > ?", driverID, models.ActiveStatuses, after).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count assignments for driver %s: %w", driverID, err)
	}
	return count, nil
}

func (r *GormBookingRepo) ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	tx := r.db.WithContext(ctx).Model(&models.Booking{})
	if f.OrgID != "" {
		tx = tx.Where("org_id = ?", f.OrgID)
	}
	if f.TruckID != "" {
		tx = tx.Where("truck_id = ?", f.TruckID)
	}
	if f.DriverID != "" {
		tx = tx.Where("driver_id = ?", f.DriverID)
	}
	if f.CustomerEmail != "" {
		tx = tx.Where("customer_email = ?", f.CustomerEmail)
	}
	if len(f.Statuses) > 0 {
		tx = tx.Where("status IN ?", f.Statuses)
	}
	if f.To != nil {
		tx = tx.Where("effective_start < ?", *f.To)
	}
	if f.From != nil {
		tx = tx.Where("effective_end > ?", *f.From)
	}
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	if f.Offset > 0 {
		tx = tx.Offset(f.Offset)
	}

	var out []models.Booking
	if err := tx.Order("effective_start ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return out, nil
}

func (r *GormBookingRepo) ListStatusHistory(ctx context.Context, bookingID string) ([]models.BookingStatusHistory, error) {
	var out []models.BookingStatusHistory
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("transitioned_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list status history for %s: %w", bookingID, err)
	}
	return out, nil
}

func (r *GormBookingRepo) ListCancellationsByRefundStatus(ctx context.Context, status models.RefundStatus, limit int) ([]models.BookingCancellation, error) {
	tx := r.db.WithContext(ctx).
		Where("refund_status = ? AND refund_amount > 0", status).
		Order("cancelled_at ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var out []models.BookingCancellation
	if err := tx.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list cancellations by refund status: %w", err)
	}
	return out, nil
}
