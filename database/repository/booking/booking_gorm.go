package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moveflow/models"

	"gorm.io/gorm"
)

// GormBookingRepo implements BookingRepository on Postgres. Overlap safety
// comes from the exclusion constraints installed by EnsureSchema.
type GormBookingRepo struct {
	db *gorm.DB
}

// NewGormBookingRepo constructs a Postgres-backed repository.
func NewGormBookingRepo(db *gorm.DB) *GormBookingRepo {
	return &GormBookingRepo{db: db}
}

func (r *GormBookingRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (r *GormBookingRepo) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to fetch booking %s: %w", id, err)
	}
	return &b, nil
}

func (r *GormBookingRepo) UpdateBookingFields(ctx context.Context, id string, u BookingUpdate) (*models.Booking, error) {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if u.FinalAmount != nil {
		updates["final_amount"] = *u.FinalAmount
	}
	if u.InternalNotes != nil {
		updates["internal_notes"] = *u.InternalNotes
	}
	if u.CustomerNotes != nil {
		updates["customer_notes"] = *u.CustomerNotes
	}

	var out models.Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update booking %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrBookingNotFound
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *GormBookingRepo) SetDriver(ctx context.Context, id string, driverID *string) (*models.Booking, error) {
	var out models.Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).Where("id = ?", id).
			Updates(map[string]interface{}{"driver_id": driverID, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			if mapped := mapConstraintError(res.Error); mapped != nil {
				return mapped
			}
			return fmt.Errorf("failed to set driver on booking %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrBookingNotFound
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *GormBookingRepo) TransitionStatus(ctx context.Context, id string, from, to models.BookingStatus, entry *models.BookingStatusHistory) (*models.Booking, error) {
	var out models.Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]interface{}{"status": to, "updated_at": entry.TransitionedAt})
		if res.Error != nil {
			if mapped := mapConstraintError(res.Error); mapped != nil {
				return mapped
			}
			return fmt.Errorf("failed to update booking status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Booking{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to re-check booking %s: %w", id, err)
			}
			if count == 0 {
				return ErrBookingNotFound
			}
			return ErrStatusChanged
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append status history: %w", err)
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *GormBookingRepo) CreateCancellation(ctx context.Context, c *models.BookingCancellation) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrCancellationExists
		}
		return fmt.Errorf("failed to insert cancellation: %w", err)
	}
	return nil
}

func (r *GormBookingRepo) GetCancellation(ctx context.Context, bookingID string) (*models.BookingCancellation, error) {
	var c models.BookingCancellation
	if err := r.db.WithContext(ctx).First(&c, "booking_id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCancellationNotFound
		}
		return nil, fmt.Errorf("failed to fetch cancellation for %s: %w", bookingID, err)
	}
	return &c, nil
}

func (r *GormBookingRepo) UpdateRefund(ctx context.Context, bookingID string, expected models.RefundStatus, u RefundUpdate) (*models.BookingCancellation, error) {
	updates := map[string]interface{}{
		"refund_status": u.Status,
		"updated_at":    time.Now().UTC(),
	}
	if u.ExternalRefundID != nil {
		updates["stripe_refund_id"] = *u.ExternalRefundID
	}
	if u.ProcessedAt != nil {
		updates["refund_processed_at"] = *u.ProcessedAt
	}
	if u.FailureReason != nil {
		updates["refund_failure_reason"] = *u.FailureReason
	}

	var out models.BookingCancellation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BookingCancellation{}).
			Where("booking_id = ? AND refund_status = ?", bookingID, expected).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update refund for %s: %w", bookingID, res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.BookingCancellation{}).Where("booking_id = ?", bookingID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to re-check cancellation %s: %w", bookingID, err)
			}
			if count == 0 {
				return ErrCancellationNotFound
			}
			return ErrRefundStateChanged
		}
		return tx.First(&out, "booking_id = ?", bookingID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
