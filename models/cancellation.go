package models

import "time"

// CancelledBy is the party that cancelled a booking.
type CancelledBy string

const (
	CancelledByCustomer CancelledBy = "customer"
	CancelledByMover    CancelledBy = "mover"
	CancelledByPlatform CancelledBy = "platform"
)

func (c CancelledBy) IsValid() bool {
	switch c {
	case CancelledByCustomer, CancelledByMover, CancelledByPlatform:
		return true
	}
	return false
}

// ActorType maps the cancelling party onto the audit actor categories.
func (c CancelledBy) ActorType() ActorType {
	switch c {
	case CancelledByCustomer:
		return ActorCustomer
	case CancelledByMover:
		return ActorMover
	default:
		return ActorPlatformAdmin
	}
}

// OffersRebook reports whether a replacement booking is offered. Only
// provider-side cancellations qualify.
func (c CancelledBy) OffersRebook() bool {
	return c == CancelledByMover || c == CancelledByPlatform
}

type RefundStatus string

const (
	RefundPending    RefundStatus = "pending"
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
	RefundNone       RefundStatus = "no_refund"
)

// BookingCancellation records the cancellation of exactly one booking.
type BookingCancellation struct {
	ID                 string      `gorm:"type:uuid;primaryKey" bson:"_id" json:"id"`
	BookingID          string      `gorm:"type:uuid;not null;uniqueIndex" bson:"booking_id" json:"booking_id"`
	CancelledBy        CancelledBy `gorm:"type:varchar(20);not null" bson:"cancelled_by" json:"cancelled_by"`
	CancelledByID      *string     `gorm:"type:uuid" bson:"cancelled_by_id,omitempty" json:"cancelled_by_id,omitempty"`
	CancelledByName    string      `gorm:"size:255" bson:"cancelled_by_name" json:"cancelled_by_name"`
	CancelledAt        time.Time   `gorm:"not null" bson:"cancelled_at" json:"cancelled_at"`
	CancellationReason string      `gorm:"type:text;not null" bson:"cancellation_reason" json:"cancellation_reason"`
	HoursBeforeMove    float64     `gorm:"not null" bson:"hours_before_move" json:"hours_before_move"`

	OriginalAmount      float64      `gorm:"type:numeric(10,2);not null" bson:"original_amount" json:"original_amount"`
	RefundPercentage    int          `gorm:"not null" bson:"refund_percentage" json:"refund_percentage"`
	RefundAmount        float64      `gorm:"type:numeric(10,2);not null" bson:"refund_amount" json:"refund_amount"`
	RefundReason        string       `gorm:"size:255" bson:"refund_reason" json:"refund_reason"`
	RefundStatus        RefundStatus `gorm:"type:varchar(20);not null;index" bson:"refund_status" json:"refund_status"`
	StripeRefundID      *string      `gorm:"size:255" bson:"stripe_refund_id,omitempty" json:"stripe_refund_id,omitempty"`
	RefundProcessedAt   *time.Time   `bson:"refund_processed_at,omitempty" json:"refund_processed_at,omitempty"`
	RefundFailureReason *string      `gorm:"type:text" bson:"refund_failure_reason,omitempty" json:"refund_failure_reason,omitempty"`

	RebookOffered  bool    `gorm:"not null;default:false" bson:"rebook_offered" json:"rebook_offered"`
	RebookAccepted bool    `gorm:"not null;default:false" bson:"rebook_accepted" json:"rebook_accepted"`
	NewBookingID   *string `gorm:"type:uuid" bson:"new_booking_id,omitempty" json:"new_booking_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
