package models

import (
	"time"

	"gorm.io/datatypes"
)

// Booking is a reservation of a truck (and optionally a driver) for a move.
type Booking struct {
	ID       string  `gorm:"type:uuid;primaryKey" bson:"_id" json:"id"`
	OrgID    string  `gorm:"type:uuid;not null;index:idx_booking_org_move,priority:1" bson:"org_id" json:"org_id"`
	TruckID  string  `gorm:"type:uuid;not null;index:idx_booking_availability,priority:1" bson:"truck_id" json:"truck_id"`
	DriverID *string `gorm:"type:uuid;index:idx_booking_driver_window,priority:1" bson:"driver_id,omitempty" json:"driver_id,omitempty"`

	CustomerName  string `gorm:"size:255;not null" bson:"customer_name" json:"customer_name"`
	CustomerEmail string `gorm:"size:255;not null;index" bson:"customer_email" json:"customer_email"`
	CustomerPhone string `gorm:"size:20;not null" bson:"customer_phone" json:"customer_phone"`

	MoveDate       time.Time `gorm:"not null;index:idx_booking_org_move,priority:2" bson:"move_date" json:"move_date"`
	PickupAddress  string    `gorm:"size:512;not null" bson:"pickup_address" json:"pickup_address"`
	PickupCity     string    `gorm:"size:100;not null" bson:"pickup_city" json:"pickup_city"`
	PickupState    string    `gorm:"size:50;not null" bson:"pickup_state" json:"pickup_state"`
	PickupZip      string    `gorm:"size:10;not null" bson:"pickup_zip" json:"pickup_zip"`
	DropoffAddress string    `gorm:"size:512;not null" bson:"dropoff_address" json:"dropoff_address"`
	DropoffCity    string    `gorm:"size:100;not null" bson:"dropoff_city" json:"dropoff_city"`
	DropoffState   string    `gorm:"size:50;not null" bson:"dropoff_state" json:"dropoff_state"`
	DropoffZip     string    `gorm:"size:10;not null" bson:"dropoff_zip" json:"dropoff_zip"`

	EstimatedDistanceMiles float64 `gorm:"not null" bson:"estimated_distance_miles" json:"estimated_distance_miles"`
	EstimatedDurationHours float64 `gorm:"not null" bson:"estimated_duration_hours" json:"estimated_duration_hours"`
	CommuteBufferMinutes   int     `gorm:"not null;default:30" bson:"commute_buffer_minutes" json:"commute_buffer_minutes"`

	// Derived from MoveDate, duration and buffer when the booking is written.
	EffectiveStart time.Time `gorm:"not null;index:idx_booking_availability,priority:2;index:idx_booking_driver_window,priority:2" bson:"effective_start" json:"effective_start"`
	EffectiveEnd   time.Time `gorm:"not null;index:idx_booking_availability,priority:3;index:idx_booking_driver_window,priority:3" bson:"effective_end" json:"effective_end"`

	SpecialItems       datatypes.JSONSlice[string] `bson:"special_items" json:"special_items"`
	PickupFloors       int                         `gorm:"not null;default:0" bson:"pickup_floors" json:"pickup_floors"`
	DropoffFloors      int                         `gorm:"not null;default:0" bson:"dropoff_floors" json:"dropoff_floors"`
	HasElevatorPickup  bool                        `gorm:"not null;default:false" bson:"has_elevator_pickup" json:"has_elevator_pickup"`
	HasElevatorDropoff bool                        `gorm:"not null;default:false" bson:"has_elevator_dropoff" json:"has_elevator_dropoff"`

	EstimatedAmount       float64  `gorm:"type:numeric(10,2);not null" bson:"estimated_amount" json:"estimated_amount"`
	FinalAmount           *float64 `gorm:"type:numeric(10,2)" bson:"final_amount,omitempty" json:"final_amount,omitempty"`
	PlatformFee           float64  `gorm:"type:numeric(10,2);not null" bson:"platform_fee" json:"platform_fee"`
	StripePaymentIntentID *string  `gorm:"size:255" bson:"stripe_payment_intent_id,omitempty" json:"stripe_payment_intent_id,omitempty"`

	Status        BookingStatus `gorm:"type:varchar(20);not null;index" bson:"status" json:"status"`
	CustomerNotes *string       `gorm:"type:text" bson:"customer_notes,omitempty" json:"customer_notes,omitempty"`
	InternalNotes *string       `gorm:"type:text" bson:"internal_notes,omitempty" json:"internal_notes,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ChargeableAmount is the amount a refund is computed from.
func (b *Booking) ChargeableAmount() float64 {
	if b.FinalAmount != nil {
		return *b.FinalAmount
	}
	return b.EstimatedAmount
}

// HasDriver reports whether a driver is assigned.
func (b *Booking) HasDriver() bool {
	return b.DriverID != nil && *b.DriverID != ""
}

// Snapshot is the read-only view of a booking handed to notification collaborators.
func (b *Booking) Snapshot() BookingSnapshot {
	return BookingSnapshot{
		ID:              b.ID,
		OrgID:           b.OrgID,
		TruckID:         b.TruckID,
		DriverID:        b.DriverID,
		CustomerName:    b.CustomerName,
		CustomerEmail:   b.CustomerEmail,
		CustomerPhone:   b.CustomerPhone,
		MoveDate:        b.MoveDate,
		PickupAddress:   b.PickupAddress,
		DropoffAddress:  b.DropoffAddress,
		Status:          b.Status,
		EstimatedAmount: b.EstimatedAmount,
		FinalAmount:     b.FinalAmount,
	}
}

type BookingSnapshot struct {
	ID              string        `json:"id"`
	OrgID           string        `json:"org_id"`
	TruckID         string        `json:"truck_id"`
	DriverID        *string       `json:"driver_id,omitempty"`
	CustomerName    string        `json:"customer_name"`
	CustomerEmail   string        `json:"customer_email"`
	CustomerPhone   string        `json:"customer_phone"`
	MoveDate        time.Time     `json:"move_date"`
	PickupAddress   string        `json:"pickup_address"`
	DropoffAddress  string        `json:"dropoff_address"`
	Status          BookingStatus `json:"status"`
	EstimatedAmount float64       `json:"estimated_amount"`
	FinalAmount     *float64      `json:"final_amount,omitempty"`
}
