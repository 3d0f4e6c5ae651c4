package models

import "time"

// BookingStatusHistory is one immutable audit row per status transition.
type BookingStatusHistory struct {
	ID                 string        `gorm:"type:uuid;primaryKey" bson:"_id" json:"id"`
	BookingID          string        `gorm:"type:uuid;not null;index:idx_history_booking_time,priority:1" bson:"booking_id" json:"booking_id"`
	FromStatus         BookingStatus `gorm:"type:varchar(20);not null" bson:"from_status" json:"from_status"`
	ToStatus           BookingStatus `gorm:"type:varchar(20);not null" bson:"to_status" json:"to_status"`
	TransitionedByID   *string       `gorm:"type:uuid" bson:"transitioned_by_id,omitempty" json:"transitioned_by_id,omitempty"`
	TransitionedByType ActorType     `gorm:"type:varchar(20);not null" bson:"transitioned_by_type" json:"transitioned_by_type"`
	TransitionedByName string        `gorm:"size:255" bson:"transitioned_by_name" json:"transitioned_by_name"`
	Notes              *string       `gorm:"type:text" bson:"notes,omitempty" json:"notes,omitempty"`
	TransitionedAt     time.Time     `gorm:"not null;index:idx_history_booking_time,priority:2" bson:"transitioned_at" json:"transitioned_at"`
}

func (BookingStatusHistory) TableName() string {
	return "booking_status_history"
}
