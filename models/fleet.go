package models

import "time"

// Organization is a moving company on the platform.
type Organization struct {
	ID        string    `gorm:"type:uuid;primaryKey" bson:"_id" json:"id"`
	Name      string    `gorm:"size:255;not null" bson:"name" json:"name"`
	Email     string    `gorm:"size:255;not null" bson:"email" json:"email"`
	Phone     string    `gorm:"size:20" bson:"phone" json:"phone"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type Truck struct {
	ID                string    `gorm:"type:uuid;primaryKey" bson:"_id" json:"id"`
	OrgID             string    `gorm:"type:uuid;not null;index" bson:"org_id" json:"org_id"`
	LicensePlate      string    `gorm:"size:20;not null;uniqueIndex" bson:"license_plate" json:"license_plate"`
	Make              string    `gorm:"size:100" bson:"make" json:"make"`
	Model             string    `gorm:"size:100" bson:"model" json:"model"`
	Year              int       `bson:"year" json:"year"`
	CapacityCubicFeet int       `bson:"capacity_cubic_feet" json:"capacity_cubic_feet"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updated_at"`
}

// Driver busy time is derived from bookings; there is no separate calendar.
type Driver struct {
	ID            string    `gorm:"type:uuid;primaryKey" bson:"_id" json:"id"`
	OrgID         string    `gorm:"type:uuid;not null;index" bson:"org_id" json:"org_id"`
	Name          string    `gorm:"size:255;not null" bson:"name" json:"name"`
	Email         string    `gorm:"size:255" bson:"email" json:"email"`
	Phone         string    `gorm:"size:20" bson:"phone" json:"phone"`
	LicenseNumber string    `gorm:"size:50;not null;uniqueIndex" bson:"license_number" json:"license_number"`
	IsVerified    bool      `gorm:"not null;default:false" bson:"is_verified" json:"is_verified"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}
