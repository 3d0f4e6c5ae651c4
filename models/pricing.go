package models

import (
	"time"

	"gorm.io/datatypes"
)

// Surcharge rule types understood by the pricing engine.
const (
	SurchargeStairs     = "stairs"
	SurchargePiano      = "piano"
	SurchargeFragile    = "fragile"
	SurchargeAntiques   = "antiques"
	SurchargeWeekend    = "weekend"
	SurchargeAfterHours = "after_hours"
	SurchargeDistance   = "distance"
	SurchargeCustom     = "custom"
)

type SurchargeRule struct {
	Type        string   `json:"type" bson:"type"`
	Amount      *float64 `json:"amount,omitempty" bson:"amount,omitempty"`
	Multiplier  *float64 `json:"multiplier,omitempty" bson:"multiplier,omitempty"`
	PerFlight   bool     `json:"per_flight,omitempty" bson:"per_flight,omitempty"`
	Days        []int    `json:"days,omitempty" bson:"days,omitempty"` // ISO weekdays, Monday=1
	MinTime     string   `json:"min_time,omitempty" bson:"min_time,omitempty"`
	MaxTime     string   `json:"max_time,omitempty" bson:"max_time,omitempty"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
}

// PricingConfig holds an organization's rates. One per organization.
type PricingConfig struct {
	ID              string                             `gorm:"type:uuid;primaryKey" bson:"_id" json:"id"`
	OrgID           string                             `gorm:"type:uuid;not null;uniqueIndex" bson:"org_id" json:"org_id"`
	BaseHourlyRate  float64                            `gorm:"type:numeric(10,2);not null" bson:"base_hourly_rate" json:"base_hourly_rate"`
	BaseMileageRate float64                            `gorm:"type:numeric(10,2);not null" bson:"base_mileage_rate" json:"base_mileage_rate"`
	MinimumCharge   float64                            `gorm:"type:numeric(10,2);not null" bson:"minimum_charge" json:"minimum_charge"`
	SurchargeRules  datatypes.JSONSlice[SurchargeRule] `bson:"surcharge_rules" json:"surcharge_rules"`
	CreatedAt       time.Time                          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time                          `bson:"updated_at" json:"updated_at"`
}

// PriceEstimate is the pricing collaborator's output, consumed opaquely by the booking writer.
type PriceEstimate struct {
	EstimatedAmount float64         `json:"estimated_amount"`
	PlatformFee     float64         `json:"platform_fee"`
	Breakdown       *PriceBreakdown `json:"breakdown,omitempty"`
}

type PriceBreakdown struct {
	BaseHourlyCost  float64            `json:"base_hourly_cost"`
	BaseMileageCost float64            `json:"base_mileage_cost"`
	Surcharges      []AppliedSurcharge `json:"surcharges"`
	Subtotal        float64            `json:"subtotal"`
	MinimumApplied  bool               `json:"minimum_applied"`
	Total           float64            `json:"total"`
}

type AppliedSurcharge struct {
	Type        string   `json:"type"`
	Amount      float64  `json:"amount"`
	Flights     int      `json:"flights,omitempty"`
	Multiplier  *float64 `json:"multiplier,omitempty"`
	Description string   `json:"description,omitempty"`
}
