package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"moveflow/database/repository/memory"
	"moveflow/models"
)

func ptr[T any](v T) *T { return &v }

func rateCard(rules ...models.SurchargeRule) *models.PricingConfig {
	return &models.PricingConfig{
		OrgID:           "org-1",
		BaseHourlyRate:  100,
		BaseMileageRate: 2,
		MinimumCharge:   150,
		SurchargeRules:  rules,
	}
}

// 2026-03-11 is a Wednesday.
var weekdayMorning = time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

func TestCalculatePriceBase(t *testing.T) {
	est := CalculatePrice(rateCard(), PriceInput{
		MoveDate:               weekdayMorning,
		EstimatedDurationHours: 3,
		EstimatedDistanceMiles: 20,
	}, 5)

	// 3h * 100 + 20mi * 2
	if est.EstimatedAmount != 340 {
		t.Errorf("total = %v, want 340", est.EstimatedAmount)
	}
	if est.PlatformFee != 17 {
		t.Errorf("fee = %v, want 17", est.PlatformFee)
	}
	if est.Breakdown.MinimumApplied {
		t.Error("minimum should not apply")
	}
}

func TestCalculatePriceMinimumCharge(t *testing.T) {
	est := CalculatePrice(rateCard(), PriceInput{
		MoveDate:               weekdayMorning,
		EstimatedDurationHours: 1,
		EstimatedDistanceMiles: 1,
	}, 0)
	if est.EstimatedAmount != 150 || !est.Breakdown.MinimumApplied {
		t.Errorf("estimate = %+v breakdown = %+v", est, est.Breakdown)
	}
}

func TestCalculatePriceSurcharges(t *testing.T) {
	in := PriceInput{
		MoveDate:               weekdayMorning,
		EstimatedDurationHours: 2,
		EstimatedDistanceMiles: 10,
		PickupFloors:           2,
		DropoffFloors:          1,
		SpecialItems:           []string{" Piano ", "boxes"},
	}
	base := 220.0

	tests := []struct {
		name string
		rule models.SurchargeRule
		in   func(PriceInput) PriceInput
		want float64
	}{
		{"stairs flat", models.SurchargeRule{Type: models.SurchargeStairs, Amount: ptr(25.0)}, nil, base + 25},
		{"stairs per flight", models.SurchargeRule{Type: models.SurchargeStairs, Amount: ptr(10.0), PerFlight: true}, nil, base + 30},
		{"stairs skipped with elevator", models.SurchargeRule{Type: models.SurchargeStairs, Amount: ptr(25.0)},
			func(p PriceInput) PriceInput { p.HasElevatorPickup = true; return p }, base},
		{"piano matched case-insensitively", models.SurchargeRule{Type: models.SurchargePiano, Amount: ptr(150.0)}, nil, base + 150},
		{"fragile absent", models.SurchargeRule{Type: models.SurchargeFragile, Amount: ptr(50.0)}, nil, base},
		{"weekend skipped midweek", models.SurchargeRule{Type: models.SurchargeWeekend, Multiplier: ptr(1.5)}, nil, base},
		{"weekend on saturday", models.SurchargeRule{Type: models.SurchargeWeekend, Multiplier: ptr(1.5)},
			func(p PriceInput) PriceInput { p.MoveDate = weekdayMorning.AddDate(0, 0, 3); return p }, base * 1.5},
		{"weekend custom days", models.SurchargeRule{Type: models.SurchargeWeekend, Multiplier: ptr(1.2), Days: []int{3}}, nil, base * 1.2},
		{"after hours wraps midnight", models.SurchargeRule{Type: models.SurchargeAfterHours, Multiplier: ptr(1.25), MinTime: "18:00", MaxTime: "08:00"},
			func(p PriceInput) PriceInput { p.MoveDate = weekdayMorning.Add(-3 * time.Hour); return p }, base * 1.25},
		{"after hours inside business day", models.SurchargeRule{Type: models.SurchargeAfterHours, Multiplier: ptr(1.25), MinTime: "18:00", MaxTime: "08:00"}, nil, base},
		{"distance below threshold", models.SurchargeRule{Type: models.SurchargeDistance, Amount: ptr(75.0)}, nil, base},
		{"distance above threshold", models.SurchargeRule{Type: models.SurchargeDistance, Amount: ptr(75.0)},
			func(p PriceInput) PriceInput { p.EstimatedDistanceMiles = 60; return p }, 200 + 120 + 75},
		{"custom", models.SurchargeRule{Type: models.SurchargeCustom, Amount: ptr(12.5)}, nil, base + 12.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := in
			if tt.in != nil {
				input = tt.in(in)
			}
			est := CalculatePrice(rateCard(tt.rule), input, 0)
			if est.EstimatedAmount != roundCents(tt.want) {
				t.Errorf("total = %v, want %v", est.EstimatedAmount, roundCents(tt.want))
			}
		})
	}
}

func TestEstimatePriceMissingConfig(t *testing.T) {
	store := memory.NewStore()
	svc := NewDefaultBookingService(store, store, nil)
	_, err := svc.EstimatePrice(context.Background(), "org-without-card", PriceInput{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
