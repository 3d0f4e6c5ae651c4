package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	fleetRepo "moveflow/database/repository/fleet"
	"moveflow/models"

	"go.uber.org/zap"
)

// longDistanceMiles is the threshold above which the distance surcharge applies.
const longDistanceMiles = 50

// PriceInput is the subset of a booking request that drives pricing.
type PriceInput struct {
	MoveDate               time.Time
	EstimatedDistanceMiles float64
	EstimatedDurationHours float64
	SpecialItems           []string
	PickupFloors           int
	DropoffFloors          int
	HasElevatorPickup      bool
	HasElevatorDropoff     bool
}

func (r CreateBookingRequest) PriceInput() PriceInput {
	return PriceInput{
		MoveDate:               r.MoveDate,
		EstimatedDistanceMiles: r.EstimatedDistanceMiles,
		EstimatedDurationHours: r.EstimatedDurationHours,
		SpecialItems:           r.SpecialItems,
		PickupFloors:           r.PickupFloors,
		DropoffFloors:          r.DropoffFloors,
		HasElevatorPickup:      r.HasElevatorPickup,
		HasElevatorDropoff:     r.HasElevatorDropoff,
	}
}

// EstimatePrice prices a move with the organization's rate card.
func (s *DefaultBookingService) EstimatePrice(ctx context.Context, orgID string, in PriceInput) (*models.PriceEstimate, error) {
	cfg, err := s.Fleet.GetPricingConfig(ctx, orgID)
	if err != nil {
		if errors.Is(err, fleetRepo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "pricing config", ID: orgID}
		}
		return nil, fmt.Errorf("failed to load pricing config: %w", err)
	}
	est := CalculatePrice(cfg, in, s.Rules.PlatformFeePercentage)
	s.log().Debug("Price calculated",
		zap.String("org_id", orgID),
		zap.Float64("total", est.EstimatedAmount),
		zap.Int("surcharges", len(est.Breakdown.Surcharges)),
		zap.Bool("minimum_applied", est.Breakdown.MinimumApplied),
	)
	return est, nil
}

// CalculatePrice is hourly plus mileage cost, plus surcharges, floored at the
// minimum charge. Multiplier surcharges scale the base cost only.
func CalculatePrice(cfg *models.PricingConfig, in PriceInput, feePercentage float64) *models.PriceEstimate {
	hourly := cfg.BaseHourlyRate * in.EstimatedDurationHours
	mileage := cfg.BaseMileageRate * in.EstimatedDistanceMiles
	base := hourly + mileage

	applied := []models.AppliedSurcharge{}
	var surcharges float64
	for _, rule := range cfg.SurchargeRules {
		if sc, ok := applySurcharge(rule, base, in); ok {
			surcharges += sc.Amount
			sc.Amount = roundCents(sc.Amount)
			applied = append(applied, sc)
		}
	}

	subtotal := base + surcharges
	total := math.Max(subtotal, cfg.MinimumCharge)
	fee := total * feePercentage / 100

	return &models.PriceEstimate{
		EstimatedAmount: roundCents(total),
		PlatformFee:     roundCents(fee),
		Breakdown: &models.PriceBreakdown{
			BaseHourlyCost:  roundCents(hourly),
			BaseMileageCost: roundCents(mileage),
			Surcharges:      applied,
			Subtotal:        roundCents(subtotal),
			MinimumApplied:  subtotal < cfg.MinimumCharge,
			Total:           roundCents(total),
		},
	}
}

func applySurcharge(rule models.SurchargeRule, base float64, in PriceInput) (models.AppliedSurcharge, bool) {
	out := models.AppliedSurcharge{Type: rule.Type, Description: rule.Description}

	switch rule.Type {
	case models.SurchargeStairs:
		flights := in.PickupFloors + in.DropoffFloors
		if flights <= 0 || in.HasElevatorPickup || in.HasElevatorDropoff || rule.Amount == nil {
			return out, false
		}
		out.Amount = *rule.Amount
		if rule.PerFlight {
			out.Amount *= float64(flights)
			out.Flights = flights
		}
		return out, true

	case models.SurchargePiano, models.SurchargeFragile, models.SurchargeAntiques:
		if rule.Amount == nil || !hasItem(in.SpecialItems, rule.Type) {
			return out, false
		}
		out.Amount = *rule.Amount
		return out, true

	case models.SurchargeWeekend:
		if rule.Multiplier == nil || !isSurchargeDay(in.MoveDate, rule.Days) {
			return out, false
		}
		out.Amount = base * (*rule.Multiplier - 1)
		out.Multiplier = rule.Multiplier
		return out, true

	case models.SurchargeAfterHours:
		if rule.Multiplier == nil || !isAfterHours(in.MoveDate, rule.MinTime, rule.MaxTime) {
			return out, false
		}
		out.Amount = base * (*rule.Multiplier - 1)
		out.Multiplier = rule.Multiplier
		return out, true

	case models.SurchargeDistance:
		if rule.Amount == nil || in.EstimatedDistanceMiles <= longDistanceMiles {
			return out, false
		}
		out.Amount = *rule.Amount
		return out, true

	case models.SurchargeCustom:
		if rule.Amount == nil {
			return out, false
		}
		out.Amount = *rule.Amount
		return out, true
	}
	return out, false
}

func hasItem(items []string, want string) bool {
	for _, it := range items {
		if strings.EqualFold(strings.TrimSpace(it), want) {
			return true
		}
	}
	return false
}

// isSurchargeDay matches ISO weekdays (Monday=1). No days means Saturday and Sunday.
func isSurchargeDay(t time.Time, days []int) bool {
	iso := int(t.Weekday())
	if iso == 0 {
		iso = 7
	}
	if len(days) == 0 {
		return iso >= 6
	}
	for _, d := range days {
		if d == iso {
			return true
		}
	}
	return false
}

// isAfterHours handles ranges that wrap midnight, such as 18:00-08:00.
func isAfterHours(t time.Time, minTime, maxTime string) bool {
	from, err1 := time.Parse("15:04", minTime)
	to, err2 := time.Parse("15:04", maxTime)
	if err1 != nil || err2 != nil {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	lo := from.Hour()*60 + from.Minute()
	hi := to.Hour()*60 + to.Minute()
	if lo > hi {
		return minute >= lo || minute <= hi
	}
	return minute >= lo && minute <= hi
}

// roundCents rounds half away from zero to two decimals.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
