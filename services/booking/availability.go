package booking

import (
	"context"
	"fmt"
	"time"

	bookingRepo "moveflow/database/repository/booking"
	"moveflow/models"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SuggestionGap separates a suggested slot from the conflict it follows.
const SuggestionGap = 15 * time.Minute

// AvailabilityQuery asks whether a resource is free in [Start, End).
// Duration sizes the suggested slot and defaults to End - Start.
type AvailabilityQuery struct {
	Kind       bookingRepo.ResourceKind
	ResourceID string
	Start      time.Time
	End        time.Time
	Duration   time.Duration
}

type Conflict struct {
	BookingID string               `json:"booking_id"`
	Status    models.BookingStatus `json:"status"`
	Start     time.Time            `json:"start"`
	End       time.Time            `json:"end"`
}

type AvailabilityResult struct {
	IsAvailable   bool        `json:"is_available"`
	Window        TimeWindow  `json:"window"`
	Conflicts     []Conflict  `json:"conflicts"`
	SuggestedSlot *TimeWindow `json:"suggested_slot,omitempty"`
}

type TruckAvailabilityRequest struct {
	TruckID       string    `json:"truck_id"`
	MoveDate      time.Time `json:"move_date"`
	DurationHours float64   `json:"duration_hours"`
	BufferMinutes *int      `json:"buffer_minutes,omitempty"`
}

// CheckAvailability is advisory. The write path relies on the store's
// constraint, never on this result.
func (s *DefaultBookingService) CheckAvailability(ctx context.Context, q AvailabilityQuery) (res *AvailabilityResult, err error) {
	ctx, span := startSpan(ctx, "booking.check_availability",
		attribute.String("resource.kind", string(q.Kind)),
		attribute.String("resource.id", q.ResourceID),
	)
	defer func() { endSpan(span, err) }()

	if q.ResourceID == "" {
		return nil, invalid("resource_id", "is required")
	}
	if q.Kind == "" {
		q.Kind = bookingRepo.ResourceTruck
	}
	if !q.End.After(q.Start) {
		return nil, invalid("end", "must be after start")
	}
	if q.Duration <= 0 {
		q.Duration = q.End.Sub(q.Start)
	}

	var cacheKey string
	if s.Cache != nil {
		key, cerr := s.Cache.Key(ctx, q)
		if cerr != nil {
			s.log().Warn("Availability cache unavailable", zap.Error(cerr))
		} else {
			cacheKey = key
			cached, ok, gerr := s.Cache.Get(ctx, key)
			if gerr != nil {
				s.log().Warn("Availability cache lookup failed", zap.Error(gerr))
			} else if ok {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				return cached, nil
			}
		}
	}

	overlapping, err := s.Repo.FindOverlapping(ctx, bookingRepo.OverlapQuery{
		Kind:       q.Kind,
		ResourceID: q.ResourceID,
		Start:      q.Start,
		End:        q.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}

	res = buildAvailability(TimeWindow{Start: q.Start, End: q.End}, q.Duration, overlapping)

	if cacheKey != "" {
		if cerr := s.Cache.Set(ctx, cacheKey, res); cerr != nil {
			s.log().Warn("Availability cache store failed", zap.Error(cerr))
		}
	}
	return res, nil
}

func buildAvailability(window TimeWindow, duration time.Duration, overlapping []models.Booking) *AvailabilityResult {
	res := &AvailabilityResult{Window: window, Conflicts: []Conflict{}}
	var latestEnd time.Time
	for _, b := range overlapping {
		res.Conflicts = append(res.Conflicts, Conflict{
			BookingID: b.ID,
			Status:    b.Status,
			Start:     b.EffectiveStart,
			End:       b.EffectiveEnd,
		})
		if b.EffectiveEnd.After(latestEnd) {
			latestEnd = b.EffectiveEnd
		}
	}
	res.IsAvailable = len(res.Conflicts) == 0
	if !res.IsAvailable {
		start := latestEnd.Add(SuggestionGap)
		res.SuggestedSlot = &TimeWindow{Start: start, End: start.Add(duration)}
	}
	return res
}

// CheckTruckAvailability expands the move into its effective window first.
func (s *DefaultBookingService) CheckTruckAvailability(ctx context.Context, req TruckAvailabilityRequest) (*AvailabilityResult, error) {
	if req.TruckID == "" {
		return nil, invalid("truck_id", "is required")
	}
	if req.DurationHours <= 0 {
		return nil, invalid("duration_hours", "must be greater than 0")
	}
	buffer := s.Rules.DefaultBufferMinutes
	if req.BufferMinutes != nil {
		if *req.BufferMinutes < 0 {
			return nil, invalid("buffer_minutes", "must not be negative")
		}
		buffer = *req.BufferMinutes
	}

	w := ComputeWindow(req.MoveDate, req.DurationHours, buffer)
	return s.CheckAvailability(ctx, AvailabilityQuery{
		Kind:       bookingRepo.ResourceTruck,
		ResourceID: req.TruckID,
		Start:      w.Start,
		End:        w.End,
		Duration:   time.Duration(req.DurationHours * float64(time.Hour)),
	})
}

type resourceRef struct {
	kind bookingRepo.ResourceKind
	id   string
}

// invalidate drops cached availability for every resource b occupies.
func (s *DefaultBookingService) invalidate(ctx context.Context, b *models.Booking, previousDriverID *string) {
	if s.Cache == nil || b == nil {
		return
	}
	refs := []resourceRef{{bookingRepo.ResourceTruck, b.TruckID}}
	if b.HasDriver() {
		refs = append(refs, resourceRef{bookingRepo.ResourceDriver, *b.DriverID})
	}
	if previousDriverID != nil && *previousDriverID != "" {
		refs = append(refs, resourceRef{bookingRepo.ResourceDriver, *previousDriverID})
	}
	for _, r := range refs {
		if err := s.Cache.Invalidate(ctx, r.kind, r.id); err != nil {
			s.log().Warn("Availability cache invalidation failed",
				zap.String("resource", string(r.kind)), zap.String("id", r.id), zap.Error(err))
		}
	}
}
