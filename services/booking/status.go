package booking

import (
	"context"
	"errors"
	"fmt"

	bookingRepo "moveflow/database/repository/booking"
	"moveflow/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	autoConfirmActorName = "Auto-Confirm System"
	autoConfirmNote      = "Automatically confirmed after payment"
	arrivedNote          = "Driver marked as arrived on-site"
	completedNote        = "Job completed by driver"
)

// TransitionStatus applies one FSM step. The status update and its history
// row commit together. A concurrent status change is retried once against
// the fresh state.
func (s *DefaultBookingService) TransitionStatus(ctx context.Context, bookingID string, to models.BookingStatus, actor models.Actor, notes string) (b *models.Booking, err error) {
	ctx, span := startSpan(ctx, "booking.transition",
		attribute.String("booking.id", bookingID),
		attribute.String("status.to", string(to)),
		attribute.String("actor.type", string(actor.Type)),
	)
	defer func() { endSpan(span, err) }()

	if !to.IsValid() {
		return nil, invalid("status", "unknown status %q", to)
	}
	if !actor.Type.IsValid() {
		return nil, invalid("actor_type", "unknown actor type %q", actor.Type)
	}

	var current *models.Booking
	for attempt := 0; attempt < 2; attempt++ {
		current, err = s.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		from := current.Status
		if !from.CanTransitionTo(to) {
			return nil, &InvalidTransitionError{From: from, To: to}
		}

		entry := &models.BookingStatusHistory{
			ID:                 uuid.New().String(),
			BookingID:          bookingID,
			FromStatus:         from,
			ToStatus:           to,
			TransitionedByID:   actor.ID,
			TransitionedByType: actor.Type,
			TransitionedByName: actor.Name,
			TransitionedAt:     s.now(),
		}
		if notes != "" {
			entry.Notes = &notes
		}

		updated, terr := s.Repo.TransitionStatus(ctx, bookingID, from, to, entry)
		switch {
		case terr == nil:
			s.afterTransition(ctx, updated, from, actor, notes, entry)
			return updated, nil
		case errors.Is(terr, bookingRepo.ErrStatusChanged):
			s.log().Debug("Status changed concurrently, retrying",
				zap.String("booking_id", bookingID), zap.String("expected", string(from)))
			continue
		case errors.Is(terr, bookingRepo.ErrBookingNotFound):
			return nil, &NotFoundError{Resource: "booking", ID: bookingID}
		case errors.Is(terr, bookingRepo.ErrOverlap):
			addCount(ctx, instruments().bookingConflicts, attribute.String("resource", "truck"))
			window := TimeWindow{Start: current.EffectiveStart, End: current.EffectiveEnd}
			return nil, s.conflictError(ctx, current.TruckID, window, window.Duration())
		case errors.Is(terr, bookingRepo.ErrDriverOverlap):
			addCount(ctx, instruments().bookingConflicts, attribute.String("resource", "driver"))
			return nil, &AssignmentError{Reason: "assigned driver has a conflicting booking", Err: terr}
		default:
			return nil, fmt.Errorf("failed to transition booking %s: %w", bookingID, terr)
		}
	}

	latest, lerr := s.GetBooking(ctx, bookingID)
	if lerr != nil {
		return nil, lerr
	}
	return nil, &InvalidTransitionError{From: latest.Status, To: to}
}

// afterTransition runs once the transaction has committed. Nothing here may fail the call.
func (s *DefaultBookingService) afterTransition(ctx context.Context, b *models.Booking, from models.BookingStatus, actor models.Actor, notes string, entry *models.BookingStatusHistory) {
	addCount(ctx, instruments().transitions,
		attribute.String("from", string(from)), attribute.String("to", string(b.Status)))
	s.invalidate(ctx, b, nil)

	s.log().Info("Booking status changed",
		zap.String("booking_id", b.ID),
		zap.String("from", string(from)),
		zap.String("to", string(b.Status)),
		zap.String("actor_type", string(actor.Type)),
		zap.String("actor_name", actor.Name),
	)

	kind, ok := models.EventKindForStatus(b.Status)
	if !ok || s.Events == nil {
		return
	}
	event := models.StatusEvent{
		Kind:       kind,
		From:       from,
		To:         b.Status,
		Actor:      actor,
		Notes:      notes,
		OccurredAt: entry.TransitionedAt,
		Booking:    b.Snapshot(),
	}
	if err := s.Events.Dispatch(context.WithoutCancel(ctx), event); err != nil {
		s.log().Error("Failed to dispatch status event",
			zap.String("booking_id", b.ID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

// AutoConfirm confirms a pending booking once payment has cleared.
func (s *DefaultBookingService) AutoConfirm(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.TransitionStatus(ctx, bookingID, models.StatusConfirmed, models.SystemActor(autoConfirmActorName), autoConfirmNote)
}

func (s *DefaultBookingService) MarkInProgress(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error) {
	actor.Type = models.ActorMover
	return s.TransitionStatus(ctx, bookingID, models.StatusInProgress, actor, arrivedNote)
}

func (s *DefaultBookingService) MarkCompleted(ctx context.Context, bookingID string, actor models.Actor) (*models.Booking, error) {
	actor.Type = models.ActorMover
	return s.TransitionStatus(ctx, bookingID, models.StatusCompleted, actor, completedNote)
}

func (s *DefaultBookingService) GetStatusHistory(ctx context.Context, bookingID string) ([]models.BookingStatusHistory, error) {
	if _, err := s.GetBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	history, err := s.Repo.ListStatusHistory(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	return history, nil
}
