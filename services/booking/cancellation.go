package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	bookingRepo "moveflow/database/repository/booking"
	"moveflow/models"
	"moveflow/services/payment"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// refundSweepBatch bounds how many failed refunds one sweep claims.
const refundSweepBatch = 100

// refundLease is how long a processing claim may go without an outcome before
// the sweep takes it over.
const refundLease = 15 * time.Minute

type CancelRequest struct {
	BookingID   string             `json:"booking_id"`
	Reason      string             `json:"reason"`
	CancelledBy models.CancelledBy `json:"cancelled_by"`
	ActorName   string             `json:"actor_name"`
	ActorID     *string            `json:"actor_id,omitempty"`
}

// RefundPolicy describes what cancelling right now would refund.
type RefundPolicy struct {
	BookingID       string       `json:"booking_id"`
	OriginalAmount  float64      `json:"original_amount"`
	HoursBeforeMove float64      `json:"hours_before_move"`
	Current         RefundQuote  `json:"current_refund"`
	Tiers           []TierAmount `json:"policy_tiers"`
	CanCancel       bool         `json:"can_cancel"`
}

type TierAmount struct {
	RefundTier
	Amount float64 `json:"refund_amount"`
}

func hoursUntil(move, now time.Time) float64 {
	return math.Max(0, move.Sub(now).Hours())
}

func refundIdempotencyKey(bookingID string) string {
	return "refund_" + bookingID
}

// CancelBooking records the cancellation, attempts the refund and then moves
// the booking to cancelled. The record is kept even when the final
// transition fails.
func (s *DefaultBookingService) CancelBooking(ctx context.Context, req CancelRequest) (c *models.BookingCancellation, err error) {
	ctx, span := startSpan(ctx, "booking.cancel",
		attribute.String("booking.id", req.BookingID),
		attribute.String("cancelled_by", string(req.CancelledBy)),
	)
	defer func() { endSpan(span, err) }()

	if !req.CancelledBy.IsValid() {
		return nil, invalid("cancelled_by", "must be customer, mover or platform")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, invalid("reason", "is required")
	}

	b, err := s.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case models.StatusCancelled:
		return nil, &BookingAlreadyCancelledError{BookingID: b.ID}
	case models.StatusCompleted:
		return nil, &BookingNotCancellableError{BookingID: b.ID, Status: b.Status}
	}

	now := s.now()
	original := b.ChargeableAmount()
	quote := CalculateRefund(original, hoursUntil(b.MoveDate, now))

	refundStatus := models.RefundPending
	if quote.Amount <= 0 {
		refundStatus = models.RefundNone
	}
	actorName := req.ActorName
	if actorName == "" {
		actorName = string(req.CancelledBy)
	}

	c = &models.BookingCancellation{
		ID:                 uuid.New().String(),
		BookingID:          b.ID,
		CancelledBy:        req.CancelledBy,
		CancelledByID:      req.ActorID,
		CancelledByName:    actorName,
		CancelledAt:        now,
		CancellationReason: req.Reason,
		HoursBeforeMove:    quote.HoursBeforeMove,
		OriginalAmount:     original,
		RefundPercentage:   quote.Percentage,
		RefundAmount:       quote.Amount,
		RefundReason:       quote.Reason,
		RefundStatus:       refundStatus,
		RebookOffered:      req.CancelledBy.OffersRebook(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Repo.CreateCancellation(ctx, c); err != nil {
		if errors.Is(err, bookingRepo.ErrCancellationExists) {
			return nil, &BookingAlreadyCancelledError{BookingID: b.ID}
		}
		return nil, fmt.Errorf("failed to record cancellation: %w", err)
	}
	addCount(ctx, instruments().cancellations,
		attribute.String("cancelled_by", string(req.CancelledBy)),
		attribute.Int("refund_percentage", quote.Percentage))

	if quote.Amount > 0 {
		if b.StripePaymentIntentID == nil || *b.StripePaymentIntentID == "" {
			s.log().Warn("Refund owed but booking has no payment reference",
				zap.String("booking_id", b.ID), zap.Float64("refund_amount", quote.Amount))
		} else if updated := s.processRefund(ctx, b, c, models.RefundPending); updated != nil {
			c = updated
		}
	}

	actor := models.Actor{ID: req.ActorID, Type: req.CancelledBy.ActorType(), Name: actorName}
	if _, terr := s.TransitionStatus(ctx, b.ID, models.StatusCancelled, actor, req.Reason); terr != nil {
		s.log().Error("Cancellation recorded but booking status not updated",
			zap.String("booking_id", b.ID),
			zap.String("cancellation_id", c.ID),
			zap.Error(terr),
		)
	}

	s.log().Info("Booking cancelled",
		zap.String("booking_id", b.ID),
		zap.String("cancelled_by", string(req.CancelledBy)),
		zap.Int("refund_percentage", c.RefundPercentage),
		zap.Float64("refund_amount", c.RefundAmount),
		zap.String("refund_status", string(c.RefundStatus)),
	)
	return c, nil
}

// processRefund claims the refund with a CAS from expected to processing, calls
// the payment provider and records the outcome. It returns nil when another
// worker holds the claim. Provider failures are recorded, not returned.
func (s *DefaultBookingService) processRefund(ctx context.Context, b *models.Booking, c *models.BookingCancellation, expected models.RefundStatus) *models.BookingCancellation {
	claimed, err := s.Repo.UpdateRefund(ctx, c.BookingID, expected, bookingRepo.RefundUpdate{Status: models.RefundProcessing})
	if err != nil {
		if !errors.Is(err, bookingRepo.ErrRefundStateChanged) {
			s.log().Error("Failed to claim refund", zap.String("booking_id", c.BookingID), zap.Error(err))
		}
		return nil
	}

	payments := s.Payments
	if payments == nil {
		payments = payment.DisabledRefunder{}
	}
	refundID, rerr := payments.IssueRefund(ctx, payment.RefundRequest{
		PaymentRef:     *b.StripePaymentIntentID,
		Amount:         claimed.RefundAmount,
		Reason:         claimed.RefundReason,
		IdempotencyKey: refundIdempotencyKey(b.ID),
		Metadata: map[string]string{
			"booking_id":        b.ID,
			"cancellation_id":   claimed.ID,
			"refund_percentage": fmt.Sprintf("%d", claimed.RefundPercentage),
		},
	})

	processedAt := s.now()
	update := bookingRepo.RefundUpdate{Status: models.RefundCompleted, ExternalRefundID: &refundID, ProcessedAt: &processedAt}
	if rerr != nil {
		reason := rerr.Error()
		update = bookingRepo.RefundUpdate{Status: models.RefundFailed, FailureReason: &reason}
		addCount(ctx, instruments().refundsFailed)
		s.log().Error("Refund failed",
			zap.String("booking_id", b.ID),
			zap.Float64("amount", claimed.RefundAmount),
			zap.Error(rerr),
		)
	}

	recorded, err := s.Repo.UpdateRefund(ctx, c.BookingID, models.RefundProcessing, update)
	if err == nil {
		return recorded
	}
	s.log().Error("Failed to record refund outcome",
		zap.String("booking_id", c.BookingID),
		zap.String("outcome", string(update.Status)),
		zap.Error(err),
	)
	if update.Status == models.RefundCompleted {
		// Leave the row retryable; the idempotency key makes the reissue a no-op.
		reason := "outcome not recorded: " + err.Error()
		fallback := bookingRepo.RefundUpdate{Status: models.RefundFailed, FailureReason: &reason}
		if recorded, ferr := s.Repo.UpdateRefund(ctx, c.BookingID, models.RefundProcessing, fallback); ferr == nil {
			return recorded
		}
	}
	return claimed
}

type refundClaim struct {
	c        *models.BookingCancellation
	expected models.RefundStatus
}

// RetryFailedRefunds re-issues failed refunds, and processing refunds whose
// claim outlived refundLease, with their original idempotency key. Concurrent
// sweeps skip rows another sweep has already claimed.
func (s *DefaultBookingService) RetryFailedRefunds(ctx context.Context) (retried, succeeded int, err error) {
	failed, err := s.Repo.ListCancellationsByRefundStatus(ctx, models.RefundFailed, refundSweepBatch)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list failed refunds: %w", err)
	}
	inFlight, err := s.Repo.ListCancellationsByRefundStatus(ctx, models.RefundProcessing, refundSweepBatch)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list processing refunds: %w", err)
	}

	due := make([]refundClaim, 0, len(failed))
	for i := range failed {
		due = append(due, refundClaim{c: &failed[i], expected: models.RefundFailed})
	}
	cutoff := s.now().Add(-refundLease)
	for i := range inFlight {
		if inFlight[i].UpdatedAt.Before(cutoff) {
			s.log().Warn("Reclaiming stale refund", zap.String("booking_id", inFlight[i].BookingID), zap.Time("claimed_at", inFlight[i].UpdatedAt))
			due = append(due, refundClaim{c: &inFlight[i], expected: models.RefundProcessing})
		}
	}

	for _, d := range due {
		c := d.c
		b, gerr := s.Repo.GetBookingByID(ctx, c.BookingID)
		if gerr != nil {
			s.log().Warn("Skipping refund retry, booking unavailable", zap.String("booking_id", c.BookingID), zap.Error(gerr))
			continue
		}
		if b.StripePaymentIntentID == nil || *b.StripePaymentIntentID == "" {
			continue
		}
		out := s.processRefund(ctx, b, c, d.expected)
		if out == nil {
			continue
		}
		retried++
		if out.RefundStatus == models.RefundCompleted {
			succeeded++
		}
	}

	if retried > 0 {
		s.log().Info("Refund retry sweep finished", zap.Int("retried", retried), zap.Int("succeeded", succeeded))
	}
	return retried, succeeded, nil
}

func (s *DefaultBookingService) GetCancellation(ctx context.Context, bookingID string) (*models.BookingCancellation, error) {
	c, err := s.Repo.GetCancellation(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrCancellationNotFound) {
			return nil, &NotFoundError{Resource: "cancellation", ID: bookingID}
		}
		return nil, fmt.Errorf("failed to load cancellation: %w", err)
	}
	return c, nil
}

func (s *DefaultBookingService) RefundPolicyInfo(ctx context.Context, bookingID string) (*RefundPolicy, error) {
	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	original := b.ChargeableAmount()
	hours := hoursUntil(b.MoveDate, s.now())

	policy := &RefundPolicy{
		BookingID:       b.ID,
		OriginalAmount:  original,
		HoursBeforeMove: math.Round(hours*10) / 10,
		Current:         CalculateRefund(original, hours),
		CanCancel:       !b.Status.IsTerminal(),
	}
	for _, t := range refundTiers {
		policy.Tiers = append(policy.Tiers, TierAmount{
			RefundTier: t,
			Amount:     roundCents(original * float64(t.Percentage) / 100),
		})
	}
	return policy, nil
}
