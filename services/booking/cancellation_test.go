package booking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	bookingRepo "moveflow/database/repository/booking"
	"moveflow/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func cancelReq(id string, by models.CancelledBy) CancelRequest {
	return CancelRequest{BookingID: id, Reason: "plans changed", CancelledBy: by, ActorName: "Jordan"}
}

func TestCancelBookingTiers(t *testing.T) {
	tests := []struct {
		name    string
		ahead   time.Duration
		percent int
		status  models.RefundStatus
	}{
		{"full", 100 * time.Hour, 100, models.RefundPending},
		{"partial 75", 50 * time.Hour, 75, models.RefundPending},
		{"partial 50", 30 * time.Hour, 50, models.RefundPending},
		{"none", 5 * time.Hour, 0, models.RefundNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.create(f.truck, fixedNow.Add(tt.ahead))

			c, err := f.svc.CancelBooking(context.Background(), cancelReq(b.ID, models.CancelledByCustomer))
			must(t, err)
			amount := roundCents(testPrice.EstimatedAmount * float64(tt.percent) / 100)
			if c.RefundPercentage != tt.percent || c.RefundAmount != amount || c.RefundStatus != tt.status {
				t.Errorf("cancellation = %d%% %v %s", c.RefundPercentage, c.RefundAmount, c.RefundStatus)
			}
			if c.RebookOffered {
				t.Error("customer cancellations do not offer a rebook")
			}
		})
	}
}

func TestCancelBookingTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	move := fixedNow.Add(80 * time.Hour)
	b := f.create(f.truck, move)

	_, err := f.svc.CancelBooking(ctx, cancelReq(b.ID, models.CancelledByMover))
	must(t, err)

	_, err = f.svc.CancelBooking(ctx, cancelReq(b.ID, models.CancelledByCustomer))
	var already *BookingAlreadyCancelledError
	if !errors.As(err, &already) {
		t.Fatalf("err = %v, want BookingAlreadyCancelledError", err)
	}

	c, err := f.svc.GetCancellation(ctx, b.ID)
	must(t, err)
	if c.CancelledBy != models.CancelledByMover || !c.RebookOffered {
		t.Errorf("cancellation = %+v", c)
	}

	// the cancelled booking no longer holds its truck
	f.create(f.truck, move)
}

func TestCancelCompletedBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(f.truck, fixedNow.Add(80*time.Hour))
	mover := models.Actor{Type: models.ActorMover, Name: "Casey"}
	_, err := f.svc.MarkInProgress(ctx, b.ID, mover)
	must(t, err)
	_, err = f.svc.MarkCompleted(ctx, b.ID, mover)
	must(t, err)

	_, err = f.svc.CancelBooking(ctx, cancelReq(b.ID, models.CancelledByCustomer))
	var nc *BookingNotCancellableError
	if !errors.As(err, &nc) {
		t.Fatalf("err = %v, want BookingNotCancellableError", err)
	}
}

func TestCancelBookingValidation(t *testing.T) {
	f := newFixture(t)
	b := f.create(f.truck, fixedNow.Add(80*time.Hour))

	_, err := f.svc.CancelBooking(context.Background(), CancelRequest{BookingID: b.ID, Reason: "x", CancelledBy: "robot"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "cancelled_by" {
		t.Errorf("err = %v", err)
	}
	_, err = f.svc.CancelBooking(context.Background(), CancelRequest{BookingID: b.ID, CancelledBy: models.CancelledByCustomer})
	if !errors.As(err, &ve) || ve.Field != "reason" {
		t.Errorf("err = %v", err)
	}
}

func TestCancelIssuesRefund(t *testing.T) {
	f := newFixture(t)
	refunder := &fakeRefunder{}
	f.svc.Payments = refunder
	b := f.createPaid(f.truck, fixedNow.Add(50*time.Hour))

	c, err := f.svc.CancelBooking(context.Background(), cancelReq(b.ID, models.CancelledByCustomer))
	must(t, err)

	if c.RefundStatus != models.RefundCompleted {
		t.Fatalf("refund status = %s", c.RefundStatus)
	}
	if len(refunder.calls) != 1 {
		t.Fatalf("refund calls = %d", len(refunder.calls))
	}
	call := refunder.calls[0]
	if call.IdempotencyKey != "refund_"+b.ID || call.Amount != 625.00 || call.PaymentRef != *b.StripePaymentIntentID {
		t.Errorf("refund request = %+v", call)
	}
	if c.StripeRefundID == nil || *c.StripeRefundID != "re_refund_"+b.ID || c.RefundProcessedAt == nil {
		t.Errorf("refund outcome not recorded: %+v", c)
	}
}

func TestFailedRefundIsRetriedByTheSweep(t *testing.T) {
	f := newFixture(t)
	refunder := &fakeRefunder{fail: true}
	f.svc.Payments = refunder
	ctx := context.Background()
	b := f.createPaid(f.truck, fixedNow.Add(100*time.Hour))

	c, err := f.svc.CancelBooking(ctx, cancelReq(b.ID, models.CancelledByCustomer))
	must(t, err)
	if c.RefundStatus != models.RefundFailed || c.RefundFailureReason == nil {
		t.Fatalf("cancellation = %+v", c)
	}
	booking, err := f.svc.GetBooking(ctx, b.ID)
	must(t, err)
	if booking.Status != models.StatusCancelled {
		t.Errorf("a failed refund must not block the cancellation, status = %s", booking.Status)
	}

	refunder.fail = false
	retried, succeeded, err := f.svc.RetryFailedRefunds(ctx)
	must(t, err)
	if retried != 1 || succeeded != 1 {
		t.Fatalf("sweep = %d/%d", retried, succeeded)
	}

	retried, succeeded, err = f.svc.RetryFailedRefunds(ctx)
	must(t, err)
	if retried != 0 || succeeded != 0 {
		t.Errorf("second sweep = %d/%d, want nothing left", retried, succeeded)
	}

	if len(refunder.calls) != 2 {
		t.Fatalf("refund calls = %d", len(refunder.calls))
	}
	if refunder.calls[0].IdempotencyKey != refunder.calls[1].IdempotencyKey {
		t.Error("retries must reuse the idempotency key")
	}
	final, err := f.svc.GetCancellation(ctx, b.ID)
	must(t, err)
	if final.RefundStatus != models.RefundCompleted {
		t.Errorf("final status = %s", final.RefundStatus)
	}
}

func TestUnrecordedRefundOutcomeStaysRetryable(t *testing.T) {
	f := newFixture(t)
	refunder := &fakeRefunder{}
	f.svc.Payments = refunder
	ctx := context.Background()
	b := f.createPaid(f.truck, fixedNow.Add(100*time.Hour))

	f.svc.Repo = &lostOutcome{Store: f.store}
	c, err := f.svc.CancelBooking(ctx, cancelReq(b.ID, models.CancelledByCustomer))
	must(t, err)
	if c.RefundStatus != models.RefundFailed {
		t.Fatalf("refund status = %s, want failed", c.RefundStatus)
	}
	if c.RefundFailureReason == nil || !strings.Contains(*c.RefundFailureReason, "outcome not recorded") {
		t.Errorf("failure reason = %v", c.RefundFailureReason)
	}

	retried, succeeded, err := f.svc.RetryFailedRefunds(ctx)
	must(t, err)
	if retried != 1 || succeeded != 1 {
		t.Fatalf("sweep = %d/%d", retried, succeeded)
	}
	if len(refunder.calls) != 2 || refunder.calls[0].IdempotencyKey != refunder.calls[1].IdempotencyKey {
		t.Errorf("refund calls = %+v", refunder.calls)
	}
}

func TestSweepReclaimsStaleProcessingRefund(t *testing.T) {
	f := newFixture(t)
	refunder := &fakeRefunder{fail: true}
	f.svc.Payments = refunder
	ctx := context.Background()
	b := f.createPaid(f.truck, fixedNow.Add(100*time.Hour))
	_, err := f.svc.CancelBooking(ctx, cancelReq(b.ID, models.CancelledByCustomer))
	must(t, err)

	// a worker claimed the row and never reported back
	_, err = f.store.UpdateRefund(ctx, b.ID, models.RefundFailed, bookingRepo.RefundUpdate{Status: models.RefundProcessing})
	must(t, err)
	refunder.fail = false

	f.svc.Clock = func() time.Time { return time.Now().UTC() }
	retried, _, err := f.svc.RetryFailedRefunds(ctx)
	must(t, err)
	if retried != 0 {
		t.Fatalf("fresh claim was taken over, retried = %d", retried)
	}

	f.svc.Clock = func() time.Time { return time.Now().UTC().Add(refundLease + time.Minute) }
	retried, succeeded, err := f.svc.RetryFailedRefunds(ctx)
	must(t, err)
	if retried != 1 || succeeded != 1 {
		t.Fatalf("sweep = %d/%d", retried, succeeded)
	}
	final, err := f.svc.GetCancellation(ctx, b.ID)
	must(t, err)
	if final.RefundStatus != models.RefundCompleted {
		t.Errorf("final status = %s", final.RefundStatus)
	}
}

func TestCancellationKeptWhenTransitionFails(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.InfoLevel)
	f.svc.Logger = zap.New(core)
	b := f.create(f.truck, fixedNow.Add(100*time.Hour))

	f.svc.Repo = failingTransitions{f.store}
	c, err := f.svc.CancelBooking(context.Background(), cancelReq(b.ID, models.CancelledByCustomer))
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if c.BookingID != b.ID {
		t.Errorf("cancellation = %+v", c)
	}

	stored, err := f.store.GetCancellation(context.Background(), b.ID)
	must(t, err)
	if stored.ID != c.ID {
		t.Error("cancellation record was not kept")
	}
	still, err := f.store.GetBookingByID(context.Background(), b.ID)
	must(t, err)
	if still.Status != models.StatusConfirmed {
		t.Errorf("status = %s", still.Status)
	}

	entries := logs.FilterMessage("Cancellation recorded but booking status not updated").All()
	if len(entries) != 1 || entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("inconsistency not logged: %v", logs.All())
	}
}

func TestRefundPolicyInfo(t *testing.T) {
	f := newFixture(t)
	b := f.create(f.truck, fixedNow.Add(50*time.Hour))

	p, err := f.svc.RefundPolicyInfo(context.Background(), b.ID)
	must(t, err)
	if p.Current.Percentage != 75 || p.Current.Amount != 625.00 || !p.CanCancel {
		t.Errorf("policy = %+v", p)
	}
	if p.HoursBeforeMove != 50 {
		t.Errorf("hours = %v", p.HoursBeforeMove)
	}
	if len(p.Tiers) != 4 || p.Tiers[0].Amount != 833.33 || p.Tiers[3].Amount != 0 {
		t.Errorf("tiers = %+v", p.Tiers)
	}
}
