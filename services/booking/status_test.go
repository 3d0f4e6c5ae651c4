package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"moveflow/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLifecycleWritesHistory(t *testing.T) {
	f := newFixture(t)
	f.svc.Rules.RequirePayment = true
	ctx := context.Background()
	mover := models.Actor{ID: ptr("mover-7"), Type: models.ActorMover, Name: "Casey"}

	b := f.create(f.truck, fixedNow.Add(72*time.Hour))
	if b.Status != models.StatusPending {
		t.Fatalf("status = %s, want pending", b.Status)
	}

	_, err := f.svc.AutoConfirm(ctx, b.ID)
	must(t, err)
	_, err = f.svc.MarkInProgress(ctx, b.ID, mover)
	must(t, err)
	done, err := f.svc.MarkCompleted(ctx, b.ID, mover)
	must(t, err)
	if done.Status != models.StatusCompleted {
		t.Fatalf("status = %s", done.Status)
	}

	history, err := f.svc.GetStatusHistory(ctx, b.ID)
	must(t, err)
	if len(history) != 3 {
		t.Fatalf("history = %d entries, want 3", len(history))
	}
	want := []struct {
		from, to  models.BookingStatus
		actorType models.ActorType
	}{
		{models.StatusPending, models.StatusConfirmed, models.ActorSystem},
		{models.StatusConfirmed, models.StatusInProgress, models.ActorMover},
		{models.StatusInProgress, models.StatusCompleted, models.ActorMover},
	}
	for i, w := range want {
		h := history[i]
		if h.FromStatus != w.from || h.ToStatus != w.to || h.TransitionedByType != w.actorType {
			t.Errorf("history[%d] = %s->%s by %s", i, h.FromStatus, h.ToStatus, h.TransitionedByType)
		}
	}
	if history[0].TransitionedByName != autoConfirmActorName || history[0].Notes == nil || *history[0].Notes != autoConfirmNote {
		t.Errorf("auto-confirm entry = %+v", history[0])
	}
	if history[1].TransitionedByID == nil || *history[1].TransitionedByID != "mover-7" {
		t.Errorf("mover id not recorded")
	}
}

func TestTransitionRejectsInvalidMoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(f.truck, fixedNow.Add(72*time.Hour))
	system := models.SystemActor("test")

	tests := []struct {
		name string
		to   models.BookingStatus
	}{
		{"back to pending", models.StatusPending},
		{"confirmed to completed", models.StatusCompleted},
		{"same status", models.StatusConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.TransitionStatus(ctx, b.ID, tt.to, system, "")
			var ite *InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Fatalf("err = %v, want InvalidTransitionError", err)
			}
			if ite.From != models.StatusConfirmed || ite.To != tt.to {
				t.Errorf("error = %+v", ite)
			}
		})
	}

	history, err := f.svc.GetStatusHistory(ctx, b.ID)
	must(t, err)
	if len(history) != 0 {
		t.Errorf("rejected transitions wrote history: %+v", history)
	}

	_, err = f.svc.TransitionStatus(ctx, b.ID, "archived", system, "")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("unknown status err = %v", err)
	}
	_, err = f.svc.TransitionStatus(ctx, "ghost", models.StatusCancelled, system, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing booking err = %v", err)
	}
}

func TestReconfirmIntoTakenWindowConflicts(t *testing.T) {
	f := newFixture(t)
	f.svc.Rules.RequirePayment = true
	ctx := context.Background()
	move := fixedNow.Add(72 * time.Hour)

	// pending bookings do not hold the truck
	first := f.create(f.truck, move)
	second := f.create(f.truck, move.Add(time.Hour))

	_, err := f.svc.AutoConfirm(ctx, first.ID)
	must(t, err)
	_, err = f.svc.AutoConfirm(ctx, second.ID)
	var conflict *BookingConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want BookingConflictError", err)
	}

	still, err := f.svc.GetBooking(ctx, second.ID)
	must(t, err)
	if still.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", still.Status)
	}
}

func TestTransitionDispatchesEventAfterCommit(t *testing.T) {
	f := newFixture(t)
	d := &recordingDispatcher{}
	f.svc.Events = d
	ctx := context.Background()

	b := f.create(f.truck, fixedNow.Add(72*time.Hour))
	_, err := f.svc.MarkInProgress(ctx, b.ID, models.Actor{Type: models.ActorMover, Name: "Casey"})
	must(t, err)

	if len(d.events) != 1 {
		t.Fatalf("events = %d", len(d.events))
	}
	e := d.events[0]
	if e.Kind != models.EventBookingInProgress || e.From != models.StatusConfirmed || e.Booking.ID != b.ID {
		t.Errorf("event = %+v", e)
	}
}

func TestDispatchFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.InfoLevel)
	f.svc.Logger = zap.New(core)
	f.svc.Events = &recordingDispatcher{err: errors.New("queue down")}
	ctx := context.Background()

	b := f.create(f.truck, fixedNow.Add(72*time.Hour))
	updated, err := f.svc.MarkInProgress(ctx, b.ID, models.Actor{Type: models.ActorMover, Name: "Casey"})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if updated.Status != models.StatusInProgress {
		t.Errorf("status = %s", updated.Status)
	}
	if logs.FilterMessage("Failed to dispatch status event").FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Errorf("dispatch failure not logged: %v", logs.All())
	}
}
