package models

import "testing"

func TestCanTransitionTo(t *testing.T) {
	all := []BookingStatus{StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled}
	allowed := map[[2]BookingStatus]bool{
		{StatusPending, StatusConfirmed}:    true,
		{StatusPending, StatusCancelled}:    true,
		{StatusConfirmed, StatusInProgress}: true,
		{StatusConfirmed, StatusCancelled}:  true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]BookingStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status   BookingStatus
		active   bool
		terminal bool
	}{
		{StatusPending, false, false},
		{StatusConfirmed, true, false},
		{StatusInProgress, true, false},
		{StatusCompleted, false, true},
		{StatusCancelled, false, true},
	}
	for _, tt := range tests {
		if tt.status.IsActive() != tt.active {
			t.Errorf("%s.IsActive() = %v", tt.status, !tt.active)
		}
		if tt.status.IsTerminal() != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v", tt.status, !tt.terminal)
		}
	}
}

func TestParseBookingStatus(t *testing.T) {
	if s, err := ParseBookingStatus("in_progress"); err != nil || s != StatusInProgress {
		t.Errorf("ParseBookingStatus(in_progress) = %q, %v", s, err)
	}
	if _, err := ParseBookingStatus("archived"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestAllowedTransitionsIsACopy(t *testing.T) {
	next := StatusPending.AllowedTransitions()
	next[0] = StatusCompleted
	if !StatusPending.CanTransitionTo(StatusConfirmed) {
		t.Error("mutating the returned slice changed the FSM")
	}
}

func TestCancelledByMapping(t *testing.T) {
	tests := []struct {
		by     CancelledBy
		actor  ActorType
		rebook bool
	}{
		{CancelledByCustomer, ActorCustomer, false},
		{CancelledByMover, ActorMover, true},
		{CancelledByPlatform, ActorPlatformAdmin, true},
	}
	for _, tt := range tests {
		if got := tt.by.ActorType(); got != tt.actor {
			t.Errorf("%s.ActorType() = %s", tt.by, got)
		}
		if tt.by.OffersRebook() != tt.rebook {
			t.Errorf("%s.OffersRebook() = %v", tt.by, !tt.rebook)
		}
	}
	if CancelledBy("robot").IsValid() {
		t.Error("unknown party accepted")
	}
}

func TestChargeableAmountPrefersFinal(t *testing.T) {
	b := &Booking{EstimatedAmount: 500}
	if b.ChargeableAmount() != 500 {
		t.Errorf("ChargeableAmount = %v", b.ChargeableAmount())
	}
	final := 640.5
	b.FinalAmount = &final
	if b.ChargeableAmount() != 640.5 {
		t.Errorf("ChargeableAmount = %v", b.ChargeableAmount())
	}
}

func TestEventKindForStatus(t *testing.T) {
	if _, ok := EventKindForStatus(StatusPending); ok {
		t.Error("pending should not notify")
	}
	if k, ok := EventKindForStatus(StatusCancelled); !ok || k != EventBookingCancelled {
		t.Errorf("cancelled kind = %q", k)
	}
}
