package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	bookingRepo "moveflow/database/repository/booking"
	"moveflow/models"
)

func TestCreateBookingComputesWindow(t *testing.T) {
	f := newFixture(t)
	move := fixedNow.Add(96 * time.Hour)

	b := f.create(f.truck, move)
	if b.Status != models.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", b.Status)
	}
	if b.CommuteBufferMinutes != 30 {
		t.Errorf("buffer = %d", b.CommuteBufferMinutes)
	}
	if !b.EffectiveStart.Equal(move.Add(-30*time.Minute)) || !b.EffectiveEnd.Equal(move.Add(4*time.Hour+30*time.Minute)) {
		t.Errorf("window = [%v, %v)", b.EffectiveStart, b.EffectiveEnd)
	}
	if b.CustomerEmail != "jordan@example.com" {
		t.Errorf("email not normalized: %s", b.CustomerEmail)
	}
}

func TestCreateBookingConflictSuggestsSlot(t *testing.T) {
	f := newFixture(t)
	move := fixedNow.Add(96 * time.Hour)
	first := f.create(f.truck, move)

	_, err := f.svc.CreateBooking(context.Background(), f.request(f.truck, move.Add(time.Hour)), testPrice)
	var conflict *BookingConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want BookingConflictError", err)
	}
	if conflict.SuggestedSlot == nil {
		t.Fatal("expected a suggested slot")
	}
	wantStart := first.EffectiveEnd.Add(SuggestionGap)
	if !conflict.SuggestedSlot.Start.Equal(wantStart) {
		t.Errorf("suggested start = %v, want %v", conflict.SuggestedSlot.Start, wantStart)
	}
	if conflict.SuggestedSlot.Duration() != 4*time.Hour {
		t.Errorf("suggested duration = %v", conflict.SuggestedSlot.Duration())
	}
}

func TestCreateBookingBackToBackWindows(t *testing.T) {
	f := newFixture(t)
	move := fixedNow.Add(96 * time.Hour)
	f.create(f.truck, move)

	// the second window starts exactly where the first one ends
	next := f.create(f.truck, move.Add(5*time.Hour))
	if next.Status != models.StatusConfirmed {
		t.Fatalf("status = %s", next.Status)
	}
}

func TestConcurrentCreatesOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	move := fixedNow.Add(96 * time.Hour)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			req := f.request(f.truck, move.Add(time.Duration(offset)*time.Minute))
			_, err := f.svc.CreateBooking(context.Background(), req, testPrice)
			mu.Lock()
			defer mu.Unlock()
			var conflict *BookingConflictError
			switch {
			case err == nil:
				created++
			case errors.As(err, &conflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if created != 1 || conflicts != n-1 {
		t.Fatalf("created = %d conflicts = %d", created, conflicts)
	}
	active, err := f.store.FindOverlapping(context.Background(), bookingRepo.OverlapQuery{
		Kind: bookingRepo.ResourceTruck, ResourceID: f.truck,
		Start: move.Add(-time.Hour), End: move.Add(6 * time.Hour),
	})
	must(t, err)
	if len(active) != 1 {
		t.Errorf("active bookings = %d", len(active))
	}
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	move := fixedNow.Add(96 * time.Hour)

	tests := []struct {
		name  string
		edit  func(*CreateBookingRequest)
		field string
	}{
		{"missing customer", func(r *CreateBookingRequest) { r.CustomerName = " " }, "customer_name"},
		{"bad email", func(r *CreateBookingRequest) { r.CustomerEmail = "nope" }, "customer_email"},
		{"zero duration", func(r *CreateBookingRequest) { r.EstimatedDurationHours = 0 }, "estimated_duration_hours"},
		{"negative buffer", func(r *CreateBookingRequest) { r.BufferMinutes = ptr(-5) }, "commute_buffer_minutes"},
		{"truck from another org", func(r *CreateBookingRequest) { r.OrgID = "org-2" }, "truck_id"},
		{"phone too long", func(r *CreateBookingRequest) { r.CustomerPhone = strings.Repeat("5", 21) }, "customer_phone"},
		{"zip too long", func(r *CreateBookingRequest) { r.DropoffZip = "12345-67890" }, "dropoff_zip"},
		{"name too long", func(r *CreateBookingRequest) { r.CustomerName = strings.Repeat("é", 256) }, "customer_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(f.truck, move)
			tt.edit(&req)
			_, err := f.svc.CreateBooking(context.Background(), req, testPrice)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %s, want %s", ve.Field, tt.field)
			}
		})
	}
}

func TestCreateBookingAcceptsFieldsAtColumnLimit(t *testing.T) {
	f := newFixture(t)
	req := f.request(f.truck, fixedNow.Add(96*time.Hour))
	req.CustomerPhone = strings.Repeat("5", 20)
	req.PickupZip = "12345-6789"
	req.CustomerName = strings.Repeat("é", 255)
	_, err := f.svc.CreateBooking(context.Background(), req, testPrice)
	must(t, err)
}

func TestCreateBookingRejectsUnassignableDriver(t *testing.T) {
	f := newFixture(t)
	f.addDriver("d-new", false)
	ctx := context.Background()
	move := fixedNow.Add(96 * time.Hour)

	tests := []struct {
		name     string
		driverID string
		notFound bool
	}{
		{"unverified", "d-new", false},
		{"nonexistent", "ghost", true},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(f.truck, move)
			req.DriverID = ptr(tt.driverID)
			_, err := f.svc.CreateBooking(ctx, req, testPrice)
			var ae *AssignmentError
			if !errors.As(err, &ae) {
				t.Fatalf("err = %v, want AssignmentError", err)
			}
			if got := errors.Is(err, ErrNotFound); got != tt.notFound {
				t.Errorf("errors.Is(ErrNotFound) = %v, want %v", got, tt.notFound)
			}
		})
	}

	list, err := f.svc.ListBookings(ctx, bookingRepo.BookingFilter{OrgID: f.orgID})
	must(t, err)
	if len(list) != 0 {
		t.Errorf("stored %d bookings, want none", len(list))
	}
}

func TestCreateBookingRejectsDriverFromAnotherOrg(t *testing.T) {
	f := newFixture(t)
	must(t, f.store.CreateDriver(context.Background(), &models.Driver{
		ID: "d-other", OrgID: "org-2", Name: "Other", LicenseNumber: "DL-other", IsVerified: true,
	}))
	req := f.request(f.truck, fixedNow.Add(96*time.Hour))
	req.DriverID = ptr("d-other")
	_, err := f.svc.CreateBooking(context.Background(), req, testPrice)
	var ae *AssignmentError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AssignmentError", err)
	}
}

func TestCreateBookingUnknownTruck(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateBooking(context.Background(), f.request("ghost", fixedNow.Add(48*time.Hour)), testPrice)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

type recordingReminders struct {
	fireAt []time.Time
}

func (r *recordingReminders) ScheduleReminder(_ context.Context, _ models.ReminderPayload, fireAt time.Time) error {
	r.fireAt = append(r.fireAt, fireAt)
	return nil
}

func TestCreateBookingSchedulesReminder(t *testing.T) {
	f := newFixture(t)
	rem := &recordingReminders{}
	f.svc.Reminders = rem

	move := fixedNow.Add(72 * time.Hour)
	f.create(f.truck, move)
	// too close for a 24h reminder
	f.create("truck-2", fixedNow.Add(10*time.Hour))

	if len(rem.fireAt) != 1 || !rem.fireAt[0].Equal(move.Add(-24*time.Hour)) {
		t.Fatalf("reminders = %v", rem.fireAt)
	}
}

func TestListAndUpdateBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(f.truck, fixedNow.Add(48*time.Hour))
	f.create("truck-2", fixedNow.Add(24*time.Hour))

	list, err := f.svc.ListBookings(ctx, bookingRepo.BookingFilter{OrgID: f.orgID})
	must(t, err)
	if len(list) != 2 || list[0].TruckID != "truck-2" {
		t.Fatalf("list = %+v", list)
	}

	_, err = f.svc.UpdateBooking(ctx, a.ID, bookingRepo.BookingUpdate{FinalAmount: ptr(-1.0)})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("negative amount err = %v", err)
	}

	updated, err := f.svc.UpdateBooking(ctx, a.ID, bookingRepo.BookingUpdate{FinalAmount: ptr(900.456)})
	must(t, err)
	if updated.FinalAmount == nil || *updated.FinalAmount != 900.46 {
		t.Errorf("final amount = %v", updated.FinalAmount)
	}
	if updated.ChargeableAmount() != 900.46 {
		t.Errorf("chargeable = %v", updated.ChargeableAmount())
	}
}
