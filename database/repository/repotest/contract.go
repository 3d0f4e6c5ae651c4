// Package repotest holds behaviour checks shared by every BookingRepository
// implementation.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	bookingRepo "moveflow/database/repository/booking"
	"moveflow/models"

	"github.com/google/uuid"
)

// base is far enough out that reruns against a shared database only collide
// through resource ids, which are fresh per run.
var base = time.Date(2031, 6, 2, 0, 0, 0, 0, time.UTC)

// NewBooking returns a valid booking occupying [start, start+hours) on truckID.
func NewBooking(truckID string, start time.Time, hours float64, status models.BookingStatus) *models.Booking {
	end := start.Add(time.Duration(hours * float64(time.Hour)))
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Booking{
		ID:                     uuid.New().String(),
		OrgID:                  uuid.New().String(),
		TruckID:                truckID,
		CustomerName:           "Contract Customer",
		CustomerEmail:          "contract@example.test",
		CustomerPhone:          "555-0199",
		MoveDate:               start,
		PickupAddress:          "1 Main St",
		PickupCity:             "Springfield",
		PickupState:            "IL",
		PickupZip:              "62701",
		DropoffAddress:         "9 Elm St",
		DropoffCity:            "Springfield",
		DropoffState:           "IL",
		DropoffZip:             "62702",
		EstimatedDistanceMiles: 10,
		EstimatedDurationHours: hours,
		EffectiveStart:         start,
		EffectiveEnd:           end,
		SpecialItems:           []string{},
		EstimatedAmount:        500,
		PlatformFee:            25,
		Status:                 status,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// RunBookingRepository exercises the overlap guarantees and the CAS
// operations a BookingRepository must provide.
func RunBookingRepository(t *testing.T, repo bookingRepo.BookingRepository) {
	t.Run("TruckOverlap", func(t *testing.T) { truckOverlap(t, repo) })
	t.Run("DriverOverlap", func(t *testing.T) { driverOverlap(t, repo) })
	t.Run("ConcurrentCreates", func(t *testing.T) { concurrentCreates(t, repo) })
	t.Run("TransitionStatus", func(t *testing.T) { transitionStatus(t, repo) })
	t.Run("Cancellation", func(t *testing.T) { cancellation(t, repo) })
}

func create(t *testing.T, repo bookingRepo.BookingRepository, b *models.Booking) {
	t.Helper()
	if err := repo.CreateBooking(context.Background(), b); err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
}

func truckOverlap(t *testing.T, repo bookingRepo.BookingRepository) {
	ctx := context.Background()
	truck := uuid.New().String()
	start := base.Add(10 * time.Hour)
	create(t, repo, NewBooking(truck, start, 4, models.StatusConfirmed))

	err := repo.CreateBooking(ctx, NewBooking(truck, start.Add(3*time.Hour), 4, models.StatusConfirmed))
	if !errors.Is(err, bookingRepo.ErrOverlap) {
		t.Fatalf("overlapping create err = %v, want ErrOverlap", err)
	}

	// windows are half-open
	create(t, repo, NewBooking(truck, start.Add(4*time.Hour), 2, models.StatusConfirmed))
	create(t, repo, NewBooking(truck, start.Add(-2*time.Hour), 2, models.StatusInProgress))

	// inactive bookings never hold the truck
	create(t, repo, NewBooking(truck, start.Add(time.Hour), 2, models.StatusPending))
	create(t, repo, NewBooking(truck, start.Add(time.Hour), 2, models.StatusCancelled))

	hits, err := repo.FindOverlapping(ctx, bookingRepo.OverlapQuery{
		Kind: bookingRepo.ResourceTruck, ResourceID: truck,
		Start: start.Add(time.Hour), End: start.Add(5 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].EffectiveStart.After(hits[1].EffectiveStart) {
		t.Errorf("FindOverlapping = %d bookings, want the 2 active ones in start order", len(hits))
	}
}

func driverOverlap(t *testing.T, repo bookingRepo.BookingRepository) {
	ctx := context.Background()
	driver := uuid.New().String()
	start := base.Add(30 * time.Hour)

	first := NewBooking(uuid.New().String(), start, 3, models.StatusConfirmed)
	first.DriverID = &driver
	create(t, repo, first)

	second := NewBooking(uuid.New().String(), start.Add(time.Hour), 3, models.StatusConfirmed)
	second.DriverID = &driver
	if err := repo.CreateBooking(ctx, second); !errors.Is(err, bookingRepo.ErrDriverOverlap) {
		t.Fatalf("driver double-booked, err = %v", err)
	}

	second.DriverID = nil
	create(t, repo, second)
	if _, err := repo.SetDriver(ctx, second.ID, &driver); !errors.Is(err, bookingRepo.ErrDriverOverlap) {
		t.Fatalf("SetDriver err = %v, want ErrDriverOverlap", err)
	}

	if _, err := repo.SetDriver(ctx, first.ID, nil); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	updated, err := repo.SetDriver(ctx, second.ID, &driver)
	if err != nil {
		t.Fatalf("SetDriver after release: %v", err)
	}
	if !updated.HasDriver() || *updated.DriverID != driver {
		t.Errorf("driver = %v", updated.DriverID)
	}

	n, err := repo.CountUpcomingForDriver(ctx, driver, base)
	if err != nil || n != 1 {
		t.Errorf("CountUpcomingForDriver = %d, %v", n, err)
	}
}

func concurrentCreates(t *testing.T, repo bookingRepo.BookingRepository) {
	truck := uuid.New().String()
	start := base.Add(50 * time.Hour)

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			b := NewBooking(truck, start.Add(time.Duration(offset)*10*time.Minute), 2, models.StatusConfirmed)
			err := repo.CreateBooking(context.Background(), b)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, bookingRepo.ErrOverlap):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || rejected != writers-1 {
		t.Errorf("wins = %d rejected = %d, want exactly one writer to succeed", wins, rejected)
	}
}

func transitionStatus(t *testing.T, repo bookingRepo.BookingRepository) {
	ctx := context.Background()
	truck := uuid.New().String()
	start := base.Add(70 * time.Hour)

	holder := NewBooking(truck, start, 3, models.StatusConfirmed)
	create(t, repo, holder)
	waiting := NewBooking(truck, start.Add(time.Hour), 3, models.StatusPending)
	create(t, repo, waiting)

	entry := func(b *models.Booking, from, to models.BookingStatus) *models.BookingStatusHistory {
		return &models.BookingStatusHistory{
			ID:                 uuid.New().String(),
			BookingID:          b.ID,
			FromStatus:         from,
			ToStatus:           to,
			TransitionedByType: models.ActorSystem,
			TransitionedByName: "contract",
			TransitionedAt:     time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	_, err := repo.TransitionStatus(ctx, waiting.ID, models.StatusPending, models.StatusConfirmed,
		entry(waiting, models.StatusPending, models.StatusConfirmed))
	if !errors.Is(err, bookingRepo.ErrOverlap) {
		t.Fatalf("confirm into a taken window err = %v, want ErrOverlap", err)
	}

	_, err = repo.TransitionStatus(ctx, holder.ID, models.StatusPending, models.StatusCancelled,
		entry(holder, models.StatusPending, models.StatusCancelled))
	if !errors.Is(err, bookingRepo.ErrStatusChanged) {
		t.Fatalf("stale from-status err = %v, want ErrStatusChanged", err)
	}

	if _, err := repo.TransitionStatus(ctx, holder.ID, models.StatusConfirmed, models.StatusCancelled,
		entry(holder, models.StatusConfirmed, models.StatusCancelled)); err != nil {
		t.Fatalf("cancel holder: %v", err)
	}
	confirmed, err := repo.TransitionStatus(ctx, waiting.ID, models.StatusPending, models.StatusConfirmed,
		entry(waiting, models.StatusPending, models.StatusConfirmed))
	if err != nil {
		t.Fatalf("confirm after release: %v", err)
	}
	if confirmed.Status != models.StatusConfirmed {
		t.Errorf("status = %s", confirmed.Status)
	}

	history, err := repo.ListStatusHistory(ctx, holder.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ToStatus != models.StatusCancelled {
		t.Errorf("history = %+v, rejected transitions must not be recorded", history)
	}

	if _, err := repo.TransitionStatus(ctx, uuid.New().String(), models.StatusPending, models.StatusConfirmed,
		entry(waiting, models.StatusPending, models.StatusConfirmed)); !errors.Is(err, bookingRepo.ErrBookingNotFound) {
		t.Errorf("missing booking err = %v", err)
	}
}

func cancellation(t *testing.T, repo bookingRepo.BookingRepository) {
	ctx := context.Background()
	b := NewBooking(uuid.New().String(), base.Add(90*time.Hour), 2, models.StatusConfirmed)
	create(t, repo, b)

	now := time.Now().UTC().Truncate(time.Millisecond)
	c := &models.BookingCancellation{
		ID:                 uuid.New().String(),
		BookingID:          b.ID,
		CancelledBy:        models.CancelledByCustomer,
		CancelledByName:    "Contract Customer",
		CancelledAt:        now,
		CancellationReason: "contract",
		HoursBeforeMove:    80,
		OriginalAmount:     500,
		RefundPercentage:   100,
		RefundAmount:       500,
		RefundReason:       "full_refund",
		RefundStatus:       models.RefundFailed,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := repo.CreateCancellation(ctx, c); err != nil {
		t.Fatalf("CreateCancellation: %v", err)
	}
	dup := *c
	dup.ID = uuid.New().String()
	if err := repo.CreateCancellation(ctx, &dup); !errors.Is(err, bookingRepo.ErrCancellationExists) {
		t.Fatalf("second cancellation err = %v, want ErrCancellationExists", err)
	}

	failed, err := repo.ListCancellationsByRefundStatus(ctx, models.RefundFailed, 1000)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range failed {
		found = found || f.BookingID == b.ID
	}
	if !found {
		t.Error("failed refund not listed")
	}

	claimed, err := repo.UpdateRefund(ctx, b.ID, models.RefundFailed, bookingRepo.RefundUpdate{Status: models.RefundProcessing})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.RefundStatus != models.RefundProcessing {
		t.Errorf("status = %s", claimed.RefundStatus)
	}
	if _, err := repo.UpdateRefund(ctx, b.ID, models.RefundFailed, bookingRepo.RefundUpdate{Status: models.RefundProcessing}); !errors.Is(err, bookingRepo.ErrRefundStateChanged) {
		t.Errorf("second claim err = %v, want ErrRefundStateChanged", err)
	}

	refundID := "re_contract"
	done, err := repo.UpdateRefund(ctx, b.ID, models.RefundProcessing, bookingRepo.RefundUpdate{
		Status: models.RefundCompleted, ExternalRefundID: &refundID, ProcessedAt: &now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if done.StripeRefundID == nil || *done.StripeRefundID != refundID {
		t.Errorf("refund id = %v", done.StripeRefundID)
	}

	if _, err := repo.GetCancellation(ctx, uuid.New().String()); !errors.Is(err, bookingRepo.ErrCancellationNotFound) {
		t.Errorf("missing cancellation err = %v", err)
	}
}
