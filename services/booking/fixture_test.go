package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	bookingRepo "moveflow/database/repository/booking"
	"moveflow/database/repository/memory"
	"moveflow/models"
	"moveflow/services/payment"

	"go.uber.org/zap"
)

// fixedNow is a Monday noon; all relative times below derive from it.
var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	store *memory.Store
	svc   *DefaultBookingService
	orgID string
	truck string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	f := &fixture{t: t, store: store, orgID: "org-1", truck: "truck-1"}
	must(t, store.CreateOrganization(ctx, &models.Organization{ID: f.orgID, Name: "Acme", Email: "ops@acme.test"}))
	must(t, store.CreateTruck(ctx, &models.Truck{ID: f.truck, OrgID: f.orgID, LicensePlate: "MV-1"}))
	must(t, store.CreateTruck(ctx, &models.Truck{ID: "truck-2", OrgID: f.orgID, LicensePlate: "MV-2"}))
	must(t, store.CreateTruck(ctx, &models.Truck{ID: "truck-3", OrgID: f.orgID, LicensePlate: "MV-3"}))
	must(t, store.UpsertPricingConfig(ctx, &models.PricingConfig{ID: "pc-1", OrgID: f.orgID, BaseHourlyRate: 100, BaseMileageRate: 2}))

	f.svc = NewDefaultBookingService(store, store, zap.NewNop())
	f.svc.Clock = func() time.Time { return fixedNow }
	return f
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) addDriver(id string, verified bool) {
	f.t.Helper()
	must(f.t, f.store.CreateDriver(context.Background(), &models.Driver{
		ID: id, OrgID: f.orgID, Name: "Driver " + id, LicenseNumber: "DL-" + id, IsVerified: verified,
	}))
}

func (f *fixture) request(truckID string, move time.Time) CreateBookingRequest {
	return CreateBookingRequest{
		OrgID:                  f.orgID,
		TruckID:                truckID,
		CustomerName:           "Jordan Lee",
		CustomerEmail:          "Jordan@Example.com",
		CustomerPhone:          "555-0100",
		MoveDate:               move,
		PickupAddress:          "1 Main St",
		DropoffAddress:         "9 Elm St",
		EstimatedDistanceMiles: 12,
		EstimatedDurationHours: 4,
	}
}

var testPrice = models.PriceEstimate{EstimatedAmount: 833.33, PlatformFee: 41.67}

func (f *fixture) create(truckID string, move time.Time) *models.Booking {
	f.t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), f.request(truckID, move), testPrice)
	if err != nil {
		f.t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

// createPaid books a move that has a captured payment to refund.
func (f *fixture) createPaid(truckID string, move time.Time) *models.Booking {
	f.t.Helper()
	req := f.request(truckID, move)
	ref := "pi_test_" + truckID
	req.StripePaymentIntentID = &ref
	b, err := f.svc.CreateBooking(context.Background(), req, testPrice)
	if err != nil {
		f.t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.StatusEvent
	err    error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e models.StatusEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return d.err
}

type fakeRefunder struct {
	mu    sync.Mutex
	calls []payment.RefundRequest
	fail  bool
}

func (r *fakeRefunder) IssueRefund(_ context.Context, req payment.RefundRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if r.fail {
		return "", payment.ErrNotConfigured
	}
	return "re_" + req.IdempotencyKey, nil
}

var errDBDown = errors.New("db down")

// failingTransitions lets every write through except status changes.
type failingTransitions struct {
	*memory.Store
}

func (failingTransitions) TransitionStatus(context.Context, string, models.BookingStatus, models.BookingStatus, *models.BookingStatusHistory) (*models.Booking, error) {
	return nil, errDBDown
}

var _ bookingRepo.BookingRepository = failingTransitions{}

// lostOutcome fails the first write that would record a completed refund.
type lostOutcome struct {
	*memory.Store
	dropped bool
}

func (l *lostOutcome) UpdateRefund(ctx context.Context, bookingID string, expected models.RefundStatus, u bookingRepo.RefundUpdate) (*models.BookingCancellation, error) {
	if u.Status == models.RefundCompleted && !l.dropped {
		l.dropped = true
		return nil, errDBDown
	}
	return l.Store.UpdateRefund(ctx, bookingID, expected, u)
}

var _ bookingRepo.BookingRepository = (*lostOutcome)(nil)
