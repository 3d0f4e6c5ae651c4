// Package memory is an in-process store for local runs and tests. A single
// mutex serializes writes, which gives the same no-overlap guarantee the
// Postgres exclusion constraints provide.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	bookingRepo "moveflow/database/repository/booking"
	fleetRepo "moveflow/database/repository/fleet"
	"moveflow/models"
)

type Store struct {
	mu            sync.RWMutex
	bookings      map[string]models.Booking
	history       map[string][]models.BookingStatusHistory
	cancellations map[string]models.BookingCancellation
	orgs          map[string]models.Organization
	trucks        map[string]models.Truck
	drivers       map[string]models.Driver
	pricing       map[string]models.PricingConfig
}

var (
	_ bookingRepo.BookingRepository = (*Store)(nil)
	_ fleetRepo.FleetRepository     = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		bookings:      make(map[string]models.Booking),
		history:       make(map[string][]models.BookingStatusHistory),
		cancellations: make(map[string]models.BookingCancellation),
		orgs:          make(map[string]models.Organization),
		trucks:        make(map[string]models.Truck),
		drivers:       make(map[string]models.Driver),
		pricing:       make(map[string]models.PricingConfig),
	}
}

func (s *Store) overlapping(q bookingRepo.OverlapQuery) []models.Booking {
	var out []models.Booking
	for _, b := range s.bookings {
		if !b.Status.IsActive() || b.ID == q.ExcludeBookingID {
			continue
		}
		switch q.Kind {
		case bookingRepo.ResourceDriver:
			if b.DriverID == nil || *b.DriverID != q.ResourceID {
				continue
			}
		default:
			if b.TruckID != q.ResourceID {
				continue
			}
		}
		if b.EffectiveStart.Before(q.End) && b.EffectiveEnd.After(q.Start) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveStart.Before(out[j].EffectiveStart) })
	return out
}

// violates reports the constraint b would break if stored as-is.
func (s *Store) violates(b models.Booking) error {
	if !b.Status.IsActive() {
		return nil
	}
	window := bookingRepo.OverlapQuery{Start: b.EffectiveStart, End: b.EffectiveEnd, ExcludeBookingID: b.ID}
	window.Kind, window.ResourceID = bookingRepo.ResourceTruck, b.TruckID
	if len(s.overlapping(window)) > 0 {
		return bookingRepo.ErrOverlap
	}
	if b.HasDriver() {
		window.Kind, window.ResourceID = bookingRepo.ResourceDriver, *b.DriverID
		if len(s.overlapping(window)) > 0 {
			return bookingRepo.ErrDriverOverlap
		}
	}
	return nil
}

func (s *Store) CreateBooking(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.violates(*b); err != nil {
		return err
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *Store) GetBookingByID(_ context.Context, id string) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	return &b, nil
}

func (s *Store) ListBookings(_ context.Context, f bookingRepo.BookingFilter) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statusOK := func(st models.BookingStatus) bool {
		if len(f.Statuses) == 0 {
			return true
		}
		for _, want := range f.Statuses {
			if want == st {
				return true
			}
		}
		return false
	}

	var out []models.Booking
	for _, b := range s.bookings {
		switch {
		case f.OrgID != "" && b.OrgID != f.OrgID,
			f.TruckID != "" && b.TruckID != f.TruckID,
			f.DriverID != "" && (b.DriverID == nil || *b.DriverID != f.DriverID),
			f.CustomerEmail != "" && b.CustomerEmail != f.CustomerEmail,
			!statusOK(b.Status),
			f.To != nil && !b.EffectiveStart.Before(*f.To),
			f.From != nil && !b.EffectiveEnd.After(*f.From):
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EffectiveStart.Equal(out[j].EffectiveStart) {
			return out[i].ID < out[j].ID
		}
		return out[i].EffectiveStart.Before(out[j].EffectiveStart)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) FindOverlapping(_ context.Context, q bookingRepo.OverlapQuery) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlapping(q), nil
}

func (s *Store) CountUpcomingForDriver(_ context.Context, driverID string, after time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, b := range s.bookings {
		if b.DriverID != nil && *b.DriverID == driverID && b.Status.IsActive() && b.EffectiveStart.After(after) {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateBookingFields(_ context.Context, id string, u bookingRepo.BookingUpdate) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	if u.FinalAmount != nil {
		v := *u.FinalAmount
		b.FinalAmount = &v
	}
	if u.InternalNotes != nil {
		v := *u.InternalNotes
		b.InternalNotes = &v
	}
	if u.CustomerNotes != nil {
		v := *u.CustomerNotes
		b.CustomerNotes = &v
	}
	b.UpdatedAt = time.Now().UTC()
	s.bookings[id] = b
	return &b, nil
}

func (s *Store) SetDriver(_ context.Context, id string, driverID *string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	if driverID != nil {
		v := *driverID
		b.DriverID = &v
	} else {
		b.DriverID = nil
	}
	if err := s.violates(b); err != nil {
		return nil, err
	}
	b.UpdatedAt = time.Now().UTC()
	s.bookings[id] = b
	return &b, nil
}

func (s *Store) TransitionStatus(_ context.Context, id string, from, to models.BookingStatus, entry *models.BookingStatusHistory) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	if b.Status != from {
		return nil, bookingRepo.ErrStatusChanged
	}
	b.Status = to
	if err := s.violates(b); err != nil {
		return nil, err
	}
	b.UpdatedAt = entry.TransitionedAt
	s.bookings[id] = b
	s.history[id] = append(s.history[id], *entry)
	return &b, nil
}

func (s *Store) ListStatusHistory(_ context.Context, bookingID string) ([]models.BookingStatusHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.BookingStatusHistory, len(s.history[bookingID]))
	copy(out, s.history[bookingID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].TransitionedAt.Before(out[j].TransitionedAt) })
	return out, nil
}

func (s *Store) CreateCancellation(_ context.Context, c *models.BookingCancellation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cancellations[c.BookingID]; exists {
		return bookingRepo.ErrCancellationExists
	}
	s.cancellations[c.BookingID] = *c
	return nil
}

func (s *Store) GetCancellation(_ context.Context, bookingID string) (*models.BookingCancellation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cancellations[bookingID]
	if !ok {
		return nil, bookingRepo.ErrCancellationNotFound
	}
	return &c, nil
}

func (s *Store) UpdateRefund(_ context.Context, bookingID string, expected models.RefundStatus, u bookingRepo.RefundUpdate) (*models.BookingCancellation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cancellations[bookingID]
	if !ok {
		return nil, bookingRepo.ErrCancellationNotFound
	}
	if c.RefundStatus != expected {
		return nil, bookingRepo.ErrRefundStateChanged
	}
	c.RefundStatus = u.Status
	if u.ExternalRefundID != nil {
		v := *u.ExternalRefundID
		c.StripeRefundID = &v
	}
	if u.ProcessedAt != nil {
		v := *u.ProcessedAt
		c.RefundProcessedAt = &v
	}
	if u.FailureReason != nil {
		v := *u.FailureReason
		c.RefundFailureReason = &v
	}
	c.UpdatedAt = time.Now().UTC()
	s.cancellations[bookingID] = c
	return &c, nil
}

func (s *Store) ListCancellationsByRefundStatus(_ context.Context, status models.RefundStatus, limit int) ([]models.BookingCancellation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.BookingCancellation
	for _, c := range s.cancellations {
		if c.RefundStatus == status && c.RefundAmount > 0 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CancelledAt.Before(out[j].CancelledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
