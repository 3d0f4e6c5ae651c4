package memory

import (
	"context"
	"sort"
	"time"

	fleetRepo "moveflow/database/repository/fleet"
	"moveflow/models"
)

func (s *Store) CreateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[org.ID]; ok {
		return fleetRepo.ErrDuplicate
	}
	s.orgs[org.ID] = *org
	return nil
}

func (s *Store) GetOrganization(_ context.Context, id string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, fleetRepo.ErrNotFound
	}
	return &org, nil
}

func (s *Store) CreateTruck(_ context.Context, t *models.Truck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.trucks {
		if existing.ID == t.ID || existing.LicensePlate == t.LicensePlate {
			return fleetRepo.ErrDuplicate
		}
	}
	s.trucks[t.ID] = *t
	return nil
}

func (s *Store) GetTruck(_ context.Context, id string) (*models.Truck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trucks[id]
	if !ok {
		return nil, fleetRepo.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListTrucks(_ context.Context, orgID string) ([]models.Truck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Truck
	for _, t := range s.trucks {
		if t.OrgID == orgID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateDriver(_ context.Context, d *models.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.drivers {
		if existing.ID == d.ID || existing.LicenseNumber == d.LicenseNumber {
			return fleetRepo.ErrDuplicate
		}
	}
	s.drivers[d.ID] = *d
	return nil
}

func (s *Store) GetDriver(_ context.Context, id string) (*models.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, fleetRepo.ErrNotFound
	}
	return &d, nil
}

func (s *Store) ListDrivers(_ context.Context, orgID string, verifiedOnly bool) ([]models.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Driver
	for _, d := range s.drivers {
		if d.OrgID != orgID || (verifiedOnly && !d.IsVerified) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetDriverVerified(_ context.Context, id string, verified bool) (*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, fleetRepo.ErrNotFound
	}
	d.IsVerified = verified
	d.UpdatedAt = time.Now().UTC()
	s.drivers[id] = d
	return &d, nil
}

func (s *Store) UpsertPricingConfig(_ context.Context, cfg *models.PricingConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pricing[cfg.OrgID]; ok {
		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
	}
	s.pricing[cfg.OrgID] = *cfg
	return nil
}

func (s *Store) GetPricingConfig(_ context.Context, orgID string) (*models.PricingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.pricing[orgID]
	if !ok {
		return nil, fleetRepo.ErrNotFound
	}
	return &cfg, nil
}
