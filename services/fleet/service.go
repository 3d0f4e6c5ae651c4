package fleet

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	fleetRepo "moveflow/database/repository/fleet"
	"moveflow/models"
	"moveflow/services/booking"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlreadyExists wraps unique-key collisions such as a reused license plate.
var ErrAlreadyExists = errors.New("already exists")

type FleetService interface {
	CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*models.Organization, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	CreateTruck(ctx context.Context, req CreateTruckRequest) (*models.Truck, error)
	GetTruck(ctx context.Context, id string) (*models.Truck, error)
	ListTrucks(ctx context.Context, orgID string) ([]models.Truck, error)
	CreateDriver(ctx context.Context, req CreateDriverRequest) (*models.Driver, error)
	GetDriver(ctx context.Context, id string) (*models.Driver, error)
	ListDrivers(ctx context.Context, orgID string, verifiedOnly bool) ([]models.Driver, error)
	SetDriverVerified(ctx context.Context, id string, verified bool) (*models.Driver, error)
	UpsertPricingConfig(ctx context.Context, orgID string, req PricingConfigRequest) (*models.PricingConfig, error)
	GetPricingConfig(ctx context.Context, orgID string) (*models.PricingConfig, error)
}

type CreateOrganizationRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreateTruckRequest struct {
	OrgID             string `json:"org_id"`
	LicensePlate      string `json:"license_plate"`
	Make              string `json:"make"`
	Model             string `json:"model"`
	Year              int    `json:"year"`
	CapacityCubicFeet int    `json:"capacity_cubic_feet"`
}

type CreateDriverRequest struct {
	OrgID         string `json:"org_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"license_number"`
}

type PricingConfigRequest struct {
	BaseHourlyRate  float64                `json:"base_hourly_rate"`
	BaseMileageRate float64                `json:"base_mileage_rate"`
	MinimumCharge   float64                `json:"minimum_charge"`
	SurchargeRules  []models.SurchargeRule `json:"surcharge_rules"`
}

type DefaultFleetService struct {
	Repo   fleetRepo.FleetRepository
	Logger *zap.Logger
	Clock  func() time.Time
}

var _ FleetService = (*DefaultFleetService)(nil)

func NewDefaultFleetService(repo fleetRepo.FleetRepository, logger *zap.Logger) *DefaultFleetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultFleetService{Repo: repo, Logger: logger, Clock: func() time.Time { return time.Now().UTC() }}
}

func validation(field, msg string) error {
	return &booking.ValidationError{Field: field, Message: msg}
}

func mapRepoErr(err error, resource, id string) error {
	switch {
	case errors.Is(err, fleetRepo.ErrNotFound):
		return &booking.NotFoundError{Resource: resource, ID: id}
	case errors.Is(err, fleetRepo.ErrDuplicate):
		return fmt.Errorf("%s %w", resource, ErrAlreadyExists)
	}
	return fmt.Errorf("%s store error: %w", resource, err)
}

// requireOrg makes sure child records are not created for unknown organizations.
func (s *DefaultFleetService) requireOrg(ctx context.Context, orgID string) error {
	if strings.TrimSpace(orgID) == "" {
		return validation("org_id", "is required")
	}
	if _, err := s.Repo.GetOrganization(ctx, orgID); err != nil {
		return mapRepoErr(err, "organization", orgID)
	}
	return nil
}

func (s *DefaultFleetService) CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*models.Organization, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, validation("name", "is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, validation("email", "is not a valid email address")
	}
	now := s.Clock()
	org := &models.Organization{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     req.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.CreateOrganization(ctx, org); err != nil {
		return nil, mapRepoErr(err, "organization", org.ID)
	}
	s.Logger.Info("Organization created", zap.String("org_id", org.ID))
	return org, nil
}

func (s *DefaultFleetService) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	org, err := s.Repo.GetOrganization(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "organization", id)
	}
	return org, nil
}

func (s *DefaultFleetService) CreateTruck(ctx context.Context, req CreateTruckRequest) (*models.Truck, error) {
	plate := strings.ToUpper(strings.TrimSpace(req.LicensePlate))
	if plate == "" {
		return nil, validation("license_plate", "is required")
	}
	if req.CapacityCubicFeet < 0 {
		return nil, validation("capacity_cubic_feet", "must not be negative")
	}
	if err := s.requireOrg(ctx, req.OrgID); err != nil {
		return nil, err
	}
	now := s.Clock()
	t := &models.Truck{
		ID:                uuid.New().String(),
		OrgID:             req.OrgID,
		LicensePlate:      plate,
		Make:              req.Make,
		Model:             req.Model,
		Year:              req.Year,
		CapacityCubicFeet: req.CapacityCubicFeet,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Repo.CreateTruck(ctx, t); err != nil {
		return nil, mapRepoErr(err, "truck", t.ID)
	}
	s.Logger.Info("Truck registered", zap.String("truck_id", t.ID), zap.String("org_id", t.OrgID))
	return t, nil
}

func (s *DefaultFleetService) GetTruck(ctx context.Context, id string) (*models.Truck, error) {
	t, err := s.Repo.GetTruck(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "truck", id)
	}
	return t, nil
}

func (s *DefaultFleetService) ListTrucks(ctx context.Context, orgID string) ([]models.Truck, error) {
	out, err := s.Repo.ListTrucks(ctx, orgID)
	if err != nil {
		return nil, mapRepoErr(err, "truck", orgID)
	}
	return out, nil
}

func (s *DefaultFleetService) CreateDriver(ctx context.Context, req CreateDriverRequest) (*models.Driver, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, validation("name", "is required")
	}
	if strings.TrimSpace(req.LicenseNumber) == "" {
		return nil, validation("license_number", "is required")
	}
	if err := s.requireOrg(ctx, req.OrgID); err != nil {
		return nil, err
	}
	now := s.Clock()
	d := &models.Driver{
		ID:            uuid.New().String(),
		OrgID:         req.OrgID,
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:         req.Phone,
		LicenseNumber: strings.TrimSpace(req.LicenseNumber),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Repo.CreateDriver(ctx, d); err != nil {
		return nil, mapRepoErr(err, "driver", d.ID)
	}
	s.Logger.Info("Driver registered", zap.String("driver_id", d.ID), zap.String("org_id", d.OrgID))
	return d, nil
}

func (s *DefaultFleetService) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	d, err := s.Repo.GetDriver(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "driver", id)
	}
	return d, nil
}

func (s *DefaultFleetService) ListDrivers(ctx context.Context, orgID string, verifiedOnly bool) ([]models.Driver, error) {
	out, err := s.Repo.ListDrivers(ctx, orgID, verifiedOnly)
	if err != nil {
		return nil, mapRepoErr(err, "driver", orgID)
	}
	return out, nil
}

func (s *DefaultFleetService) SetDriverVerified(ctx context.Context, id string, verified bool) (*models.Driver, error) {
	d, err := s.Repo.SetDriverVerified(ctx, id, verified)
	if err != nil {
		return nil, mapRepoErr(err, "driver", id)
	}
	s.Logger.Info("Driver verification updated", zap.String("driver_id", id), zap.Bool("verified", verified))
	return d, nil
}

func (s *DefaultFleetService) UpsertPricingConfig(ctx context.Context, orgID string, req PricingConfigRequest) (*models.PricingConfig, error) {
	if req.BaseHourlyRate < 0 || req.BaseMileageRate < 0 || req.MinimumCharge < 0 {
		return nil, validation("rates", "must not be negative")
	}
	for i, r := range req.SurchargeRules {
		if err := validateRule(r); err != nil {
			return nil, validation(fmt.Sprintf("surcharge_rules[%d]", i), err.Error())
		}
	}
	if err := s.requireOrg(ctx, orgID); err != nil {
		return nil, err
	}

	now := s.Clock()
	cfg := &models.PricingConfig{
		ID:              uuid.New().String(),
		OrgID:           orgID,
		BaseHourlyRate:  req.BaseHourlyRate,
		BaseMileageRate: req.BaseMileageRate,
		MinimumCharge:   req.MinimumCharge,
		SurchargeRules:  req.SurchargeRules,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if cfg.SurchargeRules == nil {
		cfg.SurchargeRules = []models.SurchargeRule{}
	}
	if err := s.Repo.UpsertPricingConfig(ctx, cfg); err != nil {
		return nil, mapRepoErr(err, "pricing config", orgID)
	}
	s.Logger.Info("Pricing config saved", zap.String("org_id", orgID), zap.Int("surcharge_rules", len(cfg.SurchargeRules)))
	return s.GetPricingConfig(ctx, orgID)
}

func (s *DefaultFleetService) GetPricingConfig(ctx context.Context, orgID string) (*models.PricingConfig, error) {
	cfg, err := s.Repo.GetPricingConfig(ctx, orgID)
	if err != nil {
		return nil, mapRepoErr(err, "pricing config", orgID)
	}
	return cfg, nil
}

func validateRule(r models.SurchargeRule) error {
	switch r.Type {
	case models.SurchargeStairs, models.SurchargePiano, models.SurchargeFragile,
		models.SurchargeAntiques, models.SurchargeDistance, models.SurchargeCustom:
		if r.Amount == nil || *r.Amount < 0 {
			return errors.New("amount must be set and non-negative")
		}
	case models.SurchargeWeekend, models.SurchargeAfterHours:
		if r.Multiplier == nil || *r.Multiplier < 1 {
			return errors.New("multiplier must be set and at least 1")
		}
		if r.Type == models.SurchargeAfterHours {
			if _, err := time.Parse("15:04", r.MinTime); err != nil {
				return errors.New("min_time must be HH:MM")
			}
			if _, err := time.Parse("15:04", r.MaxTime); err != nil {
				return errors.New("max_time must be HH:MM")
			}
		}
		for _, d := range r.Days {
			if d < 1 || d > 7 {
				return errors.New("days must be ISO weekdays 1-7")
			}
		}
	default:
		return fmt.Errorf("unknown surcharge type %q", r.Type)
	}
	return nil
}
