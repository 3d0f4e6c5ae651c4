package fleetRepo

import (
	"context"
	"errors"

	"moveflow/models"
)

var (
	ErrNotFound  = errors.New("fleet record not found")
	ErrDuplicate = errors.New("fleet record already exists")
)

// FleetRepository stores organizations, trucks, drivers and pricing configs.
type FleetRepository interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)

	CreateTruck(ctx context.Context, t *models.Truck) error
	GetTruck(ctx context.Context, id string) (*models.Truck, error)
	ListTrucks(ctx context.Context, orgID string) ([]models.Truck, error)

	CreateDriver(ctx context.Context, d *models.Driver) error
	GetDriver(ctx context.Context, id string) (*models.Driver, error)
	// ListDrivers returns drivers ordered by id.
	ListDrivers(ctx context.Context, orgID string, verifiedOnly bool) ([]models.Driver, error)
	SetDriverVerified(ctx context.Context, id string, verified bool) (*models.Driver, error)

	UpsertPricingConfig(ctx context.Context, cfg *models.PricingConfig) error
	GetPricingConfig(ctx context.Context, orgID string) (*models.PricingConfig, error)
}
