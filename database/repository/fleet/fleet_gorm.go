package fleetRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moveflow/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFleetRepo implements FleetRepository on Postgres.
type GormFleetRepo struct {
	db *gorm.DB
}

func NewGormFleetRepo(db *gorm.DB) *GormFleetRepo {
	return &GormFleetRepo{db: db}
}

// EnsureSchema migrates the fleet tables.
func (r *GormFleetRepo) EnsureSchema(ctx context.Context) error {
	err := r.db.WithContext(ctx).AutoMigrate(
		&models.Organization{},
		&models.Truck{},
		&models.Driver{},
		&models.PricingConfig{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate fleet tables: %w", err)
	}
	return nil
}

func (r *GormFleetRepo) create(ctx context.Context, v interface{}, what string) error {
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert %s: %w", what, err)
	}
	return nil
}

func (r *GormFleetRepo) first(ctx context.Context, dst interface{}, what, query string, args ...interface{}) error {
	if err := r.db.WithContext(ctx).Where(query, args...).First(dst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to fetch %s: %w", what, err)
	}
	return nil
}

func (r *GormFleetRepo) CreateOrganization(ctx context.Context, org *models.Organization) error {
	return r.create(ctx, org, "organization")
}

func (r *GormFleetRepo) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := r.first(ctx, &org, "organization", "id = ?", id); err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *GormFleetRepo) CreateTruck(ctx context.Context, t *models.Truck) error {
	return r.create(ctx, t, "truck")
}

func (r *GormFleetRepo) GetTruck(ctx context.Context, id string) (*models.Truck, error) {
	var t models.Truck
	if err := r.first(ctx, &t, "truck", "id = ?", id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormFleetRepo) ListTrucks(ctx context.Context, orgID string) ([]models.Truck, error) {
	var out []models.Truck
	if err := r.db.WithContext(ctx).Where("org_id = ?", orgID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list trucks: %w", err)
	}
	return out, nil
}

func (r *GormFleetRepo) CreateDriver(ctx context.Context, d *models.Driver) error {
	return r.create(ctx, d, "driver")
}

func (r *GormFleetRepo) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	var d models.Driver
	if err := r.first(ctx, &d, "driver", "id = ?", id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *GormFleetRepo) ListDrivers(ctx context.Context, orgID string, verifiedOnly bool) ([]models.Driver, error) {
	tx := r.db.WithContext(ctx).Where("org_id = ?", orgID)
	if verifiedOnly {
		tx = tx.Where("is_verified = ?", true)
	}
	var out []models.Driver
	if err := tx.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	return out, nil
}

func (r *GormFleetRepo) SetDriverVerified(ctx context.Context, id string, verified bool) (*models.Driver, error) {
	res := r.db.WithContext(ctx).Model(&models.Driver{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_verified": verified, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update driver %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetDriver(ctx, id)
}

func (r *GormFleetRepo) UpsertPricingConfig(ctx context.Context, cfg *models.PricingConfig) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_hourly_rate", "base_mileage_rate", "minimum_charge", "surcharge_rules", "updated_at",
		}),
	}).Create(cfg).Error
	if err != nil {
		return fmt.Errorf("failed to upsert pricing config: %w", err)
	}
	return nil
}

func (r *GormFleetRepo) GetPricingConfig(ctx context.Context, orgID string) (*models.PricingConfig, error) {
	var cfg models.PricingConfig
	if err := r.first(ctx, &cfg, "pricing config", "org_id = ?", orgID); err != nil {
		return nil, err
	}
	return &cfg, nil
}
