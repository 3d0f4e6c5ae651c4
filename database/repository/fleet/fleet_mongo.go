package fleetRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moveflow/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoFleetRepo implements FleetRepository using MongoDB.
type MongoFleetRepo struct {
	orgColl     *mongo.Collection
	truckColl   *mongo.Collection
	driverColl  *mongo.Collection
	pricingColl *mongo.Collection
}

func NewMongoFleetRepo(db *mongo.Database) *MongoFleetRepo {
	return &MongoFleetRepo{
		orgColl:     db.Collection("organizations"),
		truckColl:   db.Collection("trucks"),
		driverColl:  db.Collection("drivers"),
		pricingColl: db.Collection("pricing_configs"),
	}
}

func insert(ctx context.Context, coll *mongo.Collection, doc interface{}, what string) error {
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert %s failed: %w", what, err)
	}
	return nil
}

func findOne(ctx context.Context, coll *mongo.Collection, filter bson.M, dst interface{}, what string) error {
	if err := coll.FindOne(ctx, filter).Decode(dst); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return fmt.Errorf("error fetching %s: %w", what, err)
	}
	return nil
}

func (r *MongoFleetRepo) CreateOrganization(ctx context.Context, org *models.Organization) error {
	return insert(ctx, r.orgColl, org, "organization")
}

func (r *MongoFleetRepo) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := findOne(ctx, r.orgColl, bson.M{"_id": id}, &org, "organization"); err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *MongoFleetRepo) CreateTruck(ctx context.Context, t *models.Truck) error {
	return insert(ctx, r.truckColl, t, "truck")
}

func (r *MongoFleetRepo) GetTruck(ctx context.Context, id string) (*models.Truck, error) {
	var t models.Truck
	if err := findOne(ctx, r.truckColl, bson.M{"_id": id}, &t, "truck"); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *MongoFleetRepo) ListTrucks(ctx context.Context, orgID string) ([]models.Truck, error) {
	cursor, err := r.truckColl.Find(ctx, bson.M{"org_id": orgID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error listing trucks: %w", err)
	}
	defer cursor.Close(ctx)
	var out []models.Truck
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding trucks: %w", err)
	}
	return out, nil
}

func (r *MongoFleetRepo) CreateDriver(ctx context.Context, d *models.Driver) error {
	return insert(ctx, r.driverColl, d, "driver")
}

func (r *MongoFleetRepo) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	var d models.Driver
	if err := findOne(ctx, r.driverColl, bson.M{"_id": id}, &d, "driver"); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *MongoFleetRepo) ListDrivers(ctx context.Context, orgID string, verifiedOnly bool) ([]models.Driver, error) {
	filter := bson.M{"org_id": orgID}
	if verifiedOnly {
		filter["is_verified"] = true
	}
	cursor, err := r.driverColl.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error listing drivers: %w", err)
	}
	defer cursor.Close(ctx)
	var out []models.Driver
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding drivers: %w", err)
	}
	return out, nil
}

func (r *MongoFleetRepo) SetDriverVerified(ctx context.Context, id string, verified bool) (*models.Driver, error) {
	var d models.Driver
	err := r.driverColl.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_verified": verified, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update driver %s: %w", id, err)
	}
	return &d, nil
}

func (r *MongoFleetRepo) UpsertPricingConfig(ctx context.Context, cfg *models.PricingConfig) error {
	_, err := r.pricingColl.UpdateOne(ctx,
		bson.M{"org_id": cfg.OrgID},
		bson.M{
			"$set": bson.M{
				"base_hourly_rate":  cfg.BaseHourlyRate,
				"base_mileage_rate": cfg.BaseMileageRate,
				"minimum_charge":    cfg.MinimumCharge,
				"surcharge_rules":   cfg.SurchargeRules,
				"updated_at":        cfg.UpdatedAt,
			},
			"$setOnInsert": bson.M{"_id": cfg.ID, "created_at": cfg.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pricing config: %w", err)
	}
	return nil
}

func (r *MongoFleetRepo) GetPricingConfig(ctx context.Context, orgID string) (*models.PricingConfig, error) {
	var cfg models.PricingConfig
	if err := findOne(ctx, r.pricingColl, bson.M{"org_id": orgID}, &cfg, "pricing config"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnsureIndexes creates the uniqueness and lookup indexes for fleet collections.
func (r *MongoFleetRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := r.truckColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "license_plate", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_license_plate")},
		{Keys: bson.D{{Key: "org_id", Value: 1}}, Options: options.Index().SetName("org_idx")},
	}); err != nil {
		return fmt.Errorf("failed to create truck indexes: %w", err)
	}
	if _, err := r.driverColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "license_number", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_license_number")},
		{Keys: bson.D{{Key: "org_id", Value: 1}, {Key: "is_verified", Value: 1}}, Options: options.Index().SetName("org_verified_idx")},
	}); err != nil {
		return fmt.Errorf("failed to create driver indexes: %w", err)
	}
	if _, err := r.pricingColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "org_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_org_id"),
	}); err != nil {
		return fmt.Errorf("failed to create pricing indexes: %w", err)
	}
	return nil
}
