package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes backing overlap scans and the one
// cancellation per booking rule.
func (repo *MongoBookingRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	bookingIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "truck_id", Value: 1}, {Key: "effective_start", Value: 1}, {Key: "effective_end", Value: 1}},
			Options: options.Index().SetName("truck_window_idx"),
		},
		{
			Keys:    bson.D{{Key: "driver_id", Value: 1}, {Key: "effective_start", Value: 1}, {Key: "effective_end", Value: 1}},
			Options: options.Index().SetName("driver_window_idx").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "org_id", Value: 1}, {Key: "move_date", Value: 1}},
			Options: options.Index().SetName("org_move_date_idx"),
		},
		{
			Keys:    bson.D{{Key: "customer_email", Value: 1}},
			Options: options.Index().SetName("customer_email_idx"),
		},
	}
	if _, err := repo.bookingColl.Indexes().CreateMany(ctx, bookingIndexes); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}

	historyIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "booking_id", Value: 1}, {Key: "transitioned_at", Value: 1}},
		Options: options.Index().SetName("booking_time_idx"),
	}
	if _, err := repo.historyColl.Indexes().CreateOne(ctx, historyIndex); err != nil {
		return fmt.Errorf("failed to create status history indexes: %w", err)
	}

	cancelIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_booking_id"),
		},
		{
			Keys:    bson.D{{Key: "refund_status", Value: 1}, {Key: "cancelled_at", Value: 1}},
			Options: options.Index().SetName("refund_status_idx"),
		},
	}
	if _, err := repo.cancelColl.Indexes().CreateMany(ctx, cancelIndexes); err != nil {
		return fmt.Errorf("failed to create cancellation indexes: %w", err)
	}
	return nil
}
