package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"moveflow/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func overlapFilter(q OverlapQuery) bson.M {
	field := "truck_id"
	if q.Kind == ResourceDriver {
		field = "driver_id"
	}
	filter := bson.M{
		field:             q.ResourceID,
		"status":          bson.M{"$in": models.ActiveStatuses},
		"effective_start": bson.M{"$lt": q.End},
		"effective_end":   bson.M{"$gt": q.Start},
	}
	if q.ExcludeBookingID != "" {
		filter["_id"] = bson.M{"$ne": q.ExcludeBookingID}
	}
	return filter
}

func (repo *MongoBookingRepo) FindOverlapping(ctx context.Context, q OverlapQuery) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "effective_start", Value: 1}})
	cursor, err := repo.bookingColl.Find(ctx, overlapFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("error querying overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Booking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding overlapping bookings: %w", err)
	}
	return out, nil
}

func (repo *MongoBookingRepo) CountUpcomingForDriver(ctx context.Context, driverID string, after time.Time) (int64, error) {
	n, err := repo.bookingColl.CountDocuments(ctx, bson.M{
		"driver_id":       driverID,
		"status":          bson.M{"$in": models.ActiveStatuses},
		"effective_start": bson.M{"$gt": after},
	})
	if err != nil {
		return 0, fmt.Errorf("error counting assignments for driver %s: %w", driverID, err)
	}
	return n, nil
}

func (repo *MongoBookingRepo) ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	filter := bson.M{}
	if f.OrgID != "" {
		filter["org_id"] = f.OrgID
	}
	if f.TruckID != "" {
		filter["truck_id"] = f.TruckID
	}
	if f.DriverID != "" {
		filter["driver_id"] = f.DriverID
	}
	if f.CustomerEmail != "" {
		filter["customer_email"] = f.CustomerEmail
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.To != nil {
		filter["effective_start"] = bson.M{"$lt": *f.To}
	}
	if f.From != nil {
		filter["effective_end"] = bson.M{"$gt": *f.From}
	}

	opts := options.Find().SetSort(bson.D{{Key: "effective_start", Value: 1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}

	cursor, err := repo.bookingColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Booking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding bookings: %w", err)
	}
	return out, nil
}

func (repo *MongoBookingRepo) ListStatusHistory(ctx context.Context, bookingID string) ([]models.BookingStatusHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "transitioned_at", Value: 1}})
	cursor, err := repo.historyColl.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing status history: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.BookingStatusHistory
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding status history: %w", err)
	}
	return out, nil
}

func (repo *MongoBookingRepo) ListCancellationsByRefundStatus(ctx context.Context, status models.RefundStatus, limit int) ([]models.BookingCancellation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "cancelled_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := repo.cancelColl.Find(ctx, bson.M{
		"refund_status": status,
		"refund_amount": bson.M{"$gt": 0},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing cancellations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.BookingCancellation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding cancellations: %w", err)
	}
	return out, nil
}
