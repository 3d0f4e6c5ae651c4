package bookingRepo

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

// MongoBookingRepo implements BookingRepository on MongoDB. Mongo has no
// range exclusion constraint, so every write that can make a booking
// active bumps a per-resource lock document inside the same transaction.
// Concurrent writers on one truck or driver then hit a write conflict, and
// the retried transaction sees the committed booking.
type MongoBookingRepo struct {
	client       *mongo.Client
	bookingColl  *mongo.Collection
	historyColl  *mongo.Collection
	cancelColl   *mongo.Collection
	resourceLock *mongo.Collection
}

// NewMongoBookingRepo requires a replica set or sharded cluster for transactions.
func NewMongoBookingRepo(db *mongo.Database) *MongoBookingRepo {
	return &MongoBookingRepo{
		client:       db.Client(),
		bookingColl:  db.Collection("bookings"),
		historyColl:  db.Collection("booking_status_history"),
		cancelColl:   db.Collection("booking_cancellations"),
		resourceLock: db.Collection("resource_locks"),
	}
}

func (repo *MongoBookingRepo) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := repo.client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (repo *MongoBookingRepo) lockResource(sc mongo.SessionContext, kind ResourceKind, id string) error {
	_, err := repo.resourceLock.UpdateOne(sc,
		bson.M{"_id": string(kind) + ":" + id},
		bson.M{"$inc": bson.M{"version": 1}, "$currentDate": bson.M{"updated_at": true}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to lock %s %s: %w", kind, id, err)
	}
	return nil
}

// claimWindow locks the resources of b and verifies nothing active overlaps it.
func (repo *MongoBookingRepo) claimWindow(sc mongo.SessionContext, b *models.Booking, checkTruck, checkDriver bool) error {
	if checkTruck {
		if err := repo.lockResource(sc, ResourceTruck, b.TruckID); err != nil {
			return err
		}
		n, err := repo.bookingColl.CountDocuments(sc, overlapFilter(OverlapQuery{
			Kind: ResourceTruck, ResourceID: b.TruckID,
			Start: b.EffectiveStart, End: b.EffectiveEnd, ExcludeBookingID: b.ID,
		}))
		if err != nil {
			return fmt.Errorf("failed to check truck overlap: %w", err)
		}
		if n > 0 {
			return ErrOverlap
		}
	}
	if checkDriver && b.HasDriver() {
		if err := repo.lockResource(sc, ResourceDriver, *b.DriverID); err != nil {
			return err
		}
		n, err := repo.bookingColl.CountDocuments(sc, overlapFilter(OverlapQuery{
			Kind: ResourceDriver, ResourceID: *b.DriverID,
			Start: b.EffectiveStart, End: b.EffectiveEnd, ExcludeBookingID: b.ID,
		}))
		if err != nil {
			return fmt.Errorf("failed to check driver overlap: %w", err)
		}
		if n > 0 {
			return ErrDriverOverlap
		}
	}
	return nil
}

func (repo *MongoBookingRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return repo.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if b.Status.IsActive() {
			if err := repo.claimWindow(sc, b, true, true); err != nil {
				return err
			}
		}
		if _, err := repo.bookingColl.InsertOne(sc, b); err != nil {
			return fmt.Errorf("insert booking failed: %w", err)
		}
		return nil
	})
}

func (repo *MongoBookingRepo) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	if err := repo.bookingColl.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("error fetching booking with id %s: %w", id, err)
	}
	return &b, nil
}

func (repo *MongoBookingRepo) UpdateBookingFields(ctx context.Context, id string, u BookingUpdate) (*models.Booking, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.FinalAmount != nil {
		set["final_amount"] = *u.FinalAmount
	}
	if u.InternalNotes != nil {
		set["internal_notes"] = *u.InternalNotes
	}
	if u.CustomerNotes != nil {
		set["customer_notes"] = *u.CustomerNotes
	}

	var out models.Booking
	err := repo.bookingColl.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to update booking %s: %w", id, err)
	}
	return &out, nil
}

func (repo *MongoBookingRepo) SetDriver(ctx context.Context, id string, driverID *string) (*models.Booking, error) {
	var out models.Booking
	err := repo.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var current models.Booking
		if err := repo.bookingColl.FindOne(sc, bson.M{"_id": id}).Decode(&current); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrBookingNotFound
			}
			return fmt.Errorf("error fetching booking with id %s: %w", id, err)
		}
		current.DriverID = driverID
		current.UpdatedAt = time.Now().UTC()

		set := bson.M{"updated_at": current.UpdatedAt}
		update := bson.M{"$set": set}
		if driverID == nil {
			update["$unset"] = bson.M{"driver_id": ""}
		} else {
			set["driver_id"] = *driverID
			if current.Status.IsActive() {
				if err := repo.claimWindow(sc, &current, false, true); err != nil {
					return err
				}
			}
		}
		if _, err := repo.bookingColl.UpdateOne(sc, bson.M{"_id": id}, update); err != nil {
			return fmt.Errorf("failed to set driver on booking %s: %w", id, err)
		}
		out = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (repo *MongoBookingRepo) TransitionStatus(ctx context.Context, id string, from, to models.BookingStatus, entry *models.BookingStatusHistory) (*models.Booking, error) {
	var out models.Booking
	err := repo.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var current models.Booking
		if err := repo.bookingColl.FindOne(sc, bson.M{"_id": id}).Decode(&current); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrBookingNotFound
			}
			return fmt.Errorf("error fetching booking with id %s: %w", id, err)
		}
		if current.Status != from {
			return ErrStatusChanged
		}
		if to.IsActive() && !from.IsActive() {
			if err := repo.claimWindow(sc, &current, true, true); err != nil {
				return err
			}
		}

		res, err := repo.bookingColl.UpdateOne(sc,
			bson.M{"_id": id, "status": from},
			bson.M{"$set": bson.M{"status": to, "updated_at": entry.TransitionedAt}},
		)
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrStatusChanged
		}
		if _, err := repo.historyColl.InsertOne(sc, entry); err != nil {
			return fmt.Errorf("failed to append status history: %w", err)
		}

		current.Status = to
		current.UpdatedAt = entry.TransitionedAt
		out = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (repo *MongoBookingRepo) CreateCancellation(ctx context.Context, c *models.BookingCancellation) error {
	if _, err := repo.cancelColl.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrCancellationExists
		}
		return fmt.Errorf("insert cancellation failed: %w", err)
	}
	return nil
}

func (repo *MongoBookingRepo) GetCancellation(ctx context.Context, bookingID string) (*models.BookingCancellation, error) {
	var c models.BookingCancellation
	if err := repo.cancelColl.FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCancellationNotFound
		}
		return nil, fmt.Errorf("error fetching cancellation for %s: %w", bookingID, err)
	}
	return &c, nil
}

func (repo *MongoBookingRepo) UpdateRefund(ctx context.Context, bookingID string, expected models.RefundStatus, u RefundUpdate) (*models.BookingCancellation, error) {
	set := bson.M{"refund_status": u.Status, "updated_at": time.Now().UTC()}
	if u.ExternalRefundID != nil {
		set["stripe_refund_id"] = *u.ExternalRefundID
	}
	if u.ProcessedAt != nil {
		set["refund_processed_at"] = *u.ProcessedAt
	}
	if u.FailureReason != nil {
		set["refund_failure_reason"] = *u.FailureReason
	}

	var out models.BookingCancellation
	err := repo.cancelColl.FindOneAndUpdate(ctx,
		bson.M{"booking_id": bookingID, "refund_status": expected},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == nil {
		return &out, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update refund for %s: %w", bookingID, err)
	}
	n, cerr := repo.cancelColl.CountDocuments(ctx, bson.M{"booking_id": bookingID})
	if cerr != nil {
		return nil, fmt.Errorf("failed to re-check cancellation %s: %w", bookingID, cerr)
	}
	if n == 0 {
		return nil, ErrCancellationNotFound
	}
	return nil, ErrRefundStateChanged
}
