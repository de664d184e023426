package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingserrors "lastbite/internal/bookings/errors"
	"lastbite/pkg/config"
	mongotx "lastbite/pkg/db/mongo"
	"lastbite/pkg/model"
)

const (
	CollectionName           = "Bookings"
	OffersCollectionName     = "Offers"
	OfferLocksCollectionName = "Offer_locks"
)

// BookingFilter narrows listing queries. Zero values mean "no constraint".
type BookingFilter struct {
	BuyerID  string
	SellerID string
	StoreID  string
	Status   string
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByPickupCode(ctx context.Context, code string) (*model.Booking, error)
	FindAll(ctx context.Context, filter BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, filter BookingFilter) (int64, error)
	UpdateStatus(ctx context.Context, id, from, to string) error

	FindOffer(ctx context.Context, offerID string) (*model.Offer, error)
	DecrementOfferStock(ctx context.Context, offerID string, n int) error
	RestoreOfferStock(ctx context.Context, offerID string, n int) error

	AcquireOfferLock(ctx context.Context, offerID string, ttl time.Duration) error
	ReleaseOfferLock(ctx context.Context, offerID string)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	offers     *mongo.Collection
	locks      *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		offers:     db.Collection(OffersCollectionName),
		locks:      db.Collection(OfferLocksCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			return context.WithTimeout(ctx, remaining)
		}
	}
	return context.WithTimeout(ctx, timeout)
}

func (f BookingFilter) toBSON() bson.M {
	filter := bson.M{}
	if f.BuyerID != "" {
		filter["buyer_id"] = f.BuyerID
	}
	if f.SellerID != "" {
		filter["seller_id"] = f.SellerID
	}
	if f.StoreID != "" {
		filter["store_id"] = f.StoreID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindByPickupCode(ctx context.Context, code string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"pickup_code": code}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking by pickup code: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, filter BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter BookingFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter.toBSON())
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	return count, nil
}

// UpdateStatus transitions a booking only if it is still in the expected
// state, so two concurrent transitions cannot both win.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": from},
		bson.M{"$set": bson.M{
			"status":     to,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrStatusChanged
	}

	return nil
}

func (r *mongoBookingRepository) FindOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(offerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrOfferNotFound, offerID)
	}

	var offer model.Offer
	err = r.offers.FindOne(ctx, bson.M{"_id": objectID}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to find offer: %w", err)
	}

	return &offer, nil
}

// DecrementOfferStock reserves n units with a guarded $inc: the filter
// requires available_quantity >= n, so the count can never go below zero
// no matter how many requests race. When stock hits zero the offer is
// flipped to sold_out in a second conditional update.
func (r *mongoBookingRepository) DecrementOfferStock(ctx context.Context, offerID string, n int) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(offerID)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrOfferNotFound, offerID)
	}

	result, err := r.offers.UpdateOne(ctx,
		bson.M{
			"_id":                objectID,
			"status":             model.OfferActive,
			"available_quantity": bson.M{"$gte": n},
		},
		bson.M{"$inc": bson.M{"available_quantity": -n}},
	)
	if err != nil {
		return fmt.Errorf("failed to decrement offer stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrInsufficientStock
	}

	if _, err := r.offers.UpdateOne(ctx,
		bson.M{"_id": objectID, "available_quantity": 0, "status": model.OfferActive},
		bson.M{"$set": bson.M{"status": model.OfferSoldOut}},
	); err != nil {
		return fmt.Errorf("failed to mark offer sold out: %w", err)
	}

	return nil
}

// RestoreOfferStock returns n units after a cancellation. A sold-out offer
// becomes active again unless its pickup window has already closed, in
// which case it is expired.
func (r *mongoBookingRepository) RestoreOfferStock(ctx context.Context, offerID string, n int) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(offerID)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrOfferNotFound, offerID)
	}

	var offer model.Offer
	err = r.offers.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID},
		bson.M{"$inc": bson.M{"available_quantity": n}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return bookingserrors.ErrOfferNotFound
		}
		return fmt.Errorf("failed to restore offer stock: %w", err)
	}

	if offer.Status == model.OfferSoldOut {
		newStatus := model.OfferActive
		if !offer.PickupEnd.After(time.Now()) {
			newStatus = model.OfferExpired
		}
		if _, err := r.offers.UpdateOne(ctx,
			bson.M{"_id": objectID, "status": model.OfferSoldOut},
			bson.M{"$set": bson.M{"status": newStatus}},
		); err != nil {
			return fmt.Errorf("failed to reactivate offer: %w", err)
		}
	}

	return nil
}

// AcquireOfferLock inserts an advisory lock document keyed by the offer ID.
// A duplicate key means another booking request holds the lock. The TTL
// index on expires_at reaps locks abandoned by crashed requests.
func (r *mongoBookingRepository) AcquireOfferLock(ctx context.Context, offerID string, ttl time.Duration) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	_, err := r.locks.InsertOne(ctx, model.OfferLock{
		ID:        offerID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire offer lock: %w", err)
	}

	return nil
}

// ReleaseOfferLock is best effort: an undeleted lock is reaped by TTL.
func (r *mongoBookingRepository) ReleaseOfferLock(ctx context.Context, offerID string) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.locks.DeleteOne(ctx, bson.M{"_id": offerID}); err != nil {
		r.cfg.Log.Warn("Failed to release offer lock, TTL will reap it",
			"offer_id", offerID,
			"error", err,
		)
	}
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
