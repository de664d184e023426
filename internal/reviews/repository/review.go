package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	reviewserrors "lastbite/internal/reviews/errors"
	"lastbite/pkg/config"
	mongotx "lastbite/pkg/db/mongo"
	"lastbite/pkg/model"
)

const (
	CollectionName         = "Reviews"
	BookingsCollectionName = "Bookings"
	StoresCollectionName   = "Stores"
	OffersCollectionName   = "Offers"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	FindByID(ctx context.Context, id string) (*model.Review, error)
	FindByStore(ctx context.Context, storeID string, limit int, offset int64) ([]*model.Review, error)
	CountByStore(ctx context.Context, storeID string) (int64, error)
	FindByOffer(ctx context.Context, offerID string, limit int, offset int64) ([]*model.Review, error)
	CountByOffer(ctx context.Context, offerID string) (int64, error)
	Update(ctx context.Context, id string, review *model.Review) (*mongo.UpdateResult, error)
	Delete(ctx context.Context, id string) error

	FindBooking(ctx context.Context, bookingID string) (*model.Booking, error)
	RecalculateStoreRating(ctx context.Context, storeID string) (*model.RatingSummary, error)
	RecalculateOfferRating(ctx context.Context, offerID string) (*model.RatingSummary, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoReviewRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReviewRepository(cfg *config.Config) ReviewRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReviewRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoReviewRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoReviewRepository) Create(ctx context.Context, review *model.Review) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	review.CreatedAt = now
	review.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, review)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reviewserrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		review.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReviewRepository) FindByID(ctx context.Context, id string) (*model.Review, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reviewserrors.ErrInvalidID, id)
	}

	var review model.Review
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&review)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reviewserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find review: %w", err)
	}

	return &review, nil
}

func (r *mongoReviewRepository) FindByStore(ctx context.Context, storeID string, limit int, offset int64) ([]*model.Review, error) {
	return r.findBy(ctx, bson.M{"store_id": storeID}, limit, offset)
}

func (r *mongoReviewRepository) CountByStore(ctx context.Context, storeID string) (int64, error) {
	return r.countBy(ctx, bson.M{"store_id": storeID})
}

func (r *mongoReviewRepository) FindByOffer(ctx context.Context, offerID string, limit int, offset int64) ([]*model.Review, error) {
	return r.findBy(ctx, bson.M{"offer_id": offerID}, limit, offset)
}

func (r *mongoReviewRepository) CountByOffer(ctx context.Context, offerID string) (int64, error) {
	return r.countBy(ctx, bson.M{"offer_id": offerID})
}

func (r *mongoReviewRepository) findBy(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Review, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var reviews []*model.Review
	if err = cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}

	return reviews, nil
}

func (r *mongoReviewRepository) countBy(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	return count, nil
}

func (r *mongoReviewRepository) Update(ctx context.Context, id string, review *model.Review) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reviewserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"rating":     review.Rating,
			"comment":    review.Comment,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, reviewserrors.ErrNotFound
	}

	return result, nil
}

func (r *mongoReviewRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reviewserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if result.DeletedCount == 0 {
		return reviewserrors.ErrNotFound
	}

	return nil
}

func (r *mongoReviewRepository) FindBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(bookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reviewserrors.ErrBookingNotFound, bookingID)
	}

	var booking model.Booking
	err = r.db.Collection(BookingsCollectionName).FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reviewserrors.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

// RecalculateStoreRating recomputes the store's average and count from
// the Reviews collection with a $group stage and writes the result back.
func (r *mongoReviewRepository) RecalculateStoreRating(ctx context.Context, storeID string) (*model.RatingSummary, error) {
	summary, err := r.aggregateRating(ctx, "store_id", storeID)
	if err != nil {
		return nil, err
	}
	if err := r.writeRating(ctx, StoresCollectionName, storeID, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *mongoReviewRepository) RecalculateOfferRating(ctx context.Context, offerID string) (*model.RatingSummary, error) {
	summary, err := r.aggregateRating(ctx, "offer_id", offerID)
	if err != nil {
		return nil, err
	}
	if err := r.writeRating(ctx, OffersCollectionName, offerID, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *mongoReviewRepository) aggregateRating(ctx context.Context, field, id string) (*model.RatingSummary, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{field: id}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}

	var summaries []model.RatingSummary
	if err = cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode rating summary: %w", err)
	}

	// No reviews left: reset to zero.
	if len(summaries) == 0 {
		return &model.RatingSummary{}, nil
	}

	summary := summaries[0]
	summary.Average = math.Round(summary.Average*100) / 100
	return &summary, nil
}

func (r *mongoReviewRepository) writeRating(ctx context.Context, collection, id string, summary *model.RatingSummary) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid rating target id %q: %w", id, err)
	}

	_, err = r.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			"average_rating": summary.Average,
			"rating_count":   summary.Count,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to write rating back to %s: %w", collection, err)
	}

	return nil
}

func (r *mongoReviewRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
