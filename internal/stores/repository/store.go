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

	storeserrors "lastbite/internal/stores/errors"
	"lastbite/pkg/config"
	mongotx "lastbite/pkg/db/mongo"
	"lastbite/pkg/model"
)

const (
	CollectionName         = "Stores"
	BookingsCollectionName = "Bookings"
	OffersCollectionName   = "Offers"
)

type StoreRepository interface {
	Create(ctx context.Context, store *model.Store) error
	FindByID(ctx context.Context, id string) (*model.Store, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Store, error)
	Update(ctx context.Context, id string, store *model.Store) (*mongo.UpdateResult, error)
	Delete(ctx context.Context, id string) error
	FindNearby(ctx context.Context, lng, lat float64, maxMeters int, limit int) ([]*model.Store, error)
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context, storeID string) (*model.StoreStats, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoStoreRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoStoreRepository(cfg *config.Config) StoreRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStoreRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a repository timeout unless the call
// is already inside a transaction, where wrapping the SessionContext
// would break transaction semantics.
func (r *mongoStoreRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoStoreRepository) Create(ctx context.Context, store *model.Store) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	store.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		store.ID = oid.Hex()
	}
	return nil
}

func (r *mongoStoreRepository) FindByID(ctx context.Context, id string) (*model.Store, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", storeserrors.ErrInvalidID, id)
	}

	var store model.Store
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&store)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storeserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find store: %w", err)
	}

	return &store, nil
}

func (r *mongoStoreRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Store, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find stores: %w", err)
	}
	defer cursor.Close(ctx)

	var stores []*model.Store
	if err = cursor.All(ctx, &stores); err != nil {
		return nil, fmt.Errorf("failed to decode stores: %w", err)
	}

	return stores, nil
}

func (r *mongoStoreRepository) Update(ctx context.Context, id string, store *model.Store) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", storeserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"name":          store.Name,
			"description":   store.Description,
			"address":       store.Address,
			"city":          store.City,
			"phone":         store.Phone,
			"location":      store.Location,
			"opening_hours": store.OpeningHours,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update store: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, storeserrors.ErrNotFound
	}

	return result, nil
}

func (r *mongoStoreRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", storeserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	if result.DeletedCount == 0 {
		return storeserrors.ErrNotFound
	}

	return nil
}

// FindNearby runs a $nearSphere query against the 2dsphere index on
// location. Results come back ordered by distance, so offset pagination
// is not offered here.
func (r *mongoStoreRepository) FindNearby(ctx context.Context, lng, lat float64, maxMeters int, limit int) ([]*model.Store, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": maxMeters,
			},
		},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby stores: %w", err)
	}
	defer cursor.Close(ctx)

	var stores []*model.Store
	if err = cursor.All(ctx, &stores); err != nil {
		return nil, fmt.Errorf("failed to decode nearby stores: %w", err)
	}

	return stores, nil
}

func (r *mongoStoreRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count stores: %w", err)
	}

	return count, nil
}

// Stats aggregates booking counts per status, completed revenue and
// quantity saved for one store, plus its active offer count and rating.
func (r *mongoStoreRepository) Stats(ctx context.Context, storeID string) (*model.StoreStats, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	store, err := r.FindByID(ctx, storeID)
	if err != nil {
		return nil, err
	}

	stats := &model.StoreStats{
		StoreID:          storeID,
		BookingsByStatus: make(map[string]int64),
		AverageRating:    store.AverageRating,
		RatingCount:      store.RatingCount,
	}

	statusPipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"store_id": storeID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.db.Collection(BookingsCollectionName).Aggregate(ctx, statusPipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate booking statuses: %w", err)
	}
	var buckets []model.StatusCount
	if err = cursor.All(ctx, &buckets); err != nil {
		return nil, fmt.Errorf("failed to decode booking statuses: %w", err)
	}
	for _, b := range buckets {
		stats.BookingsByStatus[b.Status] = b.Count
		stats.TotalBookings += b.Count
	}

	completedPipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"store_id": storeID,
			"status":   model.BookingCompleted,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":               nil,
			"completed_revenue": bson.M{"$sum": "$total_price"},
			"quantity_saved":    bson.M{"$sum": "$quantity"},
		}}},
	}

	cursor, err = r.db.Collection(BookingsCollectionName).Aggregate(ctx, completedPipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate completed bookings: %w", err)
	}
	var totals []struct {
		CompletedRevenue float64 `bson:"completed_revenue"`
		QuantitySaved    int64   `bson:"quantity_saved"`
	}
	if err = cursor.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("failed to decode completed totals: %w", err)
	}
	if len(totals) > 0 {
		stats.CompletedRevenue = totals[0].CompletedRevenue
		stats.QuantitySaved = totals[0].QuantitySaved
	}

	activeOffers, err := r.db.Collection(OffersCollectionName).CountDocuments(ctx, bson.M{
		"store_id": storeID,
		"status":   model.OfferActive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count active offers: %w", err)
	}
	stats.ActiveOffers = activeOffers

	return stats, nil
}

func (r *mongoStoreRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
