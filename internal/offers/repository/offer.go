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

	offerserrors "lastbite/internal/offers/errors"
	"lastbite/pkg/config"
	mongotx "lastbite/pkg/db/mongo"
	"lastbite/pkg/model"
)

const (
	CollectionName         = "Offers"
	StoresCollectionName   = "Stores"
	BookingsCollectionName = "Bookings"
)

// OfferFilter narrows listing queries. Zero values mean "no constraint".
type OfferFilter struct {
	StoreID  string
	StoreIDs []string
	Category string
	Status   string
}

type OfferRepository interface {
	Create(ctx context.Context, offer *model.Offer) error
	FindByID(ctx context.Context, id string) (*model.Offer, error)
	FindAll(ctx context.Context, filter OfferFilter, limit int, offset int64) ([]*model.Offer, error)
	Count(ctx context.Context, filter OfferFilter) (int64, error)
	Update(ctx context.Context, id string, offer *model.Offer) (*mongo.UpdateResult, error)
	Delete(ctx context.Context, id string) error
	FindStoreIDsByCity(ctx context.Context, city string) ([]string, error)
	FindStoreOwner(ctx context.Context, storeID string) (string, error)
	CountActiveBookings(ctx context.Context, offerID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoOfferRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoOfferRepository(cfg *config.Config) OfferRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOfferRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoOfferRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (f OfferFilter) toBSON() bson.M {
	filter := bson.M{}
	if f.StoreID != "" {
		filter["store_id"] = f.StoreID
	}
	if len(f.StoreIDs) > 0 {
		filter["store_id"] = bson.M{"$in": f.StoreIDs}
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (r *mongoOfferRepository) Create(ctx context.Context, offer *model.Offer) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	offer.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, offer)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		offer.ID = oid.Hex()
	}
	return nil
}

func (r *mongoOfferRepository) FindByID(ctx context.Context, id string) (*model.Offer, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", offerserrors.ErrInvalidID, id)
	}

	var offer model.Offer
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, offerserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find offer: %w", err)
	}

	return &offer, nil
}

func (r *mongoOfferRepository) FindAll(ctx context.Context, filter OfferFilter, limit int, offset int64) ([]*model.Offer, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "pickup_end", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find offers: %w", err)
	}
	defer cursor.Close(ctx)

	var offers []*model.Offer
	if err = cursor.All(ctx, &offers); err != nil {
		return nil, fmt.Errorf("failed to decode offers: %w", err)
	}

	return offers, nil
}

func (r *mongoOfferRepository) Count(ctx context.Context, filter OfferFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter.toBSON())
	if err != nil {
		return 0, fmt.Errorf("failed to count offers: %w", err)
	}

	return count, nil
}

func (r *mongoOfferRepository) Update(ctx context.Context, id string, offer *model.Offer) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", offerserrors.ErrInvalidID, id)
	}

	// Quantity and available_quantity are owned by the booking
	// transactions and never written here.
	update := bson.M{
		"$set": bson.M{
			"title":            offer.Title,
			"description":      offer.Description,
			"category":         offer.Category,
			"original_price":   offer.OriginalPrice,
			"discounted_price": offer.DiscountedPrice,
			"pickup_start":     offer.PickupStart,
			"pickup_end":       offer.PickupEnd,
			"status":           offer.Status,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update offer: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, offerserrors.ErrNotFound
	}

	return result, nil
}

func (r *mongoOfferRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", offerserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete offer: %w", err)
	}
	if result.DeletedCount == 0 {
		return offerserrors.ErrNotFound
	}

	return nil
}

// FindStoreIDsByCity resolves a normalized city to store IDs so offer
// searches can filter by location without denormalizing city onto offers.
func (r *mongoOfferRepository) FindStoreIDsByCity(ctx context.Context, city string) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.db.Collection(StoresCollectionName).Find(ctx, bson.M{"city": city}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find stores by city: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode store ids: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID.Hex())
	}
	return ids, nil
}

// FindStoreOwner returns the owner of a store with a projected lookup so
// offer creation can verify the store exists and belongs to the actor.
func (r *mongoOfferRepository) FindStoreOwner(ctx context.Context, storeID string) (string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(storeID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", offerserrors.ErrInvalidID, storeID)
	}

	var doc struct {
		OwnerID string `bson:"owner_id"`
	}
	opts := options.FindOne().SetProjection(bson.M{"owner_id": 1})
	err = r.db.Collection(StoresCollectionName).FindOne(ctx, bson.M{"_id": objectID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", offerserrors.ErrStoreNotFound
		}
		return "", fmt.Errorf("failed to find store owner: %w", err)
	}

	return doc.OwnerID, nil
}

func (r *mongoOfferRepository) CountActiveBookings(ctx context.Context, offerID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.db.Collection(BookingsCollectionName).CountDocuments(ctx, bson.M{
		"offer_id": offerID,
		"status":   bson.M{"$in": []string{model.BookingPending, model.BookingConfirmed}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count active bookings: %w", err)
	}

	return count, nil
}

func (r *mongoOfferRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
