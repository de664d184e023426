package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	reviewserrors "lastbite/internal/reviews/errors"
	"lastbite/internal/reviews/validator"
	"lastbite/pkg/config"
	mongotx "lastbite/pkg/db/mongo"
	apperrors "lastbite/pkg/errors"
	"lastbite/pkg/events"
	"lastbite/pkg/kafka"
	"lastbite/pkg/logger"
	"lastbite/pkg/model"
)

type mockReviewRepository struct {
	createFunc       func(ctx context.Context, review *model.Review) error
	findByIDFunc     func(ctx context.Context, id string) (*model.Review, error)
	findBookingFunc  func(ctx context.Context, bookingID string) (*model.Booking, error)
	updateFunc       func(ctx context.Context, id string, review *model.Review) (*mongo.UpdateResult, error)
	deleteFunc       func(ctx context.Context, id string) error
	recalcStoreFunc  func(ctx context.Context, storeID string) (*model.RatingSummary, error)
	recalcOfferFunc  func(ctx context.Context, offerID string) (*model.RatingSummary, error)
	findByStoreFunc  func(ctx context.Context, storeID string, limit int, offset int64) ([]*model.Review, error)
	countByStoreFunc func(ctx context.Context, storeID string) (int64, error)

	recalcedStores []string
	recalcedOffers []string
}

func (m *mockReviewRepository) Create(ctx context.Context, review *model.Review) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, review)
	}
	review.ID = "507f1f77bcf86cd799439055"
	return nil
}

func (m *mockReviewRepository) FindByID(ctx context.Context, id string) (*model.Review, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, reviewserrors.ErrNotFound
}

func (m *mockReviewRepository) FindByStore(ctx context.Context, storeID string, limit int, offset int64) ([]*model.Review, error) {
	if m.findByStoreFunc != nil {
		return m.findByStoreFunc(ctx, storeID, limit, offset)
	}
	return []*model.Review{}, nil
}

func (m *mockReviewRepository) CountByStore(ctx context.Context, storeID string) (int64, error) {
	if m.countByStoreFunc != nil {
		return m.countByStoreFunc(ctx, storeID)
	}
	return 0, nil
}

func (m *mockReviewRepository) FindByOffer(ctx context.Context, offerID string, limit int, offset int64) ([]*model.Review, error) {
	return []*model.Review{}, nil
}

func (m *mockReviewRepository) CountByOffer(ctx context.Context, offerID string) (int64, error) {
	return 0, nil
}

func (m *mockReviewRepository) Update(ctx context.Context, id string, review *model.Review) (*mongo.UpdateResult, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, review)
	}
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockReviewRepository) FindBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	if m.findBookingFunc != nil {
		return m.findBookingFunc(ctx, bookingID)
	}
	return nil, reviewserrors.ErrBookingNotFound
}

func (m *mockReviewRepository) RecalculateStoreRating(ctx context.Context, storeID string) (*model.RatingSummary, error) {
	m.recalcedStores = append(m.recalcedStores, storeID)
	if m.recalcStoreFunc != nil {
		return m.recalcStoreFunc(ctx, storeID)
	}
	return &model.RatingSummary{}, nil
}

func (m *mockReviewRepository) RecalculateOfferRating(ctx context.Context, offerID string) (*model.RatingSummary, error) {
	m.recalcedOffers = append(m.recalcedOffers, offerID)
	if m.recalcOfferFunc != nil {
		return m.recalcOfferFunc(ctx, offerID)
	}
	return &model.RatingSummary{}, nil
}

func (m *mockReviewRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockPublisher struct {
	messages []kafka.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

const (
	bookingID = "507f1f77bcf86cd799439099"
	storeID   = "507f1f77bcf86cd799439022"
	offerID   = "507f1f77bcf86cd799439011"
	reviewID  = "507f1f77bcf86cd799439055"
)

func completedBooking() *model.Booking {
	return &model.Booking{
		ID:       bookingID,
		OfferID:  offerID,
		StoreID:  storeID,
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Quantity: 2,
		Status:   model.BookingCompleted,
	}
}

func newTestService(repo *mockReviewRepository, pub EventPublisher, cfg *config.Config) ReviewService {
	return NewReviewService(repo, validator.NewReviewValidator(cfg.Log), pub, cfg)
}

func TestCreate_DenormalizesAndRecalculates(t *testing.T) {
	cfg := testConfig()
	pub := &mockPublisher{}
	repo := &mockReviewRepository{
		findBookingFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return completedBooking(), nil
		},
	}
	svc := newTestService(repo, pub, cfg)

	review := &model.Review{BookingID: bookingID, Rating: 5, Comment: "  great  bread "}
	if err := svc.Create(context.Background(), "buyer-1", review); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if review.UserID != "buyer-1" {
		t.Errorf("expected user from the authenticated actor, got %q", review.UserID)
	}
	if review.StoreID != storeID || review.OfferID != offerID {
		t.Errorf("expected store/offer denormalized from the booking, got %q/%q", review.StoreID, review.OfferID)
	}
	if review.Comment != "great bread" {
		t.Errorf("expected normalized comment, got %q", review.Comment)
	}

	if len(repo.recalcedStores) != 1 || repo.recalcedStores[0] != storeID {
		t.Errorf("expected store rating recalculated, got %v", repo.recalcedStores)
	}
	if len(repo.recalcedOffers) != 1 || repo.recalcedOffers[0] != offerID {
		t.Errorf("expected offer rating recalculated, got %v", repo.recalcedOffers)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.messages))
	}
	if pub.messages[0].GetEventType() != events.EventReviewCreated {
		t.Errorf("expected event type %q, got %q", events.EventReviewCreated, pub.messages[0].GetEventType())
	}
	var evt events.ReviewEvent
	if err := pub.messages[0].DecodeValue(&evt); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if evt.SellerID != "seller-1" || evt.Rating != 5 {
		t.Errorf("unexpected event payload: %+v", evt)
	}
}

func TestCreate_Preconditions(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name     string
		actor    string
		booking  func() *model.Booking
		wantCode string
	}{
		{
			"not the buyer", "stranger", completedBooking, apperrors.CodeForbidden,
		},
		{
			"booking not completed", "buyer-1",
			func() *model.Booking { b := completedBooking(); b.Status = model.BookingConfirmed; return b },
			apperrors.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockReviewRepository{
				findBookingFunc: func(ctx context.Context, id string) (*model.Booking, error) {
					return tt.booking(), nil
				},
			}
			svc := newTestService(repo, &mockPublisher{}, cfg)

			err := svc.Create(context.Background(), tt.actor, &model.Review{BookingID: bookingID, Rating: 4})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if appErr := apperrors.AsAppError(err); appErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %v", tt.wantCode, err)
			}
			if len(repo.recalcedStores)+len(repo.recalcedOffers) != 0 {
				t.Error("ratings must not be recalculated when creation is refused")
			}
		})
	}
}

func TestCreate_DuplicateReview(t *testing.T) {
	cfg := testConfig()
	repo := &mockReviewRepository{
		findBookingFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return completedBooking(), nil
		},
		createFunc: func(ctx context.Context, review *model.Review) error {
			return reviewserrors.ErrDuplicate
		},
	}
	svc := newTestService(repo, &mockPublisher{}, cfg)

	err := svc.Create(context.Background(), "buyer-1", &model.Review{BookingID: bookingID, Rating: 4})
	if err == nil {
		t.Fatal("expected conflict error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict error, got %v", err)
	}
}

func TestCreate_RatingBounds(t *testing.T) {
	cfg := testConfig()
	repo := &mockReviewRepository{
		findBookingFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return completedBooking(), nil
		},
	}
	svc := newTestService(repo, &mockPublisher{}, cfg)

	for _, rating := range []int{0, 6, -1} {
		err := svc.Create(context.Background(), "buyer-1", &model.Review{BookingID: bookingID, Rating: rating})
		if err == nil {
			t.Fatalf("expected validation error for rating %d, got nil", rating)
		}
		if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
			t.Errorf("expected validation error for rating %d, got %v", rating, err)
		}
	}
}

func TestUpdate_AuthorOnlyAndRecalculates(t *testing.T) {
	cfg := testConfig()
	existing := &model.Review{
		ID: reviewID, BookingID: bookingID, UserID: "buyer-1",
		StoreID: storeID, OfferID: offerID, Rating: 3,
	}
	repo := &mockReviewRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Review, error) {
			cp := *existing
			return &cp, nil
		},
	}
	svc := newTestService(repo, &mockPublisher{}, cfg)

	err := svc.Update(context.Background(), "stranger", reviewID, &model.ReviewUpdate{})
	if err == nil {
		t.Fatal("expected forbidden error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected forbidden error, got %v", err)
	}

	newRating := 5
	if err := svc.Update(context.Background(), "buyer-1", reviewID, &model.ReviewUpdate{Rating: &newRating}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.recalcedStores) != 1 || len(repo.recalcedOffers) != 1 {
		t.Errorf("expected ratings recalculated after update, got stores=%v offers=%v",
			repo.recalcedStores, repo.recalcedOffers)
	}
}

func TestDelete_AuthorOnlyAndRecalculates(t *testing.T) {
	cfg := testConfig()
	existing := &model.Review{
		ID: reviewID, BookingID: bookingID, UserID: "buyer-1",
		StoreID: storeID, OfferID: offerID, Rating: 3,
	}
	deleted := false
	repo := &mockReviewRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Review, error) {
			cp := *existing
			return &cp, nil
		},
		deleteFunc: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(repo, &mockPublisher{}, cfg)

	if err := svc.Delete(context.Background(), "stranger", reviewID); err == nil {
		t.Fatal("expected forbidden error, got nil")
	}
	if deleted {
		t.Fatal("delete must not reach the repository for a non-author")
	}

	if err := svc.Delete(context.Background(), "buyer-1", reviewID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected repository Delete to be called")
	}
	if len(repo.recalcedStores) != 1 || len(repo.recalcedOffers) != 1 {
		t.Errorf("expected ratings recalculated after delete, got stores=%v offers=%v",
			repo.recalcedStores, repo.recalcedOffers)
	}
}

func TestGetByStore_Pagination(t *testing.T) {
	cfg := testConfig()
	var gotLimit int
	repo := &mockReviewRepository{
		findByStoreFunc: func(ctx context.Context, id string, limit int, offset int64) ([]*model.Review, error) {
			gotLimit = limit
			return []*model.Review{{ID: "r1"}}, nil
		},
		countByStoreFunc: func(ctx context.Context, id string) (int64, error) {
			return 1, nil
		},
	}
	svc := newTestService(repo, &mockPublisher{}, cfg)

	reviews, total, err := svc.GetByStore(context.Background(), storeID, 500, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(reviews) != 1 {
		t.Errorf("expected 1 review, got total=%d len=%d", total, len(reviews))
	}
	if gotLimit != 100 {
		t.Errorf("expected limit capped at 100, got %d", gotLimit)
	}
}
