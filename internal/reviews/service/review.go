package service

import (
	"context"
	"errors"
	"sync"
	"time"

	reviewserrors "lastbite/internal/reviews/errors"
	"lastbite/internal/reviews/repository"
	"lastbite/internal/reviews/validator"
	"lastbite/pkg/config"
	apperrors "lastbite/pkg/errors"
	"lastbite/pkg/events"
	"lastbite/pkg/kafka"
	"lastbite/pkg/middleware"
	"lastbite/pkg/model"
	"lastbite/pkg/sanitizer"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type ReviewService interface {
	Create(ctx context.Context, actorID string, review *model.Review) error
	GetByID(ctx context.Context, id string) (*model.Review, error)
	GetByStore(ctx context.Context, storeID string, limit int, offset int64) ([]*model.Review, int64, error)
	GetByOffer(ctx context.Context, offerID string, limit int, offset int64) ([]*model.Review, int64, error)
	Update(ctx context.Context, actorID, id string, updates *model.ReviewUpdate) error
	Delete(ctx context.Context, actorID, id string) error
}

type reviewService struct {
	repo      repository.ReviewRepository
	validator *validator.ReviewValidator
	publisher EventPublisher
	cfg       *config.Config
}

func NewReviewService(
	repo repository.ReviewRepository,
	validator *validator.ReviewValidator,
	publisher EventPublisher,
	cfg *config.Config,
) ReviewService {
	return &reviewService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create accepts a review only from the buyer of a completed booking.
// Store and offer ids are denormalized from the booking so the rating
// recalculation can target both without another lookup.
func (s *reviewService) Create(ctx context.Context, actorID string, review *model.Review) error {
	if review.BookingID == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindBooking(ctx, review.BookingID)
	if err != nil {
		if errors.Is(err, reviewserrors.ErrBookingNotFound) {
			return apperrors.NotFoundWithID("Booking", review.BookingID)
		}
		s.cfg.Log.Error("Failed to load booking for review",
			"booking_id", review.BookingID,
			"error", err,
		)
		return apperrors.Internal("Failed to create review", err)
	}

	if booking.BuyerID != actorID {
		return apperrors.Forbidden("Only the buyer of the booking can review it")
	}
	if booking.Status != model.BookingCompleted {
		return apperrors.Conflict("Only completed bookings can be reviewed")
	}

	review.UserID = actorID
	review.StoreID = booking.StoreID
	review.OfferID = booking.OfferID
	review.Comment = sanitizer.TrimAndNormalize(review.Comment)

	if err := s.validator.Validate(review); err != nil {
		s.cfg.Log.Warn("Review validation failed",
			"booking_id", review.BookingID,
			"error", err,
		)
		return apperrors.Validation("Review validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.Create(ctx, review); err != nil {
		if errors.Is(err, reviewserrors.ErrDuplicate) {
			return apperrors.Conflict("Booking has already been reviewed")
		}
		s.cfg.Log.Error("Failed to create review",
			"booking_id", review.BookingID,
			"error", err,
		)
		return apperrors.Internal("Failed to create review", err)
	}

	s.cfg.Log.Info("Review created successfully",
		"id", review.ID,
		"booking_id", review.BookingID,
		"store_id", review.StoreID,
		"rating", review.Rating,
	)

	s.recalculateRatings(ctx, review.StoreID, review.OfferID)
	s.publishReviewEvent(ctx, review, booking.SellerID)

	return nil
}

func (s *reviewService) GetByID(ctx context.Context, id string) (*model.Review, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Review ID cannot be empty")
	}

	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reviewserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Review", id)
		}
		if errors.Is(err, reviewserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid review ID format")
		}
		s.cfg.Log.Error("Failed to get review by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve review", err)
	}

	return review, nil
}

func (s *reviewService) GetByStore(ctx context.Context, storeID string, limit int, offset int64) ([]*model.Review, int64, error) {
	if storeID == "" {
		return nil, 0, apperrors.InvalidInput("Store ID cannot be empty")
	}
	return s.list(ctx, limit, offset,
		func(ctx context.Context, limit int, offset int64) ([]*model.Review, error) {
			return s.repo.FindByStore(ctx, storeID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByStore(ctx, storeID)
		})
}

func (s *reviewService) GetByOffer(ctx context.Context, offerID string, limit int, offset int64) ([]*model.Review, int64, error) {
	if offerID == "" {
		return nil, 0, apperrors.InvalidInput("Offer ID cannot be empty")
	}
	return s.list(ctx, limit, offset,
		func(ctx context.Context, limit int, offset int64) ([]*model.Review, error) {
			return s.repo.FindByOffer(ctx, offerID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByOffer(ctx, offerID)
		})
}

func (s *reviewService) list(
	ctx context.Context,
	limit int,
	offset int64,
	find func(ctx context.Context, limit int, offset int64) ([]*model.Review, error),
	count func(ctx context.Context) (int64, error),
) ([]*model.Review, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var total int64
	var reviews []*model.Review
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		total, err = count(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count reviews", "error", err)
			errCount = apperrors.Internal("Failed to count reviews", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		reviews, err = find(ctx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get reviews",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve reviews", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reviews, total, nil
}

func (s *reviewService) Update(ctx context.Context, actorID, id string, updates *model.ReviewUpdate) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != actorID {
		return apperrors.Forbidden("Only the author can update the review")
	}

	merged := *existing
	if updates.Rating != nil {
		merged.Rating = *updates.Rating
	}
	if updates.Comment != nil {
		merged.Comment = sanitizer.TrimAndNormalize(*updates.Comment)
	}

	if err := s.validator.Validate(&merged); err != nil {
		s.cfg.Log.Warn("Review validation failed",
			"id", id,
			"error", err,
		)
		return apperrors.Validation("Review validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if _, err := s.repo.Update(ctx, id, &merged); err != nil {
		s.cfg.Log.Error("Failed to update review",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to update review", err)
	}

	s.cfg.Log.Info("Review updated successfully", "id", id)
	s.recalculateRatings(ctx, existing.StoreID, existing.OfferID)

	return nil
}

func (s *reviewService) Delete(ctx context.Context, actorID, id string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != actorID {
		return apperrors.Forbidden("Only the author can delete the review")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, reviewserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Review", id)
		}
		s.cfg.Log.Error("Failed to delete review",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to delete review", err)
	}

	s.cfg.Log.Info("Review deleted successfully", "id", id)
	s.recalculateRatings(ctx, existing.StoreID, existing.OfferID)

	return nil
}

// recalculateRatings cascades the aggregation to both rating targets. The
// review write has already committed, so failures are logged rather than
// surfaced; the next review on the same target repairs the numbers.
func (s *reviewService) recalculateRatings(ctx context.Context, storeID, offerID string) {
	if storeID != "" {
		if _, err := s.repo.RecalculateStoreRating(ctx, storeID); err != nil {
			s.cfg.Log.Error("Failed to recalculate store rating",
				"store_id", storeID,
				"error", err,
			)
		}
	}
	if offerID != "" {
		if _, err := s.repo.RecalculateOfferRating(ctx, offerID); err != nil {
			s.cfg.Log.Error("Failed to recalculate offer rating",
				"offer_id", offerID,
				"error", err,
			)
		}
	}
}

func (s *reviewService) publishReviewEvent(ctx context.Context, review *model.Review, sellerID string) {
	if s.publisher == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(review.StoreID).
		WithValue(events.ReviewEvent{
			ReviewID:   review.ID,
			BookingID:  review.BookingID,
			StoreID:    review.StoreID,
			OfferID:    review.OfferID,
			UserID:     review.UserID,
			SellerID:   sellerID,
			Rating:     review.Rating,
			OccurredAt: time.Now().UTC(),
		}).
		WithEventType(events.EventReviewCreated).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithSource("reviews").
		Build()

	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to publish review event",
			"review_id", review.ID,
			"error", err,
		)
	}
}
