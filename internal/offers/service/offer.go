package service

import (
	"context"
	"errors"
	"sync"
	"time"

	offerserrors "lastbite/internal/offers/errors"
	"lastbite/internal/offers/repository"
	"lastbite/internal/offers/validator"
	"lastbite/pkg/config"
	apperrors "lastbite/pkg/errors"
	"lastbite/pkg/model"
	"lastbite/pkg/sanitizer"
)

type OfferService interface {
	Create(ctx context.Context, actorID string, offer *model.Offer) error
	GetByID(ctx context.Context, id string) (*model.Offer, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Offer, int64, error)
	GetByStore(ctx context.Context, storeID string, limit int, offset int64) ([]*model.Offer, int64, error)
	Update(ctx context.Context, actorID, id string, updates *model.OfferUpdate) error
	Delete(ctx context.Context, actorID, id string) error

	Search(ctx context.Context, city, category string, limit int, offset int64) ([]*model.Offer, int64, error)
}

type offerService struct {
	repo      repository.OfferRepository
	validator *validator.OfferValidator
	cfg       *config.Config
}

func NewOfferService(
	repo repository.OfferRepository,
	validator *validator.OfferValidator,
	cfg *config.Config,
) OfferService {
	return &offerService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *offerService) Create(ctx context.Context, actorID string, offer *model.Offer) error {
	offer.SellerID = actorID
	offer.AvailableQuantity = offer.Quantity
	offer.Status = model.OfferActive
	offer.AverageRating = 0
	offer.RatingCount = 0
	s.sanitize(offer)

	if err := s.validator.Validate(offer); err != nil {
		s.cfg.Log.Warn("Offer validation failed",
			"title", offer.Title,
			"store_id", offer.StoreID,
			"error", err,
		)
		return apperrors.Validation("Offer validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if !offer.PickupEnd.After(time.Now()) {
		return apperrors.Validation("Offer validation failed", map[string]any{
			"error": "pickup_end must be in the future",
		})
	}

	ownerID, err := s.repo.FindStoreOwner(ctx, offer.StoreID)
	if err != nil {
		if errors.Is(err, offerserrors.ErrStoreNotFound) {
			return apperrors.NotFoundWithID("Store", offer.StoreID)
		}
		if errors.Is(err, offerserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid store ID format")
		}
		s.cfg.Log.Error("Failed to look up store for offer",
			"store_id", offer.StoreID,
			"error", err,
		)
		return apperrors.Internal("Failed to create offer", err)
	}
	if ownerID != actorID {
		return apperrors.Forbidden("Only the store owner can create offers for it")
	}

	if err := s.repo.Create(ctx, offer); err != nil {
		s.cfg.Log.Error("Failed to create offer",
			"title", offer.Title,
			"store_id", offer.StoreID,
			"error", err,
		)
		return apperrors.Internal("Failed to create offer", err)
	}

	s.cfg.Log.Info("Offer created successfully",
		"id", offer.ID,
		"title", offer.Title,
		"store_id", offer.StoreID,
		"quantity", offer.Quantity,
	)

	return nil
}

func (s *offerService) GetByID(ctx context.Context, id string) (*model.Offer, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Offer ID cannot be empty")
	}

	offer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, offerserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Offer", id)
		}
		if errors.Is(err, offerserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid offer ID format")
		}
		s.cfg.Log.Error("Failed to get offer by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve offer", err)
	}

	return offer, nil
}

func (s *offerService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Offer, int64, error) {
	return s.list(ctx, repository.OfferFilter{}, limit, offset)
}

func (s *offerService) GetByStore(ctx context.Context, storeID string, limit int, offset int64) ([]*model.Offer, int64, error) {
	if storeID == "" {
		return nil, 0, apperrors.InvalidInput("Store ID cannot be empty")
	}
	return s.list(ctx, repository.OfferFilter{StoreID: storeID}, limit, offset)
}

func (s *offerService) Search(ctx context.Context, city, category string, limit int, offset int64) ([]*model.Offer, int64, error) {
	if city == "" && category == "" {
		return nil, 0, apperrors.InvalidInput("At least one of 'city' or 'category' must be provided")
	}

	filter := repository.OfferFilter{Status: model.OfferActive}

	if category != "" {
		filter.Category = sanitizer.NormalizeCategory(category)
	}

	if city != "" {
		storeIDs, err := s.repo.FindStoreIDsByCity(ctx, sanitizer.NormalizeCity(city))
		if err != nil {
			s.cfg.Log.Error("Failed to resolve stores for city",
				"city", city,
				"error", err,
			)
			return nil, 0, apperrors.Internal("Failed to search offers", err)
		}
		if len(storeIDs) == 0 {
			return []*model.Offer{}, 0, nil
		}
		filter.StoreIDs = storeIDs
	}

	return s.list(ctx, filter, limit, offset)
}

func (s *offerService) list(ctx context.Context, filter repository.OfferFilter, limit int, offset int64) ([]*model.Offer, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var offers []*model.Offer
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count offers", "error", err)
			errCount = apperrors.Internal("Failed to count offers", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		offers, err = s.repo.FindAll(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get offers",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve offers", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return offers, count, nil
}

func (s *offerService) Update(ctx context.Context, actorID, id string, updates *model.OfferUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Offer ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.SellerID != actorID {
		return apperrors.Forbidden("Only the seller can update the offer")
	}

	s.sanitizeUpdate(updates)
	merged := s.mergeOfferUpdates(existing, updates)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Offer validation failed",
			"id", id,
			"title", merged.Title,
			"error", err,
		)
		return apperrors.Validation("Offer validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if _, err := s.repo.Update(ctx, id, merged); err != nil {
		s.cfg.Log.Error("Failed to update offer",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to update offer", err)
	}
	s.cfg.Log.Info("Offer updated successfully",
		"id", id,
		"title", merged.Title,
	)

	return nil
}

func (s *offerService) Delete(ctx context.Context, actorID, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Offer ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.SellerID != actorID {
		return apperrors.Forbidden("Only the seller can delete the offer")
	}

	active, err := s.repo.CountActiveBookings(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to count active bookings for offer",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to delete offer", err)
	}
	if active > 0 {
		return apperrors.Conflict("Offer has active bookings and cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, offerserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Offer", id)
		}
		s.cfg.Log.Error("Failed to delete offer",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to delete offer", err)
	}

	s.cfg.Log.Info("Offer deleted successfully", "id", id)

	return nil
}

func (s *offerService) sanitize(offer *model.Offer) {
	offer.Title = sanitizer.NormalizeName(offer.Title)
	offer.Description = sanitizer.TrimAndNormalize(offer.Description)
	offer.Category = sanitizer.NormalizeCategory(offer.Category)
}

func (s *offerService) sanitizeUpdate(updates *model.OfferUpdate) {
	if updates.Title != "" {
		updates.Title = sanitizer.NormalizeName(updates.Title)
	}
	if updates.Description != nil {
		normalized := sanitizer.TrimAndNormalize(*updates.Description)
		updates.Description = &normalized
	}
	if updates.Category != "" {
		updates.Category = sanitizer.NormalizeCategory(updates.Category)
	}
}

// mergeOfferUpdates never copies stock fields from updates: quantity and
// available_quantity only move through the booking lifecycle.
func (s *offerService) mergeOfferUpdates(existing *model.Offer, updates *model.OfferUpdate) *model.Offer {
	merged := *existing

	if updates.Title != "" {
		merged.Title = updates.Title
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Category != "" {
		merged.Category = updates.Category
	}
	if updates.OriginalPrice != nil {
		merged.OriginalPrice = *updates.OriginalPrice
	}
	if updates.DiscountedPrice != nil {
		merged.DiscountedPrice = *updates.DiscountedPrice
	}
	if updates.PickupStart != nil {
		merged.PickupStart = *updates.PickupStart
	}
	if updates.PickupEnd != nil {
		merged.PickupEnd = *updates.PickupEnd
	}
	if updates.Status != "" {
		merged.Status = updates.Status
	}

	merged.ID = existing.ID
	merged.StoreID = existing.StoreID
	merged.SellerID = existing.SellerID
	merged.Quantity = existing.Quantity
	merged.AvailableQuantity = existing.AvailableQuantity
	merged.AverageRating = existing.AverageRating
	merged.RatingCount = existing.RatingCount
	merged.CreatedAt = existing.CreatedAt

	return &merged
}
