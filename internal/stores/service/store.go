package service

import (
	"context"
	"errors"
	"sync"

	storeserrors "lastbite/internal/stores/errors"
	"lastbite/internal/stores/repository"
	"lastbite/internal/stores/validator"
	"lastbite/pkg/config"
	apperrors "lastbite/pkg/errors"
	"lastbite/pkg/model"
	"lastbite/pkg/sanitizer"
)

type StoreService interface {
	Create(ctx context.Context, actorID string, store *model.Store) error
	GetByID(ctx context.Context, id string) (*model.Store, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Store, int64, error)
	Update(ctx context.Context, actorID, id string, updates *model.StoreUpdate) error
	Delete(ctx context.Context, actorID, id string) error

	GetNearby(ctx context.Context, lng, lat float64, radiusMeters int, limit int) ([]*model.Store, error)
	GetStats(ctx context.Context, actorID, id string) (*model.StoreStats, error)
}

type storeService struct {
	repo      repository.StoreRepository
	validator *validator.StoreValidator
	cfg       *config.Config
}

func NewStoreService(
	repo repository.StoreRepository,
	validator *validator.StoreValidator,
	cfg *config.Config,
) StoreService {
	return &storeService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *storeService) Create(ctx context.Context, actorID string, store *model.Store) error {
	store.OwnerID = actorID
	store.AverageRating = 0
	store.RatingCount = 0
	s.sanitize(store)

	if err := s.validator.Validate(store); err != nil {
		s.cfg.Log.Warn("Store validation failed",
			"name", store.Name,
			"owner_id", store.OwnerID,
			"error", err,
		)
		return apperrors.Validation("Store validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.Create(ctx, store); err != nil {
		s.cfg.Log.Error("Failed to create store",
			"name", store.Name,
			"owner_id", store.OwnerID,
			"error", err,
		)
		return apperrors.Internal("Failed to create store", err)
	}

	s.cfg.Log.Info("Store created successfully",
		"id", store.ID,
		"name", store.Name,
		"owner_id", store.OwnerID,
		"city", store.City,
	)

	return nil
}

func (s *storeService) GetByID(ctx context.Context, id string) (*model.Store, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Store ID cannot be empty")
	}

	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storeserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Store", id)
		}
		if errors.Is(err, storeserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid store ID format")
		}
		s.cfg.Log.Error("Failed to get store by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve store", err)
	}

	return store, nil
}

func (s *storeService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Store, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var stores []*model.Store
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		count, err = s.repo.Count(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count stores", "error", err)
			errCount = apperrors.Internal("Failed to count stores", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		stores, err = s.repo.FindAll(ctx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get all stores",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve stores", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return stores, count, nil
}

func (s *storeService) Update(ctx context.Context, actorID, id string, updates *model.StoreUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Store ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != actorID {
		return apperrors.Forbidden("Only the store owner can update the store")
	}

	s.sanitizeUpdate(updates)
	merged := s.mergeStoreUpdates(existing, updates)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Store validation failed",
			"id", id,
			"name", merged.Name,
			"error", err,
		)
		return apperrors.Validation("Store validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if _, err := s.repo.Update(ctx, id, merged); err != nil {
		s.cfg.Log.Error("Failed to update store",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to update store", err)
	}
	s.cfg.Log.Info("Store updated successfully",
		"id", id,
		"name", merged.Name,
	)

	return nil
}

func (s *storeService) Delete(ctx context.Context, actorID, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Store ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != actorID {
		return apperrors.Forbidden("Only the store owner can delete the store")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, storeserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Store", id)
		}
		s.cfg.Log.Error("Failed to delete store",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to delete store", err)
	}

	s.cfg.Log.Info("Store deleted successfully", "id", id)

	return nil
}

func (s *storeService) GetNearby(ctx context.Context, lng, lat float64, radiusMeters int, limit int) ([]*model.Store, error) {
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return nil, apperrors.InvalidInput("Coordinates out of range: longitude must be [-180,180], latitude [-90,90]")
	}

	if radiusMeters <= 0 {
		radiusMeters = s.cfg.NearbyRadiusMeters
	}
	if radiusMeters > s.cfg.MaxRadiusMeters {
		radiusMeters = s.cfg.MaxRadiusMeters
	}
	limit = config.NormalizePaginationLimit(limit)

	stores, err := s.repo.FindNearby(ctx, lng, lat, radiusMeters, limit)
	if err != nil {
		s.cfg.Log.Error("Failed to find nearby stores",
			"lng", lng,
			"lat", lat,
			"radius_meters", radiusMeters,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve nearby stores", err)
	}

	s.cfg.Log.Debug("Nearby stores query completed",
		"lng", lng,
		"lat", lat,
		"radius_meters", radiusMeters,
		"results_count", len(stores),
	)

	return stores, nil
}

func (s *storeService) GetStats(ctx context.Context, actorID, id string) (*model.StoreStats, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Store ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != actorID {
		return nil, apperrors.Forbidden("Only the store owner can view store statistics")
	}

	stats, err := s.repo.Stats(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to aggregate store statistics",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve store statistics", err)
	}

	return stats, nil
}

func (s *storeService) sanitize(store *model.Store) {
	store.Name = sanitizer.NormalizeName(store.Name)
	store.Description = sanitizer.TrimAndNormalize(store.Description)
	store.Address = sanitizer.TrimAndNormalize(store.Address)
	store.City = sanitizer.NormalizeCity(store.City)
	store.Phone = sanitizer.NormalizePhone(store.Phone)
}

func (s *storeService) sanitizeUpdate(updates *model.StoreUpdate) {
	if updates.Name != "" {
		updates.Name = sanitizer.NormalizeName(updates.Name)
	}
	if updates.Description != nil {
		normalized := sanitizer.TrimAndNormalize(*updates.Description)
		updates.Description = &normalized
	}
	if updates.Address != "" {
		updates.Address = sanitizer.TrimAndNormalize(updates.Address)
	}
	if updates.City != "" {
		updates.City = sanitizer.NormalizeCity(updates.City)
	}
	if updates.Phone != "" {
		updates.Phone = sanitizer.NormalizePhone(updates.Phone)
		if updates.Phone == "" {
			updates.Phone = "invalid_result"
		}
	}
}

func (s *storeService) mergeStoreUpdates(existing *model.Store, updates *model.StoreUpdate) *model.Store {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Address != "" {
		merged.Address = updates.Address
	}
	if updates.City != "" {
		merged.City = updates.City
	}
	if updates.Phone != "" {
		merged.Phone = updates.Phone
	}
	if updates.Location != nil {
		merged.Location = *updates.Location
	}
	if updates.OpeningHours != nil {
		merged.OpeningHours = *updates.OpeningHours
	}

	merged.ID = existing.ID
	merged.OwnerID = existing.OwnerID
	merged.AverageRating = existing.AverageRating
	merged.RatingCount = existing.RatingCount
	merged.CreatedAt = existing.CreatedAt

	return &merged
}
