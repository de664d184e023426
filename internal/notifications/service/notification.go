package service

import (
	"context"
	"errors"
	"sync"

	notificationserrors "lastbite/internal/notifications/errors"
	"lastbite/internal/notifications/repository"
	"lastbite/internal/notifications/validator"
	"lastbite/pkg/config"
	apperrors "lastbite/pkg/errors"
	"lastbite/pkg/model"
)

type NotificationService interface {
	// Record persists the fan-out batch for one consumed event.
	Record(ctx context.Context, notifications []*model.Notification) error

	GetAll(ctx context.Context, actorID string, unreadOnly bool, limit int, offset int64) ([]*model.Notification, int64, error)
	MarkRead(ctx context.Context, actorID, id string) error
	MarkAllRead(ctx context.Context, actorID string) (int64, error)
	Delete(ctx context.Context, actorID, id string) error
}

type notificationService struct {
	repo      repository.NotificationRepository
	validator *validator.NotificationValidator
	cfg       *config.Config
}

func NewNotificationService(
	repo repository.NotificationRepository,
	validator *validator.NotificationValidator,
	cfg *config.Config,
) NotificationService {
	return &notificationService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *notificationService) Record(ctx context.Context, notifications []*model.Notification) error {
	for _, n := range notifications {
		if err := s.validator.Validate(n); err != nil {
			s.cfg.Log.Warn("Notification validation failed",
				"user_id", n.UserID,
				"kind", n.Kind,
				"error", err,
			)
			return apperrors.Validation("Notification validation failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	if err := s.repo.CreateMany(ctx, notifications); err != nil {
		s.cfg.Log.Error("Failed to record notifications",
			"count", len(notifications),
			"error", err,
		)
		return apperrors.Internal("Failed to record notifications", err)
	}

	return nil
}

func (s *notificationService) GetAll(ctx context.Context, actorID string, unreadOnly bool, limit int, offset int64) ([]*model.Notification, int64, error) {
	if actorID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)
	filter := repository.NotificationFilter{UserID: actorID, UnreadOnly: unreadOnly}

	var total int64
	var notifications []*model.Notification
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		total, err = s.repo.CountByUser(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count notifications", "user_id", actorID, "error", err)
			errCount = apperrors.Internal("Failed to count notifications", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		notifications, err = s.repo.FindByUser(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get notifications",
				"user_id", actorID,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve notifications", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return notifications, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, actorID, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Notification ID cannot be empty")
	}

	if err := s.repo.MarkRead(ctx, actorID, id); err != nil {
		switch {
		case errors.Is(err, notificationserrors.ErrNotFound):
			return apperrors.NotFoundWithID("Notification", id)
		case errors.Is(err, notificationserrors.ErrInvalidID):
			return apperrors.InvalidInput("Invalid notification ID format")
		}
		s.cfg.Log.Error("Failed to mark notification read",
			"id", id,
			"user_id", actorID,
			"error", err,
		)
		return apperrors.Internal("Failed to mark notification read", err)
	}

	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, actorID string) (int64, error) {
	if actorID == "" {
		return 0, apperrors.InvalidInput("User ID cannot be empty")
	}

	count, err := s.repo.MarkAllRead(ctx, actorID)
	if err != nil {
		s.cfg.Log.Error("Failed to mark notifications read", "user_id", actorID, "error", err)
		return 0, apperrors.Internal("Failed to mark notifications read", err)
	}

	s.cfg.Log.Info("Notifications marked read", "user_id", actorID, "count", count)
	return count, nil
}

func (s *notificationService) Delete(ctx context.Context, actorID, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Notification ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, actorID, id); err != nil {
		switch {
		case errors.Is(err, notificationserrors.ErrNotFound):
			return apperrors.NotFoundWithID("Notification", id)
		case errors.Is(err, notificationserrors.ErrInvalidID):
			return apperrors.InvalidInput("Invalid notification ID format")
		}
		s.cfg.Log.Error("Failed to delete notification",
			"id", id,
			"user_id", actorID,
			"error", err,
		)
		return apperrors.Internal("Failed to delete notification", err)
	}

	s.cfg.Log.Info("Notification deleted", "id", id, "user_id", actorID)
	return nil
}
