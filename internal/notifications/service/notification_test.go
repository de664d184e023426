package service

import (
	"context"
	"testing"
	"time"

	notificationserrors "lastbite/internal/notifications/errors"
	"lastbite/internal/notifications/repository"
	"lastbite/internal/notifications/validator"
	"lastbite/pkg/config"
	apperrors "lastbite/pkg/errors"
	"lastbite/pkg/logger"
	"lastbite/pkg/model"
)

type mockNotificationRepository struct {
	createManyFunc  func(ctx context.Context, notifications []*model.Notification) error
	findByUserFunc  func(ctx context.Context, filter repository.NotificationFilter, limit int, offset int64) ([]*model.Notification, error)
	countByUserFunc func(ctx context.Context, filter repository.NotificationFilter) (int64, error)
	markReadFunc    func(ctx context.Context, userID, id string) error
	markAllReadFunc func(ctx context.Context, userID string) (int64, error)
	deleteFunc      func(ctx context.Context, userID, id string) error
}

func (m *mockNotificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	return nil
}

func (m *mockNotificationRepository) CreateMany(ctx context.Context, notifications []*model.Notification) error {
	if m.createManyFunc != nil {
		return m.createManyFunc(ctx, notifications)
	}
	return nil
}

func (m *mockNotificationRepository) FindByUser(ctx context.Context, filter repository.NotificationFilter, limit int, offset int64) ([]*model.Notification, error) {
	if m.findByUserFunc != nil {
		return m.findByUserFunc(ctx, filter, limit, offset)
	}
	return []*model.Notification{}, nil
}

func (m *mockNotificationRepository) CountByUser(ctx context.Context, filter repository.NotificationFilter) (int64, error) {
	if m.countByUserFunc != nil {
		return m.countByUserFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockNotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, userID, id)
	}
	return nil
}

func (m *mockNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if m.markAllReadFunc != nil {
		return m.markAllReadFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockNotificationRepository) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID, id)
	}
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

func newTestService(repo repository.NotificationRepository, cfg *config.Config) NotificationService {
	return NewNotificationService(repo, validator.NewNotificationValidator(cfg.Log), cfg)
}

func validNotification() *model.Notification {
	return &model.Notification{
		UserID: "buyer-1",
		Kind:   model.NotifyBookingConfirmed,
		Title:  "Booking confirmed",
		Body:   "The store confirmed your booking.",
	}
}

func TestRecord_ValidatesEveryEntry(t *testing.T) {
	cfg := testConfig()
	inserted := false
	repo := &mockNotificationRepository{
		createManyFunc: func(ctx context.Context, notifications []*model.Notification) error {
			inserted = true
			return nil
		},
	}
	svc := newTestService(repo, cfg)

	bad := validNotification()
	bad.Kind = "carrier_pigeon"

	err := svc.Record(context.Background(), []*model.Notification{validNotification(), bad})
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	if inserted {
		t.Error("batch with an invalid entry must not reach the repository")
	}

	if err := svc.Record(context.Background(), []*model.Notification{validNotification()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inserted {
		t.Error("expected valid batch to be inserted")
	}
}

func TestGetAll_FilterAndPagination(t *testing.T) {
	cfg := testConfig()
	var gotFilter repository.NotificationFilter
	var gotLimit int
	repo := &mockNotificationRepository{
		findByUserFunc: func(ctx context.Context, filter repository.NotificationFilter, limit int, offset int64) ([]*model.Notification, error) {
			gotFilter = filter
			gotLimit = limit
			return []*model.Notification{{ID: "n1"}}, nil
		},
		countByUserFunc: func(ctx context.Context, filter repository.NotificationFilter) (int64, error) {
			return 1, nil
		},
	}
	svc := newTestService(repo, cfg)

	notifications, total, err := svc.GetAll(context.Background(), "buyer-1", true, 0, -5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(notifications) != 1 {
		t.Errorf("expected 1 notification, got total=%d len=%d", total, len(notifications))
	}
	if gotFilter.UserID != "buyer-1" || !gotFilter.UnreadOnly {
		t.Errorf("expected unread filter scoped to the user, got %+v", gotFilter)
	}
	if gotLimit != 10 {
		t.Errorf("expected default limit 10, got %d", gotLimit)
	}
}

func TestGetAll_RequiresUser(t *testing.T) {
	svc := newTestService(&mockNotificationRepository{}, testConfig())

	_, _, err := svc.GetAll(context.Background(), "", false, 10, 0)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

func TestMarkRead_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{"unknown id", notificationserrors.ErrNotFound, apperrors.CodeNotFound},
		{"malformed id", notificationserrors.ErrInvalidID, apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockNotificationRepository{
				markReadFunc: func(ctx context.Context, userID, id string) error {
					return tt.repoErr
				},
			}
			svc := newTestService(repo, testConfig())

			err := svc.MarkRead(context.Background(), "buyer-1", "507f1f77bcf86cd799439077")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if appErr := apperrors.AsAppError(err); appErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestMarkAllRead_ReturnsCount(t *testing.T) {
	repo := &mockNotificationRepository{
		markAllReadFunc: func(ctx context.Context, userID string) (int64, error) {
			if userID != "buyer-1" {
				t.Errorf("expected user buyer-1, got %s", userID)
			}
			return 3, nil
		},
	}
	svc := newTestService(repo, testConfig())

	count, err := svc.MarkAllRead(context.Background(), "buyer-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
}

func TestDelete_ScopedToUser(t *testing.T) {
	var gotUser string
	repo := &mockNotificationRepository{
		deleteFunc: func(ctx context.Context, userID, id string) error {
			gotUser = userID
			return nil
		},
	}
	svc := newTestService(repo, testConfig())

	if err := svc.Delete(context.Background(), "buyer-1", "507f1f77bcf86cd799439077"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUser != "buyer-1" {
		t.Errorf("expected delete scoped to buyer-1, got %q", gotUser)
	}
}
