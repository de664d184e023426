package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	storeserrors "lastbite/internal/stores/errors"
	"lastbite/internal/stores/validator"
	"lastbite/pkg/config"
	mongotx "lastbite/pkg/db/mongo"
	apperrors "lastbite/pkg/errors"
	"lastbite/pkg/logger"
	"lastbite/pkg/model"
)

type mockStoreRepository struct {
	createFunc     func(ctx context.Context, store *model.Store) error
	findByIDFunc   func(ctx context.Context, id string) (*model.Store, error)
	findAllFunc    func(ctx context.Context, limit int, offset int64) ([]*model.Store, error)
	findNearbyFunc func(ctx context.Context, lng, lat float64, maxMeters, limit int) ([]*model.Store, error)
	countFunc      func(ctx context.Context) (int64, error)
	statsFunc      func(ctx context.Context, storeID string) (*model.StoreStats, error)
	deleteFunc     func(ctx context.Context, id string) error
}

func (m *mockStoreRepository) Create(ctx context.Context, store *model.Store) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, store)
	}
	return nil
}

func (m *mockStoreRepository) FindByID(ctx context.Context, id string) (*model.Store, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, storeserrors.ErrNotFound
}

func (m *mockStoreRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Store, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Store{}, nil
}

func (m *mockStoreRepository) Update(ctx context.Context, id string, store *model.Store) (*mongo.UpdateResult, error) {
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (m *mockStoreRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockStoreRepository) FindNearby(ctx context.Context, lng, lat float64, maxMeters, limit int) ([]*model.Store, error) {
	if m.findNearbyFunc != nil {
		return m.findNearbyFunc(ctx, lng, lat, maxMeters, limit)
	}
	return []*model.Store{}, nil
}

func (m *mockStoreRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockStoreRepository) Stats(ctx context.Context, storeID string) (*model.StoreStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx, storeID)
	}
	return &model.StoreStats{StoreID: storeID}, nil
}

func (m *mockStoreRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		NearbyRadiusMeters: 5000,
		MaxRadiusMeters:    50000,
	}
}

func validStore() *model.Store {
	return &model.Store{
		OwnerID: "user-1",
		Name:    "corner bakery",
		Address: "12 Main St",
		City:    "Lisbon",
		Phone:   "+14155550123",
		Location: model.GeoPoint{
			Type:        "Point",
			Coordinates: []float64{-9.139, 38.722},
		},
	}
}

func newTestService(repo *mockStoreRepository, cfg *config.Config) StoreService {
	return NewStoreService(repo, validator.NewStoreValidator(cfg.Log), cfg)
}

func TestCreate_SetsOwnerFromActor(t *testing.T) {
	cfg := testConfig()
	var created *model.Store
	repo := &mockStoreRepository{
		createFunc: func(ctx context.Context, store *model.Store) error {
			created = store
			return nil
		},
	}
	svc := newTestService(repo, cfg)

	store := validStore()
	store.OwnerID = "someone-else"
	store.AverageRating = 4.9
	store.RatingCount = 12

	if err := svc.Create(context.Background(), "actor-7", store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected repository Create to be called")
	}
	if created.OwnerID != "actor-7" {
		t.Errorf("expected owner_id from the authenticated actor, got %q", created.OwnerID)
	}
	if created.AverageRating != 0 || created.RatingCount != 0 {
		t.Errorf("expected rating fields reset on create, got %f/%d", created.AverageRating, created.RatingCount)
	}
}

func TestCreate_ValidationFailure(t *testing.T) {
	cfg := testConfig()
	svc := newTestService(&mockStoreRepository{}, cfg)

	tests := []struct {
		name   string
		mutate func(*model.Store)
	}{
		{"missing name", func(s *model.Store) { s.Name = "" }},
		{"bad phone", func(s *model.Store) { s.Phone = "not-a-phone" }},
		{"longitude out of range", func(s *model.Store) { s.Location.Coordinates = []float64{181, 0} }},
		{"latitude out of range", func(s *model.Store) { s.Location.Coordinates = []float64{0, 91} }},
		{"wrong geo type", func(s *model.Store) { s.Location.Type = "Polygon" }},
		{"bad opening hours day", func(s *model.Store) { s.OpeningHours = map[string]string{"funday": "08:00-20:00"} }},
		{"bad opening hours window", func(s *model.Store) { s.OpeningHours = map[string]string{"monday": "8am-8pm"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := validStore()
			tt.mutate(store)

			err := svc.Create(context.Background(), "actor-7", store)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGetAll_ParallelCountAndFind(t *testing.T) {
	cfg := testConfig()
	repo := &mockStoreRepository{
		countFunc: func(ctx context.Context) (int64, error) {
			time.Sleep(10 * time.Millisecond)
			return 42, nil
		},
		findAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Store, error) {
			time.Sleep(10 * time.Millisecond)
			return []*model.Store{{ID: "1"}, {ID: "2"}}, nil
		},
	}
	svc := newTestService(repo, cfg)

	stores, count, err := svc.GetAll(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("expected count 42, got %d", count)
	}
	if len(stores) != 2 {
		t.Errorf("expected 2 stores, got %d", len(stores))
	}
}

func TestGetAll_LimitNormalization(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name      string
		limit     int
		offset    int64
		wantLimit int
		wantSkip  int64
	}{
		{"zero limit defaults", 0, 0, 10, 0},
		{"negative limit defaults", -5, 0, 10, 0},
		{"limit capped", 1000, 0, 100, 0},
		{"negative offset clamped", 10, -3, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			var gotSkip int64
			repo := &mockStoreRepository{
				findAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Store, error) {
					gotLimit = limit
					gotSkip = offset
					return nil, nil
				},
			}
			svc := newTestService(repo, cfg)

			if _, _, err := svc.GetAll(context.Background(), tt.limit, tt.offset); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotLimit != tt.wantLimit {
				t.Errorf("expected limit %d, got %d", tt.wantLimit, gotLimit)
			}
			if gotSkip != tt.wantSkip {
				t.Errorf("expected offset %d, got %d", tt.wantSkip, gotSkip)
			}
		})
	}
}

func TestUpdate_OwnerAuthorization(t *testing.T) {
	cfg := testConfig()
	repo := &mockStoreRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Store, error) {
			s := validStore()
			s.ID = id
			s.OwnerID = "owner-1"
			return s, nil
		},
	}
	svc := newTestService(repo, cfg)

	err := svc.Update(context.Background(), "intruder", "507f1f77bcf86cd799439011", &model.StoreUpdate{Name: "new name"})
	if err == nil {
		t.Fatal("expected forbidden error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected forbidden error, got %v", err)
	}

	if err := svc.Update(context.Background(), "owner-1", "507f1f77bcf86cd799439011", &model.StoreUpdate{Name: "new name"}); err != nil {
		t.Errorf("expected owner update to succeed, got %v", err)
	}
}

func TestDelete_OwnerAuthorization(t *testing.T) {
	cfg := testConfig()
	deleted := false
	repo := &mockStoreRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Store, error) {
			s := validStore()
			s.ID = id
			s.OwnerID = "owner-1"
			return s, nil
		},
		deleteFunc: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(repo, cfg)

	if err := svc.Delete(context.Background(), "intruder", "507f1f77bcf86cd799439011"); err == nil {
		t.Fatal("expected forbidden error, got nil")
	}
	if deleted {
		t.Fatal("delete must not reach the repository for a non-owner")
	}

	if err := svc.Delete(context.Background(), "owner-1", "507f1f77bcf86cd799439011"); err != nil {
		t.Errorf("expected owner delete to succeed, got %v", err)
	}
	if !deleted {
		t.Error("expected repository Delete to be called")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	cfg := testConfig()
	svc := newTestService(&mockStoreRepository{}, cfg)

	_, err := svc.GetByID(context.Background(), "507f1f77bcf86cd799439011")
	if err == nil {
		t.Fatal("expected not found error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestGetNearby_RadiusClamping(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name       string
		radius     int
		wantMeters int
	}{
		{"zero radius uses default", 0, 5000},
		{"negative radius uses default", -100, 5000},
		{"radius within bounds", 12000, 12000},
		{"radius capped at max", 999999, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMeters int
			repo := &mockStoreRepository{
				findNearbyFunc: func(ctx context.Context, lng, lat float64, maxMeters, limit int) ([]*model.Store, error) {
					gotMeters = maxMeters
					return nil, nil
				},
			}
			svc := newTestService(repo, cfg)

			if _, err := svc.GetNearby(context.Background(), -9.139, 38.722, tt.radius, 10); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotMeters != tt.wantMeters {
				t.Errorf("expected radius %d, got %d", tt.wantMeters, gotMeters)
			}
		})
	}
}

func TestGetNearby_RejectsBadCoordinates(t *testing.T) {
	cfg := testConfig()
	svc := newTestService(&mockStoreRepository{}, cfg)

	tests := []struct {
		name     string
		lng, lat float64
	}{
		{"longitude too low", -181, 0},
		{"longitude too high", 181, 0},
		{"latitude too low", 0, -91},
		{"latitude too high", 0, 91},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetNearby(context.Background(), tt.lng, tt.lat, 0, 10)
			if err == nil {
				t.Fatal("expected invalid input error, got nil")
			}
			if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
				t.Errorf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestGetStats_OwnerOnly(t *testing.T) {
	cfg := testConfig()
	repo := &mockStoreRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Store, error) {
			s := validStore()
			s.ID = id
			s.OwnerID = "owner-1"
			return s, nil
		},
		statsFunc: func(ctx context.Context, storeID string) (*model.StoreStats, error) {
			return &model.StoreStats{StoreID: storeID, TotalBookings: 7}, nil
		},
	}
	svc := newTestService(repo, cfg)

	if _, err := svc.GetStats(context.Background(), "intruder", "507f1f77bcf86cd799439011"); err == nil {
		t.Fatal("expected forbidden error, got nil")
	}

	stats, err := svc.GetStats(context.Background(), "owner-1", "507f1f77bcf86cd799439011")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalBookings != 7 {
		t.Errorf("expected 7 total bookings, got %d", stats.TotalBookings)
	}
}
