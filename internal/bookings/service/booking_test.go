package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	bookingserrors "lastbite/internal/bookings/errors"
	"lastbite/internal/bookings/repository"
	"lastbite/internal/bookings/validator"
	"lastbite/pkg/config"
	mongotx "lastbite/pkg/db/mongo"
	apperrors "lastbite/pkg/errors"
	"lastbite/pkg/events"
	"lastbite/pkg/kafka"
	"lastbite/pkg/logger"
	"lastbite/pkg/model"
	"lastbite/pkg/pickup"
)

type mockBookingRepository struct {
	createFunc           func(ctx context.Context, booking *model.Booking) error
	findByIDFunc         func(ctx context.Context, id string) (*model.Booking, error)
	findByPickupCodeFunc func(ctx context.Context, code string) (*model.Booking, error)
	findAllFunc          func(ctx context.Context, filter repository.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	countFunc            func(ctx context.Context, filter repository.BookingFilter) (int64, error)
	updateStatusFunc     func(ctx context.Context, id, from, to string) error
	findOfferFunc        func(ctx context.Context, offerID string) (*model.Offer, error)
	decrementFunc        func(ctx context.Context, offerID string, n int) error
	restoreFunc          func(ctx context.Context, offerID string, n int) error
	acquireLockFunc      func(ctx context.Context, offerID string, ttl time.Duration) error

	released []string
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	booking.ID = "507f1f77bcf86cd799439099"
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindByPickupCode(ctx context.Context, code string) (*model.Booking, error) {
	if m.findByPickupCodeFunc != nil {
		return m.findByPickupCodeFunc(ctx, code)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindAll(ctx context.Context, filter repository.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, filter, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) Count(ctx context.Context, filter repository.BookingFilter) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockBookingRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, from, to)
	}
	return nil
}

func (m *mockBookingRepository) FindOffer(ctx context.Context, offerID string) (*model.Offer, error) {
	if m.findOfferFunc != nil {
		return m.findOfferFunc(ctx, offerID)
	}
	return nil, bookingserrors.ErrOfferNotFound
}

func (m *mockBookingRepository) DecrementOfferStock(ctx context.Context, offerID string, n int) error {
	if m.decrementFunc != nil {
		return m.decrementFunc(ctx, offerID, n)
	}
	return nil
}

func (m *mockBookingRepository) RestoreOfferStock(ctx context.Context, offerID string, n int) error {
	if m.restoreFunc != nil {
		return m.restoreFunc(ctx, offerID, n)
	}
	return nil
}

func (m *mockBookingRepository) AcquireOfferLock(ctx context.Context, offerID string, ttl time.Duration) error {
	if m.acquireLockFunc != nil {
		return m.acquireLockFunc(ctx, offerID, ttl)
	}
	return nil
}

func (m *mockBookingRepository) ReleaseOfferLock(ctx context.Context, offerID string) {
	m.released = append(m.released, offerID)
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockPublisher struct {
	messages []kafka.Message
	err      error
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	if m.err != nil {
		return m.err
	}
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
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		OfferLockTTL:       10 * time.Second,
		MaxBookingQuantity: 100,
	}
}

func testSealer(t *testing.T) *pickup.Sealer {
	t.Helper()
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	sealer, err := pickup.NewSealer(key)
	if err != nil {
		t.Fatalf("failed to build sealer: %v", err)
	}
	return sealer
}

const (
	offerID   = "507f1f77bcf86cd799439011"
	storeID   = "507f1f77bcf86cd799439022"
	bookingID = "507f1f77bcf86cd799439099"
)

func activeOffer() *model.Offer {
	return &model.Offer{
		ID:                offerID,
		StoreID:           storeID,
		SellerID:          "seller-1",
		Title:             "surprise bag",
		Category:          "bakery",
		OriginalPrice:     12.0,
		DiscountedPrice:   4.0,
		Quantity:          5,
		AvailableQuantity: 5,
		PickupStart:       time.Now().Add(1 * time.Hour),
		PickupEnd:         time.Now().Add(4 * time.Hour),
		Status:            model.OfferActive,
	}
}

func newTestService(repo *mockBookingRepository, pub EventPublisher, cfg *config.Config, sealer *pickup.Sealer) BookingService {
	return NewBookingService(repo, validator.NewBookingValidator(cfg.Log), sealer, pub, cfg)
}

func TestCreate_ReservesStockAndDerivesFields(t *testing.T) {
	cfg := testConfig()
	sealer := testSealer(t)
	pub := &mockPublisher{}

	var decremented int
	repo := &mockBookingRepository{
		findOfferFunc: func(ctx context.Context, id string) (*model.Offer, error) {
			return activeOffer(), nil
		},
		decrementFunc: func(ctx context.Context, id string, n int) error {
			decremented = n
			return nil
		},
	}
	svc := newTestService(repo, pub, cfg, sealer)

	booking := &model.Booking{OfferID: offerID, Quantity: 3}
	if err := svc.Create(context.Background(), "buyer-1", booking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decremented != 3 {
		t.Errorf("expected stock decrement of 3, got %d", decremented)
	}
	if booking.BuyerID != "buyer-1" {
		t.Errorf("expected buyer from the authenticated actor, got %q", booking.BuyerID)
	}
	if booking.StoreID != storeID || booking.SellerID != "seller-1" {
		t.Errorf("expected store/seller derived from the offer, got %q/%q", booking.StoreID, booking.SellerID)
	}
	if booking.UnitPrice != 4.0 || booking.TotalPrice != 12.0 {
		t.Errorf("expected prices 4.0/12.0, got %f/%f", booking.UnitPrice, booking.TotalPrice)
	}
	if booking.Status != model.BookingPending {
		t.Errorf("expected status pending, got %q", booking.Status)
	}
	if len(booking.PickupCode) != pickup.CodeLength {
		t.Errorf("expected %d-char pickup code, got %q", pickup.CodeLength, booking.PickupCode)
	}

	gotID, gotCode, err := sealer.OpenToken(booking.PickupToken)
	if err != nil {
		t.Fatalf("pickup token does not open: %v", err)
	}
	if gotID != booking.ID || gotCode != booking.PickupCode {
		t.Errorf("token binds %q/%q, want %q/%q", gotID, gotCode, booking.ID, booking.PickupCode)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.GetEventType() != events.EventBookingCreated {
		t.Errorf("expected event type %q, got %q", events.EventBookingCreated, msg.GetEventType())
	}
	if msg.Key != offerID {
		t.Errorf("expected message keyed by offer id, got %q", msg.Key)
	}
	var evt events.BookingEvent
	if err := msg.DecodeValue(&evt); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}
	if evt.OfferTitle != "surprise bag" || evt.Quantity != 3 {
		t.Errorf("unexpected event payload: %+v", evt)
	}

	if len(repo.released) != 1 || repo.released[0] != offerID {
		t.Errorf("expected offer lock released once, got %v", repo.released)
	}
}

func TestCreate_InsufficientStock(t *testing.T) {
	cfg := testConfig()
	created := false
	repo := &mockBookingRepository{
		findOfferFunc: func(ctx context.Context, id string) (*model.Offer, error) {
			return activeOffer(), nil
		},
		decrementFunc: func(ctx context.Context, id string, n int) error {
			return bookingserrors.ErrInsufficientStock
		},
		createFunc: func(ctx context.Context, booking *model.Booking) error {
			created = true
			return nil
		},
	}
	svc := newTestService(repo, &mockPublisher{}, cfg, testSealer(t))

	err := svc.Create(context.Background(), "buyer-1", &model.Booking{OfferID: offerID, Quantity: 10})
	if err == nil {
		t.Fatal("expected conflict error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict error, got %v", err)
	}
	if created {
		t.Error("booking must not be inserted when the stock guard rejects")
	}
	if len(repo.released) != 1 {
		t.Errorf("lock must be released on failure, released=%v", repo.released)
	}
}

func TestCreate_LockHeld(t *testing.T) {
	cfg := testConfig()
	txRan := false
	repo := &mockBookingRepository{
		acquireLockFunc: func(ctx context.Context, id string, ttl time.Duration) error {
			return bookingserrors.ErrLockHeld
		},
		findOfferFunc: func(ctx context.Context, id string) (*model.Offer, error) {
			txRan = true
			return activeOffer(), nil
		},
	}
	svc := newTestService(repo, &mockPublisher{}, cfg, testSealer(t))

	err := svc.Create(context.Background(), "buyer-1", &model.Booking{OfferID: offerID, Quantity: 1})
	if err == nil {
		t.Fatal("expected conflict error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict error, got %v", err)
	}
	if txRan {
		t.Error("transaction must not run when the lock is held")
	}
}

func TestCreate_Preconditions(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name     string
		offer    func() *model.Offer
		actor    string
		quantity int
		wantCode string
	}{
		{
			"seller books own offer",
			activeOffer, "seller-1", 1, apperrors.CodeForbidden,
		},
		{
			"inactive offer",
			func() *model.Offer { o := activeOffer(); o.Status = model.OfferSoldOut; return o },
			"buyer-1", 1, apperrors.CodeConflict,
		},
		{
			"pickup window closed",
			func() *model.Offer {
				o := activeOffer()
				o.PickupStart = time.Now().Add(-4 * time.Hour)
				o.PickupEnd = time.Now().Add(-1 * time.Hour)
				return o
			},
			"buyer-1", 1, apperrors.CodeGone,
		},
		{
			"quantity above limit",
			activeOffer, "buyer-1", 101, apperrors.CodeValidation,
		},
		{
			"zero quantity",
			activeOffer, "buyer-1", 0, apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockBookingRepository{
				findOfferFunc: func(ctx context.Context, id string) (*model.Offer, error) {
					return tt.offer(), nil
				},
			}
			svc := newTestService(repo, &mockPublisher{}, cfg, testSealer(t))

			err := svc.Create(context.Background(), tt.actor, &model.Booking{OfferID: offerID, Quantity: tt.quantity})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if appErr := apperrors.AsAppError(err); appErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestConfirm_SellerOnlyAndStateMachine(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name     string
		actor    string
		status   string
		wantCode string
	}{
		{"buyer cannot confirm", "buyer-1", model.BookingPending, apperrors.CodeForbidden},
		{"seller confirms pending", "seller-1", model.BookingPending, ""},
		{"cannot confirm completed", "seller-1", model.BookingCompleted, apperrors.CodeConflict},
		{"cannot confirm cancelled", "seller-1", model.BookingCancelled, apperrors.CodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			repo := &mockBookingRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
					return &model.Booking{
						ID: id, OfferID: offerID, BuyerID: "buyer-1", SellerID: "seller-1",
						Quantity: 2, Status: tt.status,
					}, nil
				},
			}
			svc := newTestService(repo, pub, cfg, testSealer(t))

			booking, err := svc.Confirm(context.Background(), tt.actor, bookingID)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if booking.Status != model.BookingConfirmed {
					t.Errorf("expected confirmed status, got %q", booking.Status)
				}
				if len(pub.messages) != 1 || pub.messages[0].GetEventType() != events.EventBookingConfirmed {
					t.Errorf("expected one booking.confirmed event, got %v", pub.messages)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if appErr := apperrors.AsAppError(err); appErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestCancel_RestoresStock(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name        string
		actor       string
		status      string
		wantCode    string
		wantRestore bool
	}{
		{"buyer cancels pending", "buyer-1", model.BookingPending, "", true},
		{"seller cancels confirmed", "seller-1", model.BookingConfirmed, "", true},
		{"stranger cannot cancel", "stranger", model.BookingPending, apperrors.CodeForbidden, false},
		{"cannot cancel completed", "buyer-1", model.BookingCompleted, apperrors.CodeConflict, false},
		{"cannot cancel twice", "buyer-1", model.BookingCancelled, apperrors.CodeConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restored := 0
			pub := &mockPublisher{}
			repo := &mockBookingRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
					return &model.Booking{
						ID: id, OfferID: offerID, BuyerID: "buyer-1", SellerID: "seller-1",
						Quantity: 2, Status: tt.status,
					}, nil
				},
				restoreFunc: func(ctx context.Context, id string, n int) error {
					restored += n
					return nil
				},
			}
			svc := newTestService(repo, pub, cfg, testSealer(t))

			booking, err := svc.Cancel(context.Background(), tt.actor, bookingID)
			if tt.wantCode != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if appErr := apperrors.AsAppError(err); appErr.Code != tt.wantCode {
					t.Errorf("expected code %s, got %v", tt.wantCode, err)
				}
				if restored != 0 {
					t.Errorf("stock must not be restored on refusal, restored=%d", restored)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if booking.Status != model.BookingCancelled {
				t.Errorf("expected cancelled status, got %q", booking.Status)
			}
			if tt.wantRestore && restored != 2 {
				t.Errorf("expected 2 units restored, got %d", restored)
			}
			if len(pub.messages) != 1 || pub.messages[0].GetEventType() != events.EventBookingCancelled {
				t.Errorf("expected one booking.cancelled event, got %d", len(pub.messages))
			}
		})
	}
}

func TestCompleteByCode(t *testing.T) {
	cfg := testConfig()

	stored := &model.Booking{
		ID: bookingID, OfferID: offerID, BuyerID: "buyer-1", SellerID: "seller-1",
		Quantity: 2, Status: model.BookingConfirmed, PickupCode: "MKT4PQ2Z",
	}

	tests := []struct {
		name     string
		actor    string
		code     string
		status   string
		wantCode string
	}{
		{"seller completes with normalized code", "seller-1", "mkt4-pq2z", model.BookingConfirmed, ""},
		{"buyer cannot complete", "buyer-1", "MKT4PQ2Z", model.BookingConfirmed, apperrors.CodeForbidden},
		{"pending booking refused", "seller-1", "MKT4PQ2Z", model.BookingPending, apperrors.CodeConflict},
		{"short code rejected", "seller-1", "abc", model.BookingConfirmed, apperrors.CodeInvalidInput},
		{"unknown code", "seller-1", "ZZZZZZZZ", model.BookingConfirmed, apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			repo := &mockBookingRepository{
				findByPickupCodeFunc: func(ctx context.Context, code string) (*model.Booking, error) {
					if code != stored.PickupCode {
						return nil, bookingserrors.ErrNotFound
					}
					cp := *stored
					cp.Status = tt.status
					return &cp, nil
				},
			}
			svc := newTestService(repo, pub, cfg, testSealer(t))

			booking, err := svc.CompleteByCode(context.Background(), tt.actor, tt.code)
			if tt.wantCode != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if appErr := apperrors.AsAppError(err); appErr.Code != tt.wantCode {
					t.Errorf("expected code %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if booking.Status != model.BookingCompleted {
				t.Errorf("expected completed status, got %q", booking.Status)
			}
			if len(pub.messages) != 1 || pub.messages[0].GetEventType() != events.EventBookingCompleted {
				t.Errorf("expected one booking.completed event, got %d", len(pub.messages))
			}
		})
	}
}

func TestCompleteByToken(t *testing.T) {
	cfg := testConfig()
	sealer := testSealer(t)

	stored := &model.Booking{
		ID: bookingID, OfferID: offerID, BuyerID: "buyer-1", SellerID: "seller-1",
		Quantity: 2, Status: model.BookingConfirmed, PickupCode: "MKT4PQ2Z",
	}
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			if id != stored.ID {
				return nil, bookingserrors.ErrNotFound
			}
			cp := *stored
			return &cp, nil
		},
	}
	svc := newTestService(repo, &mockPublisher{}, cfg, sealer)

	token, err := sealer.SealToken(stored.ID, stored.PickupCode)
	if err != nil {
		t.Fatalf("failed to seal token: %v", err)
	}

	booking, err := svc.CompleteByToken(context.Background(), "seller-1", token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingCompleted {
		t.Errorf("expected completed status, got %q", booking.Status)
	}

	if _, err := svc.CompleteByToken(context.Background(), "seller-1", "garbage-token"); err == nil {
		t.Error("expected error for a tampered token")
	}

	wrongCode, err := sealer.SealToken(stored.ID, "AAAABBBB")
	if err != nil {
		t.Fatalf("failed to seal token: %v", err)
	}
	if _, err := svc.CompleteByToken(context.Background(), "seller-1", wrongCode); err == nil {
		t.Error("expected error when the token code does not match the booking")
	}
}

func TestGetAll_RoleFilter(t *testing.T) {
	cfg := testConfig()

	var gotFilter repository.BookingFilter
	repo := &mockBookingRepository{
		findAllFunc: func(ctx context.Context, filter repository.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
			gotFilter = filter
			return nil, nil
		},
	}
	svc := newTestService(repo, &mockPublisher{}, cfg, testSealer(t))

	if _, _, err := svc.GetAll(context.Background(), "user-1", "", 10, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFilter.BuyerID != "user-1" || gotFilter.SellerID != "" {
		t.Errorf("default role must filter by buyer, got %+v", gotFilter)
	}

	if _, _, err := svc.GetAll(context.Background(), "user-1", "seller", 10, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFilter.SellerID != "user-1" || gotFilter.BuyerID != "" {
		t.Errorf("seller role must filter by seller, got %+v", gotFilter)
	}
}

func TestCreate_PublishFailureDoesNotFailBooking(t *testing.T) {
	cfg := testConfig()
	repo := &mockBookingRepository{
		findOfferFunc: func(ctx context.Context, id string) (*model.Offer, error) {
			return activeOffer(), nil
		},
	}
	pub := &mockPublisher{err: context.DeadlineExceeded}
	svc := newTestService(repo, pub, cfg, testSealer(t))

	if err := svc.Create(context.Background(), "buyer-1", &model.Booking{OfferID: offerID, Quantity: 1}); err != nil {
		t.Fatalf("publish failure must not fail the booking, got %v", err)
	}
}
