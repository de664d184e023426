package consumer

import (
	"context"
	"errors"
	"testing"

	"lastbite/pkg/events"
	"lastbite/pkg/kafka"
	"lastbite/pkg/logger"
	"lastbite/pkg/model"
)

type mockNotificationService struct {
	recorded [][]*model.Notification
	err      error
}

func (m *mockNotificationService) Record(ctx context.Context, notifications []*model.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.recorded = append(m.recorded, notifications)
	return nil
}

func (m *mockNotificationService) GetAll(ctx context.Context, actorID string, unreadOnly bool, limit int, offset int64) ([]*model.Notification, int64, error) {
	return nil, 0, nil
}

func (m *mockNotificationService) MarkRead(ctx context.Context, actorID, id string) error {
	return nil
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, actorID string) (int64, error) {
	return 0, nil
}

func (m *mockNotificationService) Delete(ctx context.Context, actorID, id string) error {
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
}

func bookingEvent() events.BookingEvent {
	return events.BookingEvent{
		BookingID:  "507f1f77bcf86cd799439099",
		OfferID:    "507f1f77bcf86cd799439011",
		StoreID:    "507f1f77bcf86cd799439022",
		BuyerID:    "buyer-1",
		SellerID:   "seller-1",
		OfferTitle: "Surprise bag",
		Quantity:   2,
	}
}

func bookingMessage(eventType string, event events.BookingEvent) kafka.Message {
	return kafka.NewMessage().
		WithKey(event.OfferID).
		WithValue(event).
		WithEventType(eventType).
		Build()
}

func recipients(batch []*model.Notification) map[string]string {
	out := make(map[string]string, len(batch))
	for _, n := range batch {
		out[n.UserID] = n.Kind
	}
	return out
}

func TestHandleBookingEvent_FanOut(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		want      map[string]string
	}{
		{
			"created notifies both parties",
			events.EventBookingCreated,
			map[string]string{"buyer-1": model.NotifyBookingCreated, "seller-1": model.NotifyBookingCreated},
		},
		{
			"confirmed notifies the buyer",
			events.EventBookingConfirmed,
			map[string]string{"buyer-1": model.NotifyBookingConfirmed},
		},
		{
			"cancelled notifies both parties",
			events.EventBookingCancelled,
			map[string]string{"buyer-1": model.NotifyBookingCancelled, "seller-1": model.NotifyBookingCancelled},
		},
		{
			"completed notifies the buyer",
			events.EventBookingCompleted,
			map[string]string{"buyer-1": model.NotifyBookingCompleted},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockNotificationService{}
			h := NewEventHandler(svc, testLogger())

			msg := bookingMessage(tt.eventType, bookingEvent())
			if err := h.HandleBookingEvent(context.Background(), msg); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(svc.recorded) != 1 {
				t.Fatalf("expected 1 recorded batch, got %d", len(svc.recorded))
			}
			got := recipients(svc.recorded[0])
			if len(got) != len(tt.want) {
				t.Fatalf("expected recipients %v, got %v", tt.want, got)
			}
			for user, kind := range tt.want {
				if got[user] != kind {
					t.Errorf("expected %s notified with %s, got %s", user, kind, got[user])
				}
			}
			for _, n := range svc.recorded[0] {
				if n.Data["booking_id"] != "507f1f77bcf86cd799439099" {
					t.Errorf("expected booking id in data, got %v", n.Data)
				}
			}
		})
	}
}

func TestHandleBookingEvent_UnknownTypeIgnored(t *testing.T) {
	svc := &mockNotificationService{}
	h := NewEventHandler(svc, testLogger())

	msg := bookingMessage("booking.rescheduled", bookingEvent())
	if err := h.HandleBookingEvent(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.recorded) != 0 {
		t.Errorf("expected nothing recorded, got %d batches", len(svc.recorded))
	}
}

func TestHandleBookingEvent_BadPayloadIsPermanent(t *testing.T) {
	svc := &mockNotificationService{}
	h := NewEventHandler(svc, testLogger())

	msg := kafka.Message{
		Value:   []byte("{not json"),
		Headers: map[string]string{kafka.HeaderEventType: events.EventBookingCreated},
	}

	err := h.HandleBookingEvent(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, kafka.ErrPermanentFailure) {
		t.Errorf("expected permanent failure, got %v", err)
	}
	if len(svc.recorded) != 0 {
		t.Errorf("expected nothing recorded, got %d batches", len(svc.recorded))
	}
}

func TestHandleBookingEvent_RecordFailureIsRetryable(t *testing.T) {
	svc := &mockNotificationService{err: errors.New("mongo down")}
	h := NewEventHandler(svc, testLogger())

	msg := bookingMessage(events.EventBookingCreated, bookingEvent())
	err := h.HandleBookingEvent(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, kafka.ErrPermanentFailure) {
		t.Error("storage failures must stay retryable")
	}
}

func TestHandleReviewEvent_NotifiesSeller(t *testing.T) {
	svc := &mockNotificationService{}
	h := NewEventHandler(svc, testLogger())

	msg := kafka.NewMessage().
		WithKey("507f1f77bcf86cd799439022").
		WithValue(events.ReviewEvent{
			ReviewID: "507f1f77bcf86cd799439055",
			StoreID:  "507f1f77bcf86cd799439022",
			SellerID: "seller-1",
			Rating:   4,
		}).
		WithEventType(events.EventReviewCreated).
		Build()

	if err := h.HandleReviewEvent(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(svc.recorded) != 1 || len(svc.recorded[0]) != 1 {
		t.Fatalf("expected 1 notification, got %v", svc.recorded)
	}
	n := svc.recorded[0][0]
	if n.UserID != "seller-1" || n.Kind != model.NotifyReviewCreated {
		t.Errorf("expected seller notified with %s, got %s/%s", model.NotifyReviewCreated, n.UserID, n.Kind)
	}
}
