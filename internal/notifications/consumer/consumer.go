// Package consumer translates booking and review events into persisted
// per-recipient notifications.
package consumer

import (
	"context"
	"fmt"

	"lastbite/internal/notifications/service"
	"lastbite/pkg/events"
	"lastbite/pkg/kafka"
	"lastbite/pkg/logger"
	"lastbite/pkg/model"
)

type EventHandler struct {
	service service.NotificationService
	log     *logger.Logger
}

func NewEventHandler(svc service.NotificationService, log *logger.Logger) *EventHandler {
	return &EventHandler{
		service: svc,
		log:     log,
	}
}

// HandleBookingEvent fans one lifecycle event out to its recipients.
// Malformed payloads are parked immediately; retrying cannot fix them.
func (h *EventHandler) HandleBookingEvent(ctx context.Context, msg kafka.Message) error {
	var event events.BookingEvent
	if err := msg.DecodeValue(&event); err != nil {
		return fmt.Errorf("%w: undecodable booking event: %v", kafka.ErrPermanentFailure, err)
	}

	notifications := buildBookingNotifications(msg.GetEventType(), event)
	if len(notifications) == 0 {
		h.log.Warn("Ignoring booking event with unknown type",
			"event_type", msg.GetEventType(),
			"booking_id", event.BookingID,
		)
		return nil
	}

	if err := h.service.Record(ctx, notifications); err != nil {
		return fmt.Errorf("failed to record booking notifications: %w", err)
	}

	h.log.Info("Booking event fanned out",
		"event_type", msg.GetEventType(),
		"booking_id", event.BookingID,
		"recipients", len(notifications),
	)
	return nil
}

func (h *EventHandler) HandleReviewEvent(ctx context.Context, msg kafka.Message) error {
	var event events.ReviewEvent
	if err := msg.DecodeValue(&event); err != nil {
		return fmt.Errorf("%w: undecodable review event: %v", kafka.ErrPermanentFailure, err)
	}

	if msg.GetEventType() != events.EventReviewCreated {
		h.log.Warn("Ignoring review event with unknown type",
			"event_type", msg.GetEventType(),
			"review_id", event.ReviewID,
		)
		return nil
	}

	notification := &model.Notification{
		UserID: event.SellerID,
		Kind:   model.NotifyReviewCreated,
		Title:  "New review",
		Body:   fmt.Sprintf("Your store received a %d-star review.", event.Rating),
		Data: map[string]string{
			"review_id":  event.ReviewID,
			"booking_id": event.BookingID,
			"store_id":   event.StoreID,
			"offer_id":   event.OfferID,
		},
	}

	if err := h.service.Record(ctx, []*model.Notification{notification}); err != nil {
		return fmt.Errorf("failed to record review notification: %w", err)
	}

	h.log.Info("Review event fanned out",
		"review_id", event.ReviewID,
		"seller_id", event.SellerID,
	)
	return nil
}

func buildBookingNotifications(eventType string, event events.BookingEvent) []*model.Notification {
	data := map[string]string{
		"booking_id": event.BookingID,
		"offer_id":   event.OfferID,
		"store_id":   event.StoreID,
	}

	switch eventType {
	case events.EventBookingCreated:
		return []*model.Notification{
			{
				UserID: event.SellerID,
				Kind:   model.NotifyBookingCreated,
				Title:  "New booking",
				Body:   fmt.Sprintf("%d x %q reserved, awaiting your confirmation.", event.Quantity, event.OfferTitle),
				Data:   data,
			},
			{
				UserID: event.BuyerID,
				Kind:   model.NotifyBookingCreated,
				Title:  "Booking placed",
				Body:   fmt.Sprintf("Your booking for %q is waiting for the store to confirm.", event.OfferTitle),
				Data:   data,
			},
		}
	case events.EventBookingConfirmed:
		return []*model.Notification{
			{
				UserID: event.BuyerID,
				Kind:   model.NotifyBookingConfirmed,
				Title:  "Booking confirmed",
				Body:   "The store confirmed your booking. Show your pickup code at the counter.",
				Data:   data,
			},
		}
	case events.EventBookingCancelled:
		// Either side can cancel; both see the outcome.
		return []*model.Notification{
			{
				UserID: event.BuyerID,
				Kind:   model.NotifyBookingCancelled,
				Title:  "Booking cancelled",
				Body:   "Your booking was cancelled and the items were returned to stock.",
				Data:   data,
			},
			{
				UserID: event.SellerID,
				Kind:   model.NotifyBookingCancelled,
				Title:  "Booking cancelled",
				Body:   fmt.Sprintf("A booking for %d item(s) was cancelled.", event.Quantity),
				Data:   data,
			},
		}
	case events.EventBookingCompleted:
		return []*model.Notification{
			{
				UserID: event.BuyerID,
				Kind:   model.NotifyBookingCompleted,
				Title:  "Pickup complete",
				Body:   "Thanks for rescuing food. You can now review the store.",
				Data:   data,
			},
		}
	}

	return nil
}
