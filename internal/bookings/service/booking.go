package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "lastbite/internal/bookings/errors"
	"lastbite/internal/bookings/repository"
	"lastbite/internal/bookings/validator"
	"lastbite/pkg/config"
	apperrors "lastbite/pkg/errors"
	"lastbite/pkg/events"
	"lastbite/pkg/kafka"
	"lastbite/pkg/middleware"
	"lastbite/pkg/model"
	"lastbite/pkg/pickup"
	"lastbite/pkg/sanitizer"
)

// EventPublisher is satisfied by *kafka.Producer. Publishing is best
// effort: a broker outage never fails the booking transaction.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type BookingService interface {
	Create(ctx context.Context, actorID string, booking *model.Booking) error
	GetByID(ctx context.Context, actorID, id string) (*model.Booking, error)
	GetAll(ctx context.Context, actorID, role string, limit int, offset int64) ([]*model.Booking, int64, error)
	Confirm(ctx context.Context, actorID, id string) (*model.Booking, error)
	Cancel(ctx context.Context, actorID, id string) (*model.Booking, error)
	CompleteByCode(ctx context.Context, actorID, code string) (*model.Booking, error)
	CompleteByToken(ctx context.Context, actorID, token string) (*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	validator *validator.BookingValidator
	sealer    *pickup.Sealer
	publisher EventPublisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	validator *validator.BookingValidator,
	sealer *pickup.Sealer,
	publisher EventPublisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		validator: validator,
		sealer:    sealer,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create reserves stock and inserts the booking atomically. An advisory
// lock serializes creation per offer; inside the transaction a guarded
// $inc rejects the reservation when availability has dropped below the
// requested quantity.
func (s *bookingService) Create(ctx context.Context, actorID string, booking *model.Booking) error {
	if booking.OfferID == "" {
		return apperrors.InvalidInput("Offer ID cannot be empty")
	}
	if booking.Quantity < 1 || booking.Quantity > s.cfg.MaxBookingQuantity {
		return apperrors.Validation("Booking validation failed", map[string]any{
			"error": "quantity out of range",
			"max":   s.cfg.MaxBookingQuantity,
		})
	}

	booking.BuyerID = actorID
	booking.Status = model.BookingPending

	if err := s.repo.AcquireOfferLock(ctx, booking.OfferID, s.cfg.OfferLockTTL); err != nil {
		if errors.Is(err, bookingserrors.ErrLockHeld) {
			return apperrors.Conflict("Another booking for this offer is in progress, try again")
		}
		s.cfg.Log.Error("Failed to acquire offer lock",
			"offer_id", booking.OfferID,
			"error", err,
		)
		return apperrors.Internal("Failed to create booking", err)
	}
	defer s.repo.ReleaseOfferLock(context.WithoutCancel(ctx), booking.OfferID)

	var offerTitle string
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		offer, err := s.repo.FindOffer(sessCtx, booking.OfferID)
		if err != nil {
			if errors.Is(err, bookingserrors.ErrOfferNotFound) {
				return apperrors.NotFoundWithID("Offer", booking.OfferID)
			}
			return err
		}

		if offer.Status != model.OfferActive {
			return apperrors.Conflict("Offer is not active")
		}
		if !offer.PickupEnd.After(time.Now()) {
			return apperrors.Gone("Offer pickup window has closed")
		}
		if offer.SellerID == actorID {
			return apperrors.Forbidden("Sellers cannot book their own offers")
		}

		if err := s.repo.DecrementOfferStock(sessCtx, booking.OfferID, booking.Quantity); err != nil {
			if errors.Is(err, bookingserrors.ErrInsufficientStock) {
				return apperrors.Conflict("Not enough quantity available")
			}
			return err
		}

		code, err := pickup.NewCode()
		if err != nil {
			return err
		}

		booking.StoreID = offer.StoreID
		booking.SellerID = offer.SellerID
		booking.UnitPrice = offer.DiscountedPrice
		booking.TotalPrice = offer.DiscountedPrice * float64(booking.Quantity)
		booking.PickupCode = code
		offerTitle = offer.Title

		if err := s.validator.Validate(booking); err != nil {
			return apperrors.Validation("Booking validation failed", map[string]any{
				"error": err.Error(),
			})
		}

		return s.repo.Create(sessCtx, booking)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		s.cfg.Log.Error("Failed to create booking",
			"offer_id", booking.OfferID,
			"buyer_id", booking.BuyerID,
			"error", err,
		)
		return apperrors.Internal("Failed to create booking", err)
	}

	// The sealed token binds booking and code for QR payloads; it is not
	// persisted, only returned to the buyer.
	if s.sealer != nil {
		if token, err := s.sealer.SealToken(booking.ID, booking.PickupCode); err == nil {
			booking.PickupToken = token
		} else {
			s.cfg.Log.Error("Failed to seal pickup token",
				"booking_id", booking.ID,
				"error", err,
			)
		}
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"offer_id", booking.OfferID,
		"buyer_id", booking.BuyerID,
		"quantity", booking.Quantity,
	)

	s.publishBookingEvent(ctx, events.EventBookingCreated, booking, offerTitle)

	return nil
}

func (s *bookingService) GetByID(ctx context.Context, actorID, id string) (*model.Booking, error) {
	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.BuyerID != actorID && booking.SellerID != actorID {
		return nil, apperrors.Forbidden("Only the buyer or the seller can view this booking")
	}

	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context, actorID, role string, limit int, offset int64) ([]*model.Booking, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	filter := repository.BookingFilter{BuyerID: actorID}
	if role == "seller" {
		filter = repository.BookingFilter{SellerID: actorID}
	}

	var count int64
	var bookings []*model.Booking
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
			s.cfg.Log.Error("Failed to count bookings", "error", err)
			errCount = apperrors.Internal("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		bookings, err = s.repo.FindAll(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get bookings",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve bookings", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) Confirm(ctx context.Context, actorID, id string) (*model.Booking, error) {
	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.SellerID != actorID {
		return nil, apperrors.Forbidden("Only the seller can confirm a booking")
	}
	if !booking.CanTransitionTo(model.BookingConfirmed) {
		return nil, apperrors.Conflict("Booking cannot be confirmed from status '" + booking.Status + "'")
	}

	if err := s.repo.UpdateStatus(ctx, id, booking.Status, model.BookingConfirmed); err != nil {
		if errors.Is(err, bookingserrors.ErrStatusChanged) {
			return nil, apperrors.Conflict("Booking status changed, reload and retry")
		}
		s.cfg.Log.Error("Failed to confirm booking",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to confirm booking", err)
	}
	booking.Status = model.BookingConfirmed

	s.cfg.Log.Info("Booking confirmed", "id", id, "seller_id", actorID)
	s.publishBookingEvent(ctx, events.EventBookingConfirmed, booking, "")

	return booking, nil
}

// Cancel restores the reserved stock in the same transaction that flips
// the booking to cancelled.
func (s *bookingService) Cancel(ctx context.Context, actorID, id string) (*model.Booking, error) {
	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.BuyerID != actorID && booking.SellerID != actorID {
		return nil, apperrors.Forbidden("Only the buyer or the seller can cancel a booking")
	}
	if !booking.CanTransitionTo(model.BookingCancelled) {
		return nil, apperrors.Conflict("Booking cannot be cancelled from status '" + booking.Status + "'")
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.UpdateStatus(sessCtx, id, booking.Status, model.BookingCancelled); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusChanged) {
				return apperrors.Conflict("Booking status changed, reload and retry")
			}
			return err
		}
		if booking.HoldsInventory() {
			if err := s.repo.RestoreOfferStock(sessCtx, booking.OfferID, booking.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Failed to cancel booking",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to cancel booking", err)
	}
	booking.Status = model.BookingCancelled

	s.cfg.Log.Info("Booking cancelled",
		"id", id,
		"actor_id", actorID,
		"restored_quantity", booking.Quantity,
	)
	s.publishBookingEvent(ctx, events.EventBookingCancelled, booking, "")

	return booking, nil
}

// CompleteByCode verifies a pickup: the seller presents the code shown by
// the buyer, the booking must be confirmed.
func (s *bookingService) CompleteByCode(ctx context.Context, actorID, code string) (*model.Booking, error) {
	code = sanitizer.NormalizePickupCode(code)
	if len(code) != pickup.CodeLength {
		return nil, apperrors.InvalidInput("Pickup code must be 8 characters")
	}

	booking, err := s.repo.FindByPickupCode(ctx, code)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Booking with this pickup code")
		}
		s.cfg.Log.Error("Failed to look up pickup code", "error", err)
		return nil, apperrors.Internal("Failed to verify pickup code", err)
	}

	return s.complete(ctx, actorID, booking)
}

// CompleteByToken verifies a sealed QR token instead of a bare code. The
// opened token must agree with the stored booking on both id and code.
func (s *bookingService) CompleteByToken(ctx context.Context, actorID, token string) (*model.Booking, error) {
	if s.sealer == nil {
		return nil, apperrors.Unavailable("Pickup token verification")
	}

	bookingID, code, err := s.sealer.OpenToken(token)
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid pickup token")
	}

	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PickupCode != code {
		return nil, apperrors.InvalidInput("Invalid pickup token")
	}

	return s.complete(ctx, actorID, booking)
}

func (s *bookingService) complete(ctx context.Context, actorID string, booking *model.Booking) (*model.Booking, error) {
	if booking.SellerID != actorID {
		return nil, apperrors.Forbidden("Only the seller can complete a pickup")
	}
	if booking.Status != model.BookingConfirmed {
		return nil, apperrors.Conflict("Booking must be confirmed before pickup, current status '" + booking.Status + "'")
	}

	if err := s.repo.UpdateStatus(ctx, booking.ID, model.BookingConfirmed, model.BookingCompleted); err != nil {
		if errors.Is(err, bookingserrors.ErrStatusChanged) {
			return nil, apperrors.Conflict("Booking status changed, reload and retry")
		}
		s.cfg.Log.Error("Failed to complete booking",
			"id", booking.ID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to complete booking", err)
	}
	booking.Status = model.BookingCompleted

	s.cfg.Log.Info("Booking completed",
		"id", booking.ID,
		"seller_id", actorID,
	)
	s.publishBookingEvent(ctx, events.EventBookingCompleted, booking, "")

	return booking, nil
}

func (s *bookingService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to get booking by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) publishBookingEvent(ctx context.Context, eventType string, booking *model.Booking, offerTitle string) {
	if s.publisher == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(booking.OfferID).
		WithValue(events.BookingEvent{
			BookingID:  booking.ID,
			OfferID:    booking.OfferID,
			StoreID:    booking.StoreID,
			BuyerID:    booking.BuyerID,
			SellerID:   booking.SellerID,
			OfferTitle: offerTitle,
			Quantity:   booking.Quantity,
			Status:     booking.Status,
			OccurredAt: time.Now().UTC(),
		}).
		WithEventType(eventType).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithSource("bookings").
		Build()

	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}
