package main

import (
	"lastbite/internal/bookings/handler"
	"lastbite/internal/bookings/repository"
	"lastbite/internal/bookings/service"
	"lastbite/internal/bookings/validator"
	"lastbite/pkg/app"
	"lastbite/pkg/config"
	"lastbite/pkg/events"
	"lastbite/pkg/kafka"
	kafkaconfig "lastbite/pkg/kafka/config"
	kafkamiddleware "lastbite/pkg/kafka/middleware"
	"lastbite/pkg/pickup"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Bookings service")
	bookingService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.BookingService {
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)

	// Without a seal key the service still runs; token completion
	// responds with 503 while code completion keeps working.
	var sealer *pickup.Sealer
	if cfg.PickupSealKey != "" {
		var err error
		sealer, err = pickup.NewSealer(cfg.PickupSealKey)
		if err != nil {
			cfg.Log.Fatal("Invalid pickup seal key", "error", err)
		}
	} else {
		cfg.Log.Warn("Pickup seal key not configured, token completion disabled")
	}

	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	producer, err := kafka.NewProducer(kafkaCfg, events.TopicBookingEvents, events.TopicBookingEventsDLQ, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))

	bookingService := service.NewBookingService(
		bookingRepo,
		bookingValidator,
		sealer,
		producer,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService
}
