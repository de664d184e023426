package main

import (
	"lastbite/internal/reviews/handler"
	"lastbite/internal/reviews/repository"
	"lastbite/internal/reviews/service"
	"lastbite/internal/reviews/validator"
	"lastbite/pkg/app"
	"lastbite/pkg/config"
	"lastbite/pkg/events"
	"lastbite/pkg/kafka"
	kafkaconfig "lastbite/pkg/kafka/config"
	kafkamiddleware "lastbite/pkg/kafka/middleware"
)

const ServiceName = "reviews"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Reviews service")
	reviewService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewReviewHandler(reviewService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ReviewService {
	reviewValidator := validator.NewReviewValidator(cfg.Log)
	reviewRepo := repository.NewMongoReviewRepository(cfg)

	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	producer, err := kafka.NewProducer(kafkaCfg, events.TopicReviewEvents, events.TopicReviewEventsDLQ, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))

	reviewService := service.NewReviewService(
		reviewRepo,
		reviewValidator,
		producer,
		cfg,
	)

	cfg.Log.Info("Review service initialized", "database", cfg.MongoDatabaseName)
	return reviewService
}
