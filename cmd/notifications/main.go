package main

import (
	"context"
	"errors"

	"lastbite/internal/notifications/consumer"
	"lastbite/internal/notifications/handler"
	"lastbite/internal/notifications/repository"
	"lastbite/internal/notifications/service"
	"lastbite/internal/notifications/validator"
	"lastbite/pkg/app"
	"lastbite/pkg/config"
	"lastbite/pkg/events"
	"lastbite/pkg/kafka"
	kafkaconfig "lastbite/pkg/kafka/config"
	kafkamiddleware "lastbite/pkg/kafka/middleware"
)

const (
	ServiceName     = "notifications"
	ConsumerGroupID = "notifications"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Notifications service")
	notificationService := initServices(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumers := startConsumers(ctx, cfg, notificationService)
	defer func() {
		for _, c := range consumers {
			if err := c.Close(); err != nil {
				cfg.Log.Error("Failed to close consumer", "error", err)
			}
		}
	}()

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewNotificationHandler(notificationService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.NotificationService {
	notificationValidator := validator.NewNotificationValidator(cfg.Log)
	notificationRepo := repository.NewMongoNotificationRepository(cfg)
	notificationService := service.NewNotificationService(
		notificationRepo,
		notificationValidator,
		cfg,
	)

	cfg.Log.Info("Notification service initialized", "database", cfg.MongoDatabaseName)
	return notificationService
}

func startConsumers(ctx context.Context, cfg *config.Config, svc service.NotificationService) []*kafka.Consumer {
	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	eventHandler := consumer.NewEventHandler(svc, cfg.Log)

	topics := []struct {
		topic    string
		dlqTopic string
		handler  kafka.MessageHandler
	}{
		{events.TopicBookingEvents, events.TopicBookingEventsDLQ, eventHandler.HandleBookingEvent},
		{events.TopicReviewEvents, events.TopicReviewEventsDLQ, eventHandler.HandleReviewEvent},
	}

	consumers := make([]*kafka.Consumer, 0, len(topics))
	for _, t := range topics {
		c, err := kafka.NewConsumer(kafkaCfg, t.topic, ConsumerGroupID, t.dlqTopic, t.handler, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka consumer", "topic", t.topic, "error", err)
		}
		c.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))
		consumers = append(consumers, c)

		go func(c *kafka.Consumer, topic string) {
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				cfg.Log.Error("Kafka consumer stopped", "topic", topic, "error", err)
			}
		}(c, t.topic)
	}

	return consumers
}
