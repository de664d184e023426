package main

import (
	"lastbite/internal/offers/handler"
	"lastbite/internal/offers/repository"
	"lastbite/internal/offers/service"
	"lastbite/internal/offers/validator"
	"lastbite/pkg/app"
	"lastbite/pkg/config"
)

const ServiceName = "offers"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Offers service")
	offerService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewOfferHandler(offerService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.OfferService {
	offerValidator := validator.NewOfferValidator(cfg.Log)
	offerRepo := repository.NewMongoOfferRepository(cfg)
	offerService := service.NewOfferService(
		offerRepo,
		offerValidator,
		cfg,
	)

	cfg.Log.Info("Offer service initialized", "database", cfg.MongoDatabaseName)
	return offerService
}
