package main

import (
	"lastbite/internal/stores/handler"
	"lastbite/internal/stores/repository"
	"lastbite/internal/stores/service"
	"lastbite/internal/stores/validator"
	"lastbite/pkg/app"
	"lastbite/pkg/config"
)

const ServiceName = "stores"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Stores service")
	storeService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewStoreHandler(storeService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.StoreService {
	storeValidator := validator.NewStoreValidator(cfg.Log)
	storeRepo := repository.NewMongoStoreRepository(cfg)
	storeService := service.NewStoreService(
		storeRepo,
		storeValidator,
		cfg,
	)

	cfg.Log.Info("Store service initialized", "database", cfg.MongoDatabaseName)
	return storeService
}
