package main

import (
	"context"
	"log"

	"github.com/mealforge/backend/config"
	"github.com/mealforge/backend/internal/api"
	"github.com/mealforge/backend/internal/database"
	"github.com/mealforge/backend/internal/router"
	"github.com/mealforge/backend/internal/server"
	"github.com/mealforge/backend/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// The draft cache is an enhancement; the pipeline runs without it.
	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		log.Printf("Redis unavailable, draft cache disabled: %v", err)
		redisClient = nil
	}

	ctx := context.Background()
	s3Config, err := config.NewS3Config(ctx)
	if err != nil {
		log.Printf("S3 unavailable, image mirroring disabled: %v", err)
		s3Config = nil
	}

	imageService := service.NewImageService(cfg, s3Config)

	llmService, err := service.NewLLMService(cfg, imageService)
	if err != nil {
		log.Fatalf("Failed to create LLM service: %v", err)
	}

	store := service.NewRecipeStore(db)
	pipeline := service.NewPipelineService(llmService, store, redisClient)

	recipeHandler := api.NewRecipeHandler(pipeline, store)
	r := router.SetupRouter(recipeHandler, db)

	srv := server.New(r)
	if err := srv.Start(cfg.ServerHost, cfg.ServerPort); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
}
